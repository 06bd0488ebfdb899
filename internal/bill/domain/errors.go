package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("bill_not_found")
	ErrDuplicateBill = errors.New("duplicate_bill")
	ErrAlreadyPaid   = errors.New("bill_already_paid")
	ErrNotPaid       = errors.New("bill_not_paid")
	ErrMeterNotBound = errors.New("meter_not_bound")
)

// InvalidPaymentAmountError reports a payment that does not match the bill
// total within the configured tolerance.
type InvalidPaymentAmountError struct {
	Expected float64
	Got      float64
}

func (e *InvalidPaymentAmountError) Error() string {
	return fmt.Sprintf("payment amount %.2f does not match bill total %.2f", e.Got, e.Expected)
}

// PersistenceError wraps a storage failure during a bill write. The bill and
// its details roll back as a unit before this surfaces.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("bill %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
