package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gridbill/gridbill/internal/account/domain"
	"github.com/gridbill/gridbill/internal/bill/domain"
	"github.com/gridbill/gridbill/internal/clock"
	"github.com/gridbill/gridbill/internal/config"
	meterdomain "github.com/gridbill/gridbill/internal/meter/domain"
	notifdomain "github.com/gridbill/gridbill/internal/notification/domain"
	"github.com/gridbill/gridbill/internal/observability/metrics"
	policyservice "github.com/gridbill/gridbill/internal/policy/service"
	"github.com/gridbill/gridbill/internal/rating"
	readingdomain "github.com/gridbill/gridbill/internal/reading/domain"
	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
	"github.com/gridbill/gridbill/pkg/db"
	"github.com/gridbill/gridbill/pkg/db/option"
	"github.com/gridbill/gridbill/pkg/money"
	"github.com/gridbill/gridbill/pkg/repository"
)

// ListFilter narrows List output. Zero fields are ignored.
type ListFilter struct {
	AccountID *snowflake.ID
	MeterID   *snowflake.ID
	Status    domain.BillStatus
	MonthFrom *time.Time
	MonthTo   *time.Time
	Limit     int
	Offset    int
}

// BatchResult tallies one batch generation run.
type BatchResult struct {
	Generated  int
	Duplicates int
	Failed     int
	Errors     map[snowflake.ID]string
}

// Ledger owns the bill lifecycle: generation, payment, refund, listing and
// arrears reminders. Overdue transitions live in the scheduler.
type Ledger interface {
	Generate(ctx context.Context, meterID snowflake.ID, billMonth time.Time) (*domain.Bill, error)
	BatchGenerate(ctx context.Context, billMonth time.Time, regionID *snowflake.ID) (*BatchResult, error)
	Pay(ctx context.Context, billID snowflake.ID, amount float64, method string) (*domain.Bill, error)
	Refund(ctx context.Context, billID snowflake.ID, reason, actor string) (*domain.Bill, error)
	GetByID(ctx context.Context, billID snowflake.ID) (*domain.Bill, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Bill, error)
	SendArrearsReminders(ctx context.Context, regionID *snowflake.ID) (int, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Logger   *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	Bills    domain.Repository
	Meters   meterdomain.Repository
	Regions  regiondomain.Repository
	Accounts accountdomain.Repository
	Readings readingdomain.Source
	Resolver policyservice.Resolver
	Notifier notifdomain.Sink
}

type service struct {
	db      *gorm.DB
	logger  *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	billing *config.BillingConfigHolder

	bills    domain.Repository
	meters   meterdomain.Repository
	regions  regiondomain.Repository
	accounts accountdomain.Repository
	readings readingdomain.Source
	resolver policyservice.Resolver
	notifier notifdomain.Sink
	metrics  *metrics.BillingMetrics

	billstore repository.Repository[domain.Bill]
}

// NewLedger constructs the bill ledger.
func NewLedger(p Params) Ledger {
	return &service{
		db:      p.DB,
		logger:  p.Logger.Named("bill.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		billing: p.Billing,

		bills:    p.Bills,
		meters:   p.Meters,
		regions:  p.Regions,
		accounts: p.Accounts,
		readings: p.Readings,
		resolver: p.Resolver,
		notifier: p.Notifier,
		metrics:  metrics.Billing(),

		billstore: repository.ProvideStore[domain.Bill](p.DB),
	}
}

// Generate computes and persists the bill for one meter and month. The bill
// and all its details commit in one transaction; a bill that already exists
// for the meter and month fails with ErrDuplicateBill and writes nothing.
func (s *service) Generate(ctx context.Context, meterID snowflake.ID, billMonth time.Time) (*domain.Bill, error) {
	monthStart, monthEnd := domain.MonthWindow(billMonth)

	meter, err := s.meters.FindByID(ctx, s.db, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrNotFound
	}
	if meter.AccountID == nil || meter.RegionID == nil {
		return nil, domain.ErrMeterNotBound
	}

	var bill *domain.Bill
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		policies, err := s.resolver.Resolve(ctx, tx, *meter.RegionID, monthStart, monthEnd)
		if err != nil {
			return err
		}

		readings, err := s.readings.Readings(ctx, tx, meterID, monthStart, monthEnd)
		if err != nil {
			return err
		}

		result, err := rating.Compute(readings, policies)
		if err != nil {
			return err
		}
		for _, gap := range result.UncoveredIntervals {
			s.logger.Warn("consumption interval not covered by any policy",
				zap.String("meter_id", meterID.String()),
				zap.Time("start", gap.Start),
				zap.Time("end", gap.End),
				zap.Float64("electricity", gap.Electricity),
			)
		}

		primaryPolicy := policies[0].Policy.ID
		bill = &domain.Bill{
			ID:               s.genID.Generate(),
			AccountID:        *meter.AccountID,
			MeterID:          meterID,
			RegionID:         meter.RegionID,
			PolicyID:         &primaryPolicy,
			BillMonth:        monthStart,
			TotalElectricity: result.TotalElectricity,
			TotalAmount:      result.TotalAmount,
			Status:           domain.StatusUnpaid,
			DueDate:          monthEnd.AddDate(0, 0, s.billing.Get().DueDateOffsetDays),
			CreatedAt:        s.clock.Now(),
			UpdatedAt:        s.clock.Now(),
		}
		for _, b := range result.Buckets {
			bill.Details = append(bill.Details, domain.BillDetail{
				ID:          s.genID.Generate(),
				BillID:      bill.ID,
				PolicyID:    b.PolicyID,
				DetailType:  b.DetailType,
				LadderLevel: b.LadderLevel,
				TimePeriod:  b.TimePeriod,
				Electricity: b.Electricity,
				UnitPrice:   b.UnitPrice,
				Amount:      b.Amount,
			})
		}

		if err := s.billstore.WithTrx(tx).Create(ctx, bill); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateBill
			}
			return &domain.PersistenceError{Op: "generate", Err: err}
		}
		return nil
	})
	if txErr != nil {
		switch {
		case errors.Is(txErr, domain.ErrDuplicateBill):
			s.metrics.IncBillGenerated(metrics.ResultDuplicate)
		default:
			s.metrics.IncBillGenerated(metrics.ResultError)
		}
		return nil, txErr
	}

	s.metrics.IncBillGenerated(metrics.ResultOK)
	s.logger.Info("bill generated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("meter_id", meterID.String()),
		zap.Time("bill_month", monthStart),
		zap.Float64("total_amount", bill.TotalAmount),
	)

	s.notify(ctx, &notifdomain.Notification{
		Kind:      notifdomain.KindBillGenerated,
		AccountID: &bill.AccountID,
		RegionID:  bill.RegionID,
		RelatedID: &bill.ID,
		Title:     fmt.Sprintf("Electricity bill for %s", monthStart.Format("2006-01")),
		Body: fmt.Sprintf("Your bill for %s is %.2f (%.2f kWh), due %s.",
			monthStart.Format("January 2006"), bill.TotalAmount, bill.TotalElectricity,
			bill.DueDate.Format("2006-01-02")),
	})
	return bill, nil
}

// BatchGenerate runs Generate for every billable meter in scope. Per-meter
// failures are collected, not fatal; duplicates count as skips so re-running
// a batch is idempotent. The loop checks ctx between meters so a batch can
// be cancelled without leaving a half-written bill.
func (s *service) BatchGenerate(ctx context.Context, billMonth time.Time, regionID *snowflake.ID) (*BatchResult, error) {
	var scope []snowflake.ID
	if regionID != nil {
		ids, err := s.regions.ListSubtree(ctx, s.db, *regionID)
		if err != nil {
			return nil, err
		}
		scope = ids
	}

	meters, err := s.meters.ListBillable(ctx, s.db, scope)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Errors: map[snowflake.ID]string{}}
	for _, m := range meters {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if m.AccountID == nil || m.RegionID == nil {
			continue
		}

		_, err := s.Generate(ctx, m.ID, billMonth)
		switch {
		case err == nil:
			result.Generated++
		case errors.Is(err, domain.ErrDuplicateBill):
			result.Duplicates++
		default:
			result.Failed++
			result.Errors[m.ID] = err.Error()
			s.logger.Warn("bill generation failed",
				zap.String("meter_id", m.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("batch generation finished",
		zap.Time("bill_month", domain.NormalizeMonth(billMonth)),
		zap.Int("generated", result.Generated),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Pay records a payment. The amount must match the bill total within the
// configured tolerance; paying an overdue bill clears the debt and emits a
// debt-cleared notification.
func (s *service) Pay(ctx context.Context, billID snowflake.ID, amount float64, method string) (*domain.Bill, error) {
	var bill *domain.Bill
	var wasOverdue bool

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		found, err := s.bills.FindByID(ctx, tx, billID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrNotFound
		}
		if found.Status == domain.StatusPaid {
			return domain.ErrAlreadyPaid
		}
		if !money.Equal(amount, found.TotalAmount, s.billing.Get().PaymentTolerance) {
			return &domain.InvalidPaymentAmountError{Expected: found.TotalAmount, Got: amount}
		}

		wasOverdue = found.Status == domain.StatusOverdue
		now := s.clock.Now()
		found.Status = domain.StatusPaid
		found.PaidAt = &now
		found.PaymentMethod = method
		found.UpdatedAt = now

		if err := tx.WithContext(ctx).Model(&domain.Bill{}).
			Where("id = ?", billID).
			Updates(map[string]any{
				"status":         domain.StatusPaid,
				"paid_at":        now,
				"payment_method": method,
				"updated_at":     now,
			}).Error; err != nil {
			return &domain.PersistenceError{Op: "pay", Err: err}
		}
		bill = found
		return nil
	})
	if txErr != nil {
		var mismatch *domain.InvalidPaymentAmountError
		if errors.As(txErr, &mismatch) || errors.Is(txErr, domain.ErrAlreadyPaid) {
			s.metrics.IncBillPayment(metrics.ResultRejected)
		} else {
			s.metrics.IncBillPayment(metrics.ResultError)
		}
		return nil, txErr
	}

	s.metrics.IncBillPayment(metrics.ResultOK)
	if wasOverdue {
		s.notify(ctx, &notifdomain.Notification{
			Kind:      notifdomain.KindDebtCleared,
			AccountID: &bill.AccountID,
			RegionID:  bill.RegionID,
			RelatedID: &bill.ID,
			Title:     "Outstanding bill settled",
			Body: fmt.Sprintf("Payment of %.2f received for bill %s; the account is no longer in arrears.",
				amount, bill.ID.String()),
		})
	}
	return bill, nil
}

// Refund reverses a paid bill back to unpaid, clearing the payment metadata
// and recording who asked and why.
func (s *service) Refund(ctx context.Context, billID snowflake.ID, reason, actor string) (*domain.Bill, error) {
	var bill *domain.Bill

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		found, err := s.bills.FindByID(ctx, tx, billID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrNotFound
		}
		if found.Status != domain.StatusPaid {
			return domain.ErrNotPaid
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Model(&domain.Bill{}).
			Where("id = ?", billID).
			Updates(map[string]any{
				"status":         domain.StatusUnpaid,
				"paid_at":        nil,
				"payment_method": "",
				"refunded_at":    now,
				"refund_reason":  reason,
				"refund_actor":   actor,
				"updated_at":     now,
			}).Error; err != nil {
			return &domain.PersistenceError{Op: "refund", Err: err}
		}

		found.Status = domain.StatusUnpaid
		found.PaidAt = nil
		found.PaymentMethod = ""
		found.RefundedAt = &now
		found.RefundReason = reason
		found.RefundActor = actor
		found.UpdatedAt = now
		bill = found
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.Info("bill refunded",
		zap.String("bill_id", billID.String()),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	s.notify(ctx, &notifdomain.Notification{
		Kind:      notifdomain.KindRefund,
		AccountID: &bill.AccountID,
		RegionID:  bill.RegionID,
		RelatedID: &bill.ID,
		Title:     "Bill payment refunded",
		Body:      fmt.Sprintf("The payment for bill %s was refunded: %s", bill.ID.String(), reason),
	})
	return bill, nil
}

func (s *service) GetByID(ctx context.Context, billID snowflake.ID) (*domain.Bill, error) {
	bill, err := s.bills.FindByID(ctx, s.db, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrNotFound
	}
	return bill, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]*domain.Bill, error) {
	query := &domain.Bill{}
	if filter.AccountID != nil {
		query.AccountID = *filter.AccountID
	}
	if filter.MeterID != nil {
		query.MeterID = *filter.MeterID
	}
	query.Status = filter.Status

	opts := []option.QueryOption{option.OrderBy("bill_month DESC, id DESC")}
	if filter.MonthFrom != nil {
		opts = append(opts, option.Where("bill_month >= ?", *filter.MonthFrom))
	}
	if filter.MonthTo != nil {
		opts = append(opts, option.Where("bill_month <= ?", *filter.MonthTo))
	}
	if filter.Limit > 0 {
		opts = append(opts, option.Limit(filter.Limit))
	}
	if filter.Offset > 0 {
		opts = append(opts, option.Offset(filter.Offset))
	}

	return s.billstore.Find(ctx, query, opts...)
}

// SendArrearsReminders emits one summary notification per account holding
// unpaid or overdue bills, optionally scoped to a region subtree. Returns
// the number of accounts notified.
func (s *service) SendArrearsReminders(ctx context.Context, regionID *snowflake.ID) (int, error) {
	var scope []snowflake.ID
	if regionID != nil {
		ids, err := s.regions.ListSubtree(ctx, s.db, *regionID)
		if err != nil {
			return 0, err
		}
		scope = ids
	}

	outstanding, err := s.bills.ListOutstanding(ctx, s.db, scope)
	if err != nil {
		return 0, err
	}

	type arrears struct {
		count    int
		total    float64
		regionID *snowflake.ID
	}
	byAccount := map[snowflake.ID]*arrears{}
	order := []snowflake.ID{}
	for _, b := range outstanding {
		a, ok := byAccount[b.AccountID]
		if !ok {
			a = &arrears{regionID: b.RegionID}
			byAccount[b.AccountID] = a
			order = append(order, b.AccountID)
		}
		a.count++
		a.total = money.Sum(a.total, b.TotalAmount)
	}

	notified := 0
	for _, accountID := range order {
		a := byAccount[accountID]
		s.notify(ctx, &notifdomain.Notification{
			Kind:      notifdomain.KindArrears,
			AccountID: &accountID,
			RegionID:  a.regionID,
			Title:     "Outstanding electricity bills",
			Body: fmt.Sprintf("You have %d outstanding bill(s) totalling %.2f. Please settle them to avoid service interruption.",
				a.count, a.total),
		})
		notified++
	}
	return notified, nil
}

// notify dispatches fire-and-forget; a sink failure is logged, never returned.
func (s *service) notify(ctx context.Context, n *notifdomain.Notification) {
	if err := s.notifier.Notify(ctx, s.db, n); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
	}
}
