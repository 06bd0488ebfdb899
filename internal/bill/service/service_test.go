package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gridbill/gridbill/internal/account/domain"
	accountrepo "github.com/gridbill/gridbill/internal/account/repository"
	"github.com/gridbill/gridbill/internal/bill/domain"
	billrepo "github.com/gridbill/gridbill/internal/bill/repository"
	"github.com/gridbill/gridbill/internal/clock"
	"github.com/gridbill/gridbill/internal/config"
	meterdomain "github.com/gridbill/gridbill/internal/meter/domain"
	meterrepo "github.com/gridbill/gridbill/internal/meter/repository"
	notifdomain "github.com/gridbill/gridbill/internal/notification/domain"
	policydomain "github.com/gridbill/gridbill/internal/policy/domain"
	policyrepo "github.com/gridbill/gridbill/internal/policy/repository"
	policyservice "github.com/gridbill/gridbill/internal/policy/service"
	"github.com/gridbill/gridbill/internal/rating"
	readingdomain "github.com/gridbill/gridbill/internal/reading/domain"
	readingrepo "github.com/gridbill/gridbill/internal/reading/repository"
	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
	regionrepo "github.com/gridbill/gridbill/internal/region/repository"
)

type recordingSink struct {
	sent []notifdomain.Notification
}

func (s *recordingSink) Notify(ctx context.Context, db *gorm.DB, n *notifdomain.Notification) error {
	s.sent = append(s.sent, *n)
	return nil
}

func (s *recordingSink) byKind(kind notifdomain.Kind) []notifdomain.Notification {
	var out []notifdomain.Notification
	for _, n := range s.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	db     *gorm.DB
	ledger Ledger
	sink   *recordingSink
	clock  *clock.FakeClock
	node   *snowflake.Node

	region  regiondomain.Region
	account accountdomain.Account
	meter   meterdomain.Meter
}

var billingStart = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&regiondomain.Region{},
		&accountdomain.Account{},
		&meterdomain.Meter{},
		&readingdomain.MeterReading{},
		&policydomain.PricePolicy{},
		&policydomain.LadderRule{},
		&policydomain.TimeShareRule{},
		&domain.Bill{},
		&domain.BillDetail{},
		&notifdomain.Notification{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	logger := zap.NewNop()
	sink := &recordingSink{}
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC))

	regions := regionrepo.New()
	resolver := policyservice.NewResolver(policyservice.Params{
		Logger:   logger,
		Policies: policyrepo.NewRepository(),
		Regions:  regions,
	})

	ledger := NewLedger(Params{
		DB:       db,
		Logger:   logger,
		GenID:    node,
		Clock:    fakeClock,
		Billing:  config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Bills:    billrepo.NewRepository(),
		Meters:   meterrepo.New(),
		Regions:  regions,
		Accounts: accountrepo.New(),
		Readings: readingrepo.New(),
		Resolver: resolver,
		Notifier: sink,
	})

	f := &fixture{db: db, ledger: ledger, sink: sink, clock: fakeClock, node: node}

	f.region = regiondomain.Region{ID: node.Generate(), Code: "east", Name: "East District"}
	require.NoError(t, db.Create(&f.region).Error)
	f.account = accountdomain.Account{ID: node.Generate(), Email: "resident@example.com", Name: "Resident", RegionID: &f.region.ID, Active: true}
	require.NoError(t, db.Create(&f.account).Error)
	f.meter = meterdomain.Meter{
		ID:          node.Generate(),
		Code:        "MTR-0001",
		AccountID:   &f.account.ID,
		RegionID:    &f.region.ID,
		Status:      meterdomain.StatusNormal,
		InstalledAt: billingStart.AddDate(-1, 0, 0),
	}
	require.NoError(t, db.Create(&f.meter).Error)
	return f
}

func (f *fixture) seedPolicy(t *testing.T, base float64) policydomain.PricePolicy {
	t.Helper()
	policy := policydomain.PricePolicy{
		ID:            f.node.Generate(),
		RegionID:      f.region.ID,
		Name:          "standard",
		PriceType:     policydomain.PriceTypeLadder,
		BaseUnitPrice: base,
		StartTime:     billingStart.AddDate(-1, 0, 0),
		Active:        true,
	}
	require.NoError(t, f.db.Create(&policy).Error)
	max := 100.0
	require.NoError(t, f.db.Create(&policydomain.LadderRule{
		ID: f.node.Generate(), PolicyID: policy.ID,
		Level: policydomain.LadderLow, MinElectricity: 0, MaxElectricity: &max, Ratio: 1.0,
	}).Error)
	require.NoError(t, f.db.Create(&policydomain.LadderRule{
		ID: f.node.Generate(), PolicyID: policy.ID,
		Level: policydomain.LadderHigh, MinElectricity: 100, Ratio: 2.0,
	}).Error)
	return policy
}

func (f *fixture) seedReadings(t *testing.T, values map[time.Time]float64) {
	t.Helper()
	for ts, v := range values {
		require.NoError(t, f.db.Create(&readingdomain.MeterReading{
			ID: f.node.Generate(), MeterID: f.meter.ID, Value: v, RecordedAt: ts,
		}).Error)
	}
}

func (f *fixture) seedStandardReadings(t *testing.T) {
	f.seedReadings(t, map[time.Time]float64{
		billingStart:                     1000.0,
		billingStart.AddDate(0, 0, 10):   1030.0,
		billingStart.AddDate(0, 0, 20):   1060.0,
		billingStart.AddDate(0, 1, 0).Add(-time.Hour): 1090.0,
	})
}

func TestGenerate_PersistsBillWithDetails(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)

	bill, err := f.ledger.Generate(context.Background(), f.meter.ID, billingStart)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnpaid, bill.Status)
	assert.Equal(t, 90.0, bill.TotalElectricity)
	assert.Equal(t, 45.0, bill.TotalAmount)
	assert.True(t, bill.BillMonth.Equal(billingStart))

	// due date = month end + 15 days
	wantDue := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC)
	assert.True(t, bill.DueDate.Equal(wantDue))

	stored, err := f.ledger.GetByID(context.Background(), bill.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.Details)

	sum := 0.0
	for _, d := range stored.Details {
		sum += d.Amount
	}
	assert.InDelta(t, stored.TotalAmount, sum, 0.01)

	require.Len(t, f.sink.byKind(notifdomain.KindBillGenerated), 1)
}

func TestGenerate_SecondCallFailsWithDuplicate(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	_, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	_, err = f.ledger.Generate(ctx, f.meter.ID, billingStart.AddDate(0, 0, 14))
	assert.ErrorIs(t, err, domain.ErrDuplicateBill)

	var count int64
	require.NoError(t, f.db.Model(&domain.Bill{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGenerate_InsufficientReadings(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedReadings(t, map[time.Time]float64{billingStart: 1000.0})

	_, err := f.ledger.Generate(context.Background(), f.meter.ID, billingStart)
	assert.ErrorIs(t, err, rating.ErrInsufficientData)

	var count int64
	require.NoError(t, f.db.Model(&domain.Bill{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerate_UnboundMeter(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)

	orphan := meterdomain.Meter{
		ID: f.node.Generate(), Code: "MTR-0002",
		Status: meterdomain.StatusNormal, InstalledAt: billingStart,
	}
	require.NoError(t, f.db.Create(&orphan).Error)

	_, err := f.ledger.Generate(context.Background(), orphan.ID, billingStart)
	assert.ErrorIs(t, err, domain.ErrMeterNotBound)
}

func TestGenerate_NoPolicyInChain(t *testing.T) {
	f := newFixture(t)
	f.seedStandardReadings(t)

	_, err := f.ledger.Generate(context.Background(), f.meter.ID, billingStart)
	var notFound *policydomain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPay_HappyPathAndTolerance(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)
	require.Equal(t, 45.0, bill.TotalAmount)

	// 0.01 off is the boundary and is accepted
	paid, err := f.ledger.Pay(ctx, bill.ID, 45.01, "bank_transfer")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, "bank_transfer", paid.PaymentMethod)
}

func TestPay_RejectsMismatchedAmount(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	_, err = f.ledger.Pay(ctx, bill.ID, 40.00, "cash")
	var mismatch *domain.InvalidPaymentAmountError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 45.0, mismatch.Expected)
	assert.Equal(t, 40.0, mismatch.Got)

	stored, err := f.ledger.GetByID(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnpaid, stored.Status)
}

func TestPay_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	_, err = f.ledger.Pay(ctx, bill.ID, 45.0, "cash")
	require.NoError(t, err)
	_, err = f.ledger.Pay(ctx, bill.ID, 45.0, "cash")
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestPay_OverdueBillEmitsDebtCleared(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	now := f.clock.Now()
	require.NoError(t, f.db.Model(&domain.Bill{}).Where("id = ?", bill.ID).
		Updates(map[string]any{"status": domain.StatusOverdue, "overdue_at": now}).Error)

	_, err = f.ledger.Pay(ctx, bill.ID, 45.0, "cash")
	require.NoError(t, err)
	require.Len(t, f.sink.byKind(notifdomain.KindDebtCleared), 1)
}

func TestRefund_RevertsToUnpaid(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)
	_, err = f.ledger.Pay(ctx, bill.ID, 45.0, "cash")
	require.NoError(t, err)

	refunded, err := f.ledger.Refund(ctx, bill.ID, "double charge", "ops@gridbill")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnpaid, refunded.Status)
	assert.Nil(t, refunded.PaidAt)
	assert.Empty(t, refunded.PaymentMethod)
	assert.Equal(t, "double charge", refunded.RefundReason)
	assert.Equal(t, "ops@gridbill", refunded.RefundActor)
	require.Len(t, f.sink.byKind(notifdomain.KindRefund), 1)

	// refunded bill can be paid again
	_, err = f.ledger.Pay(ctx, bill.ID, 45.0, "card")
	require.NoError(t, err)
}

func TestRefund_OnlyFromPaid(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	_, err = f.ledger.Refund(ctx, bill.ID, "nope", "ops")
	assert.ErrorIs(t, err, domain.ErrNotPaid)
}

func TestBatchGenerate_CollectsPerMeterFailures(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	// second meter has no readings, so its generation fails
	starved := meterdomain.Meter{
		ID: f.node.Generate(), Code: "MTR-0003",
		AccountID: &f.account.ID, RegionID: &f.region.ID,
		Status: meterdomain.StatusNormal, InstalledAt: billingStart,
	}
	require.NoError(t, f.db.Create(&starved).Error)

	// scrapped meters are out of scope entirely
	require.NoError(t, f.db.Create(&meterdomain.Meter{
		ID: f.node.Generate(), Code: "MTR-0004",
		AccountID: &f.account.ID, RegionID: &f.region.ID,
		Status: meterdomain.StatusScrapped, InstalledAt: billingStart,
	}).Error)

	result, err := f.ledger.BatchGenerate(ctx, billingStart, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors[starved.ID], "insufficient")

	// re-running skips the existing bill instead of failing the batch
	result, err = f.ledger.BatchGenerate(ctx, billingStart, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)
	assert.Equal(t, 1, result.Duplicates)
}

func TestBatchGenerate_HonorsContextCancellation(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.BatchGenerate(ctx, billingStart, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	bill, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	unpaid, err := f.ledger.List(ctx, ListFilter{Status: domain.StatusUnpaid})
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, bill.ID, unpaid[0].ID)

	paid, err := f.ledger.List(ctx, ListFilter{Status: domain.StatusPaid})
	require.NoError(t, err)
	assert.Empty(t, paid)
}

func TestSendArrearsReminders_OnePerAccount(t *testing.T) {
	f := newFixture(t)
	f.seedPolicy(t, 0.5)
	f.seedStandardReadings(t)
	ctx := context.Background()

	_, err := f.ledger.Generate(ctx, f.meter.ID, billingStart)
	require.NoError(t, err)

	// a second unpaid bill for the same account, previous month
	prev := billingStart.AddDate(0, -1, 0)
	f.seedReadings(t, map[time.Time]float64{
		prev:                   900.0,
		prev.AddDate(0, 0, 15): 1000.0,
	})
	_, err = f.ledger.Generate(ctx, f.meter.ID, prev)
	require.NoError(t, err)

	notified, err := f.ledger.SendArrearsReminders(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
	require.Len(t, f.sink.byKind(notifdomain.KindArrears), 1)
}
