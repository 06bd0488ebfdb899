package scheduler

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billdomain "github.com/gridbill/gridbill/internal/bill/domain"
	notifdomain "github.com/gridbill/gridbill/internal/notification/domain"
)

// SweepOverdueJob moves unpaid bills past their due date to overdue and
// sends one reminder per bill, returning how many bills transitioned. The
// claim and the status flip share a transaction; reminders go out after
// commit so a notification failure cannot roll back the transition.
func (s *Sweeper) SweepOverdueJob(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var swept []billdomain.Bill
	err := s.db.Transaction(func(tx *gorm.DB) error {
		claimed, err := s.bills.ClaimDueUnpaid(ctx, tx, now, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(claimed))
		for _, b := range claimed {
			ids = append(ids, b.ID)
		}
		moved, err := s.bills.MarkOverdue(ctx, tx, ids, now)
		if err != nil {
			return err
		}
		s.metrics.AddOverdueTransitions(int(moved))
		swept = claimed
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(swept) == 0 {
		return 0, nil
	}

	s.log.Info("overdue sweep finished",
		zap.Int("transitioned", len(swept)),
		zap.Time("now", now),
	)

	for _, b := range swept {
		n := &notifdomain.Notification{
			Kind:      notifdomain.KindOverdue,
			AccountID: &b.AccountID,
			RegionID:  b.RegionID,
			RelatedID: &b.ID,
			Title:     "Electricity bill overdue",
			Body: fmt.Sprintf("Your bill for %s (%.2f) was due on %s and is now overdue.",
				b.BillMonth.Format("January 2006"), b.TotalAmount, b.DueDate.Format("2006-01-02")),
		}
		if err := s.notifier.Notify(ctx, s.db, n); err != nil {
			s.log.Warn("overdue reminder failed",
				zap.String("bill_id", b.ID.String()),
				zap.Error(err),
			)
		}
	}
	return len(swept), nil
}

// CutoffWarningJob escalates bills overdue longer than the configured
// threshold: the region manager gets one high-severity summary per region
// and each account holder a direct warning. Bills are stamped so the
// escalation fires once.
func (s *Sweeper) CutoffWarningJob(ctx context.Context) error {
	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, -s.billing.Get().CutoffWarningDays)

	var flagged []billdomain.Bill
	err := s.db.Transaction(func(tx *gorm.DB) error {
		claimed, err := s.bills.ClaimOverdueBefore(ctx, tx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(claimed))
		for _, b := range claimed {
			ids = append(ids, b.ID)
		}
		if err := tx.WithContext(ctx).Model(&billdomain.Bill{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"cutoff_warned_at": now, "updated_at": now}).Error; err != nil {
			return err
		}
		flagged = claimed
		return nil
	})
	if err != nil {
		return err
	}
	if len(flagged) == 0 {
		return nil
	}

	type group struct {
		bills []billdomain.Bill
		total float64
	}
	byRegion := map[snowflake.ID]*group{}
	for _, b := range flagged {
		s.warnAccount(ctx, b)
		if b.RegionID == nil {
			continue
		}
		g, ok := byRegion[*b.RegionID]
		if !ok {
			g = &group{}
			byRegion[*b.RegionID] = g
		}
		g.bills = append(g.bills, b)
		g.total += b.TotalAmount
	}

	for regionID, g := range byRegion {
		region, err := s.regions.FindByID(ctx, s.db, regionID)
		if err != nil || region == nil {
			s.log.Warn("cutoff escalation region lookup failed",
				zap.String("region_id", regionID.String()),
				zap.Error(err),
			)
			continue
		}
		if region.ManagerID == nil {
			s.log.Warn("region has no manager for cutoff escalation",
				zap.String("region_code", region.Code),
			)
			continue
		}

		n := &notifdomain.Notification{
			Kind:      notifdomain.KindCutoffWarning,
			Severity:  notifdomain.SeverityHigh,
			AccountID: region.ManagerID,
			RegionID:  &regionID,
			Title:     fmt.Sprintf("Cutoff candidates in %s", region.Name),
			Body: fmt.Sprintf("%d bill(s) in %s have been overdue for more than %d days, %.2f outstanding in total.",
				len(g.bills), region.Name, s.billing.Get().CutoffWarningDays, g.total),
		}
		if err := s.notifier.Notify(ctx, s.db, n); err != nil {
			s.log.Warn("cutoff escalation failed",
				zap.String("region_id", regionID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Sweeper) warnAccount(ctx context.Context, b billdomain.Bill) {
	n := &notifdomain.Notification{
		Kind:      notifdomain.KindCutoffWarning,
		Severity:  notifdomain.SeverityHigh,
		AccountID: &b.AccountID,
		RegionID:  b.RegionID,
		RelatedID: &b.ID,
		Title:     "Service cutoff warning",
		Body: fmt.Sprintf("Your bill for %s (%.2f) has been overdue for more than %d days. Settle it immediately to avoid disconnection.",
			b.BillMonth.Format("January 2006"), b.TotalAmount, s.billing.Get().CutoffWarningDays),
	}
	if err := s.notifier.Notify(ctx, s.db, n); err != nil {
		s.log.Warn("cutoff warning failed",
			zap.String("bill_id", b.ID.String()),
			zap.Error(err),
		)
	}
}

// GenerateBillsJob batch-generates last month's bills on the configured day
// of month. Re-runs on the same day are harmless: existing bills surface as
// duplicates and are skipped.
func (s *Sweeper) GenerateBillsJob(ctx context.Context) error {
	day := s.billing.Get().AutoGenerateDay
	if day <= 0 {
		return nil
	}

	now := s.clock.Now()
	if now.Day() != day {
		return nil
	}

	prevMonth := billdomain.NormalizeMonth(now).AddDate(0, -1, 0)
	result, err := s.ledger.BatchGenerate(ctx, prevMonth, nil)
	if err != nil {
		return err
	}
	s.log.Info("automatic bill generation finished",
		zap.Time("bill_month", prevMonth),
		zap.Int("generated", result.Generated),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failed", result.Failed),
	)
	return nil
}
