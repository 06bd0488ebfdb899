package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gridbill/gridbill/internal/account/domain"
	"github.com/gridbill/gridbill/internal/notification/domain"
	"github.com/gridbill/gridbill/internal/observability/metrics"
	"github.com/gridbill/gridbill/internal/providers/email"
)

type Params struct {
	fx.In

	Logger   *zap.Logger
	GenID    *snowflake.Node
	Accounts accountdomain.Repository
	Email    email.Provider
}

type service struct {
	logger   *zap.Logger
	genID    *snowflake.Node
	accounts accountdomain.Repository
	email    email.Provider
	metrics  *metrics.BillingMetrics
}

// New constructs the store-backed notification sink.
func New(p Params) domain.Sink {
	return &service{
		logger:   p.Logger.Named("notification.service"),
		genID:    p.GenID,
		accounts: p.Accounts,
		email:    p.Email,
		metrics:  metrics.Billing(),
	}
}

// Notify persists the notification and mirrors it to the account's email
// when one is on file. The email leg is best-effort; a delivery failure is
// logged and does not fail the call.
func (s *service) Notify(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == 0 {
		n.ID = s.genID.Generate()
	}
	if n.Severity == "" {
		n.Severity = domain.SeverityNormal
	}

	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		s.metrics.IncNotification(string(n.Kind), metrics.ResultError)
		return err
	}
	s.metrics.IncNotification(string(n.Kind), metrics.ResultOK)

	if n.AccountID == nil {
		return nil
	}
	account, err := s.accounts.FindByID(ctx, db, *n.AccountID)
	if err != nil || account == nil || account.Email == "" {
		return nil
	}
	if err := s.email.Send(ctx, []string{account.Email}, n.Title, n.Body); err != nil {
		s.logger.Warn("email delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
	}
	return nil
}
