// Package scheduler runs the periodic billing jobs: the overdue sweep, the
// cutoff escalation and automatic bill generation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billdomain "github.com/gridbill/gridbill/internal/bill/domain"
	billservice "github.com/gridbill/gridbill/internal/bill/service"
	"github.com/gridbill/gridbill/internal/clock"
	"github.com/gridbill/gridbill/internal/config"
	notifdomain "github.com/gridbill/gridbill/internal/notification/domain"
	"github.com/gridbill/gridbill/internal/observability/metrics"
	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	Bills    billdomain.Repository
	Regions  regiondomain.Repository
	Ledger   billservice.Ledger
	Notifier notifdomain.Sink
	Config   Config `optional:"true"`
}

// Sweeper drives the bill status state machine forward on a timer.
type Sweeper struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	bills    billdomain.Repository
	regions  regiondomain.Repository
	ledger   billservice.Ledger
	notifier notifdomain.Sink
	metrics  *metrics.BillingMetrics
}

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Billing == nil ||
		p.Bills == nil || p.Regions == nil || p.Ledger == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		billing:  p.Billing,
		bills:    p.Bills,
		regions:  p.Regions,
		ledger:   p.Ledger,
		notifier: p.Notifier,
		metrics:  metrics.Billing(),
	}, nil
}

func (s *Sweeper) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	s.metrics.IncJobRun(name)
	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", runID),
			zap.Duration("timeout", s.cfg.JobTimeout),
		)
		return nil
	}
	s.log.Error("job failed",
		zap.String("job", name),
		zap.String("run_id", runID),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job once and joins their failures. A
// failing job never blocks the others.
func (s *Sweeper) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"sweep_overdue", func(ctx context.Context) error {
			_, err := s.SweepOverdueJob(ctx)
			return err
		}},
		{"cutoff_warning", s.CutoffWarningJob},
		{"generate_bills", s.GenerateBillsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweeper run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// isJobEnabled defaults to all jobs when no allow-list is configured.
func (s *Sweeper) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
