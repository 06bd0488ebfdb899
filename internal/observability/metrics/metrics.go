// Package metrics exposes prometheus instruments for the billing engine and
// the sweeper jobs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BillingMetrics struct {
	billsGenerated *prometheus.CounterVec
	billPayments   *prometheus.CounterVec
	sweepMoved     prometheus.Counter
	notifications  *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
}

var (
	once     sync.Once
	instance *BillingMetrics
)

// Billing returns the process-wide instrument set, registering it on first use.
func Billing() *BillingMetrics {
	once.Do(func() {
		instance = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return instance
}

func newBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	m := &BillingMetrics{
		billsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbill_bills_generated_total",
			Help: "Bills generated, by result.",
		}, []string{"result"}),
		billPayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbill_bill_payments_total",
			Help: "Payment attempts, by result.",
		}, []string{"result"}),
		sweepMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbill_overdue_transitions_total",
			Help: "Bills moved from unpaid to overdue by the sweeper.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbill_notifications_total",
			Help: "Notification dispatches, by kind and result.",
		}, []string{"kind", "result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbill_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbill_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridbill_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	for _, c := range []prometheus.Collector{
		m.billsGenerated, m.billPayments, m.sweepMoved,
		m.notifications, m.jobRuns, m.jobErrors, m.jobDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return m
}

func (m *BillingMetrics) IncBillGenerated(result string) {
	m.billsGenerated.WithLabelValues(result).Inc()
}

func (m *BillingMetrics) IncBillPayment(result string) {
	m.billPayments.WithLabelValues(result).Inc()
}

func (m *BillingMetrics) AddOverdueTransitions(n int) {
	m.sweepMoved.Add(float64(n))
}

func (m *BillingMetrics) IncNotification(kind, result string) {
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *BillingMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
)
