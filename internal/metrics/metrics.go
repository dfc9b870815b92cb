// Package metrics exposes Prometheus collectors for the buy engine.
//
// A nil *Metrics is valid and records nothing, so components can accept one
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/buyflow/internal/poll"
)

// Prometheus metric names.
const (
	MetricIntentsTotal          = "buyflow_intents_total"
	MetricPollsTotal            = "buyflow_polls_total"
	MetricPollAttempts          = "buyflow_poll_attempts"
	MetricOrdersCreatedTotal    = "buyflow_orders_created_total"
	MetricOrdersCancelledTotal  = "buyflow_orders_cancelled_total"
	MetricQuoteRefreshesTotal   = "buyflow_quote_refreshes_total"
	MetricLifecycleErrorsTotal  = "buyflow_lifecycle_errors_total"
	MetricReconciliationsTotal  = "buyflow_reconciliations_total"
	MetricSnapshotFailuresTotal = "buyflow_snapshot_failures_total"
)

// Metrics holds every collector. Create it with New.
type Metrics struct {
	intents          *prometheus.CounterVec
	polls            *prometheus.CounterVec
	pollAttempts     *prometheus.HistogramVec
	ordersCreated    prometheus.Counter
	ordersCancelled  prometheus.Counter
	quoteRefreshes   prometheus.Counter
	lifecycleErrors  prometheus.Counter
	reconciliations  *prometheus.CounterVec
	snapshotFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricIntentsTotal,
			Help: "Intents processed by the reducer, by name and whether the guard accepted them.",
		}, []string{"intent", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPollsTotal,
			Help: "Finished polls by name and outcome.",
		}, []string{"poll", "outcome"}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricPollAttempts,
			Help:    "Producer calls made per finished poll.",
			Buckets: []float64{1, 2, 3, 6, 12},
		}, []string{"poll"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOrdersCreatedTotal,
			Help: "Orders created by the lifecycle controller.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOrdersCancelledTotal,
			Help: "Superseded or abandoned orders cancelled remotely.",
		}),
		quoteRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricQuoteRefreshesTotal,
			Help: "Quote refresh timer ticks.",
		}),
		lifecycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLifecycleErrorsTotal,
			Help: "Failed create/cancel cycles in the lifecycle controller.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricReconciliationsTotal,
			Help: "Reconciliations by the source of the resolved state.",
		}, []string{"source"}),
		snapshotFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSnapshotFailuresTotal,
			Help: "Snapshot store failures by operation.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.intents, m.polls, m.pollAttempts,
			m.ordersCreated, m.ordersCancelled, m.quoteRefreshes, m.lifecycleErrors,
			m.reconciliations, m.snapshotFailures,
		)
	}
	return m
}

// IntentProcessed counts an intent the reducer applied or skipped.
func (m *Metrics) IntentProcessed(name string, applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "skipped"
	}
	m.intents.WithLabelValues(name, result).Inc()
}

// PollObserver returns an observer that records poll outcomes.
func (m *Metrics) PollObserver() poll.Observer {
	if m == nil {
		return nil
	}
	return func(name string, outcome poll.Outcome, attempts int) {
		m.polls.WithLabelValues(name, outcome.String()).Inc()
		m.pollAttempts.WithLabelValues(name).Observe(float64(attempts))
	}
}

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.ordersCreated.Inc()
	}
}

func (m *Metrics) OrderCancelled() {
	if m != nil {
		m.ordersCancelled.Inc()
	}
}

func (m *Metrics) QuoteRefreshed() {
	if m != nil {
		m.quoteRefreshes.Inc()
	}
}

func (m *Metrics) LifecycleError() {
	if m != nil {
		m.lifecycleErrors.Inc()
	}
}

// Reconciled counts a reconciliation by where its result came from.
func (m *Metrics) Reconciled(source string) {
	if m != nil {
		m.reconciliations.WithLabelValues(source).Inc()
	}
}

// SnapshotFailed counts a failed snapshot store operation.
func (m *Metrics) SnapshotFailed(op string) {
	if m != nil {
		m.snapshotFailures.WithLabelValues(op).Inc()
	}
}
