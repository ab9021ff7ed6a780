package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// Recorder exports service counters on the given registry.
type Recorder struct {
	experimentTransitions *prometheus.CounterVec
	payoutDecisions       *prometheus.CounterVec
	earningsRecorded      *prometheus.CounterVec
	earningsAmount        *prometheus.CounterVec
	eventsConsumed        *prometheus.CounterVec
	httpRequests          *prometheus.CounterVec
	httpDuration          *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		experimentTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "m62",
			Name:      "experiment_transitions_total",
			Help:      "Experiment status transition attempts by edge and outcome.",
		}, []string{"from", "to", "outcome"}),
		payoutDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "m62",
			Name:      "payout_decisions_total",
			Help:      "Payout gate decisions by outcome.",
		}, []string{"outcome"}),
		earningsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "m62",
			Name:      "earnings_period_writes_total",
			Help:      "Earnings period writes by resulting status.",
		}, []string{"status"}),
		earningsAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "m62",
			Name:      "earnings_amount_total",
			Help:      "Sum of earnings amounts written, by resulting status.",
		}, []string{"status"}),
		eventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "m62",
			Name:      "events_consumed_total",
			Help:      "Inbound events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "m62",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "m62",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method", "route"}),
	}
}

func (r *Recorder) ObserveExperimentTransition(from, to, outcome string) {
	r.experimentTransitions.WithLabelValues(from, to, outcome).Inc()
}

func (r *Recorder) ObservePayoutDecision(outcome string) {
	r.payoutDecisions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveEarningsRecorded(status string, amount float64) {
	r.earningsRecorded.WithLabelValues(status).Inc()
	if amount > 0 {
		r.earningsAmount.WithLabelValues(status).Add(amount)
	}
}

func (r *Recorder) ObserveEventConsumed(eventType, outcome string) {
	r.eventsConsumed.WithLabelValues(eventType, outcome).Inc()
}

func (r *Recorder) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ ports.Metrics = (*Recorder)(nil)
