package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"walletcore.com/internal/domain/port"
)

var _ port.MetricsRecorder = (*Recorder)(nil)

// Recorder publishes ledger and authorization outcomes to Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	movements       *prometheus.CounterVec
	authorizations  *prometheus.CounterVec
	authLatency     prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

// NewRecorder registers the collectors on a private registry so several
// recorders (one per test) never collide.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_movements_total",
			Help: "Topups, transfers and payments by kind and outcome.",
		}, []string{"kind", "outcome"}),
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_authorizations_total",
			Help: "Card authorization decisions by action code.",
		}, []string{"action_code", "replayed"}),
		authLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_authorization_duration_seconds",
			Help:    "Time to decide or replay a card authorization.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	r.registry.MustRegister(
		r.movements,
		r.authorizations,
		r.authLatency,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveMovement counts a movement by kind and outcome.
func (r *Recorder) ObserveMovement(kind, outcome string) {
	r.movements.WithLabelValues(kind, outcome).Inc()
}

// ObserveAuthorization counts an authorization decision and records its latency.
func (r *Recorder) ObserveAuthorization(actionCode string, replayed bool, duration time.Duration) {
	r.authorizations.WithLabelValues(actionCode, strconv.FormatBool(replayed)).Inc()
	r.authLatency.Observe(duration.Seconds())
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, duration time.Duration) {
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
