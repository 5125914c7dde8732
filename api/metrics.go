package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shift"
)

const namespace = "shifts"

// Metrics records lifecycle events and HTTP traffic on its own registry.
// It implements shift.Observer.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	corrections  prometheus.Counter
	itemsAdded   *prometheus.CounterVec
	itemsDeleted prometheus.Counter
	rejections   *prometheus.CounterVec
	redFlags     prometheus.Gauge
	requests     *prometheus.HistogramVec
}

var _ shift.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Shift status transitions. from is empty for creations.",
		}, []string{"from", "to"}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_total",
			Help:      "Audit corrections recorded.",
		}),
		itemsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_added_total",
			Help:      "Over/short items added, by kind.",
		}, []string{"kind"}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_deleted_total",
			Help:      "Over/short items deleted.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected mutations, by operation and error category.",
		}, []string{"op", "category"}),
		redFlags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "red_flag_shifts",
			Help:      "Shifts with a non-zero, unexplained total over/short, as of the last sweep.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions, m.corrections, m.itemsAdded, m.itemsDeleted,
		m.rejections, m.redFlags, m.requests,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// =============================================================================
// shift.Observer
// =============================================================================

func (m *Metrics) Transitioned(from, to shift.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) CorrectionsRecorded(n int) { m.corrections.Add(float64(n)) }

func (m *Metrics) ItemAdded(kind activity.Kind) { m.itemsAdded.WithLabelValues(string(kind)).Inc() }

func (m *Metrics) ItemDeleted() { m.itemsDeleted.Inc() }

func (m *Metrics) Rejected(op string, err error) {
	m.rejections.WithLabelValues(op, errorCategory(err)).Inc()
}

// SetRedFlags records the result of a red flag sweep.
func (m *Metrics) SetRedFlags(n int) { m.redFlags.Set(float64(n)) }

func errorCategory(err error) string {
	switch {
	case generic.IsClientError(err):
		return "validation"
	case generic.IsConflict(err):
		return "conflict"
	case generic.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}

// =============================================================================
// HTTP INSTRUMENTATION
// =============================================================================

// Instrument observes request latency labelled by the matched chi route
// pattern, so /api/shifts/{id} is one series rather than one per id.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
