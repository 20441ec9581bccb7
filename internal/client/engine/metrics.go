package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine activity. A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
	queued    *prometheus.CounterVec
	flushed   *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	flushTime *prometheus.HistogramVec
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophcache",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Backend requests issued by the engine.",
		}, []string{"model", "operation", "result"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophcache",
			Subsystem: "engine",
			Name:      "cache_hits_total",
			Help:      "Get calls served from the cache.",
		}, []string{"model"}),
		queued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophcache",
			Subsystem: "engine",
			Name:      "queued_actions_total",
			Help:      "Local writes added to the action queue.",
		}, []string{"model", "action"}),
		flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophcache",
			Subsystem: "engine",
			Name:      "flushed_actions_total",
			Help:      "Queued actions processed by a flush.",
		}, []string{"model", "result"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophcache",
			Subsystem: "engine",
			Name:      "cancelled_actions_total",
			Help:      "Queued actions dropped by a cancel.",
		}, []string{"model"}),
		flushTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gophcache",
			Subsystem: "engine",
			Name:      "flush_duration_seconds",
			Help:      "Duration of action queue flushes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.cacheHits, m.queued, m.flushed, m.cancelled, m.flushTime} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Request counts one backend request.
func (m *Metrics) Request(model, operation string, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(model, operation, result(err)).Inc()
}

// CacheHit counts a Get served without a request.
func (m *Metrics) CacheHit(model string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(model).Inc()
}

// Queued counts one queued action.
func (m *Metrics) Queued(model, action string) {
	if m == nil {
		return
	}
	m.queued.WithLabelValues(model, action).Inc()
}

// Flush records the outcome of one model flush.
func (m *Metrics) Flush(model string, sent, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.flushed.WithLabelValues(model, "success").Add(float64(sent))
	m.flushed.WithLabelValues(model, "error").Add(float64(failed))
	m.flushTime.WithLabelValues(model).Observe(d.Seconds())
}

// Cancel counts dropped queued actions.
func (m *Metrics) Cancel(model string, n int) {
	if m == nil {
		return
	}
	m.cancelled.WithLabelValues(model).Add(float64(n))
}
