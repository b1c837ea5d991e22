package statebag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for item execution and exposes them
// as a middleware.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statebag",
			Name:      "items_total",
			Help:      "Number of executed batch items by action and status.",
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statebag",
			Name:      "item_duration_seconds",
			Help:      "Duration of batch item execution by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}

	reg.MustRegister(m.ops, m.duration)
	return m
}

// Middleware returns a middleware that records a counter increment and a
// duration observation for every item passing through it.
func (m *Metrics) Middleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx *ItemContext) ([]Record, error) {
			start := time.Now()
			records, err := next(ctx)

			status := "ok"
			if err != nil {
				status = "error"
			}
			action := string(ctx.Item.Action)
			m.ops.WithLabelValues(action, status).Inc()
			m.duration.WithLabelValues(action).Observe(time.Since(start).Seconds())

			return records, err
		}
	}
}
