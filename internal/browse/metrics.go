package browse

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is a no-op then.
type Metrics struct {
	Applied    prometheus.Counter
	Superseded prometheus.Counter
	FilterTime prometheus.Histogram
	Rows       prometheus.Histogram
	Sessions   prometheus.Gauge
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Applied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browse_recomputes_applied_total",
			Help: "Deferred recomputes whose result reached the view",
		}),
		Superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browse_recomputes_superseded_total",
			Help: "Deferred recomputes abandoned for a newer input",
		}),
		FilterTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "browse_filter_duration_seconds",
			Help:    "Time spent filtering the joined records",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		Rows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "browse_rendered_rows",
			Help:    "Rows realized per window frame",
			Buckets: prometheus.LinearBuckets(0, 4, 8),
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "browse_sessions",
			Help: "Live browsing sessions",
		}),
	}

	reg.MustRegister(m.Applied, m.Superseded, m.FilterTime, m.Rows, m.Sessions)
	return m
}

func (m *Metrics) applied() {
	if m != nil {
		m.Applied.Inc()
	}
}

func (m *Metrics) superseded() {
	if m != nil {
		m.Superseded.Inc()
	}
}

func (m *Metrics) observeFilter(start time.Time) {
	if m != nil {
		m.FilterTime.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) observeRows(n int) {
	if m != nil {
		m.Rows.Observe(float64(n))
	}
}

func (m *Metrics) sessionsDelta(d float64) {
	if m != nil {
		m.Sessions.Add(d)
	}
}
