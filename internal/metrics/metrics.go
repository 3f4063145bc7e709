// Package metrics records gateway operations in Prometheus.
//
// Operations are named with dotted identifiers such as
// "pull.dispatchPullRequest". Meters count events, counters track values
// that go up and down and timers observe durations. Each kind is one metric
// family labelled by the operation name.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "as4_gateway"

// Registry is a Prometheus-backed metrics sink
type Registry struct {
	registry *prometheus.Registry
	meters   *prometheus.CounterVec
	counters *prometheus.GaugeVec
	timers   *prometheus.HistogramVec
}

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		meters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "The total number of events marked per operation.",
		}, []string{"name"}),
		counters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "The number of operations currently in progress.",
		}, []string{"name"}),
		timers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "The time spent per operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
	}
	r.registry.MustRegister(
		r.meters,
		r.counters,
		r.timers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Mark records one event.
func (r *Registry) Mark(name string) {
	r.meters.WithLabelValues(name).Inc()
}

// Inc increments the counter.
func (r *Registry) Inc(name string) {
	r.counters.WithLabelValues(name).Inc()
}

// Dec decrements the counter.
func (r *Registry) Dec(name string) {
	r.counters.WithLabelValues(name).Dec()
}

// Time starts a timer. The returned function records the elapsed time and
// may be called more than once; only the first call counts.
func (r *Registry) Time(name string) func() {
	observer := r.timers.WithLabelValues(name)
	start := time.Now()
	done := false
	return func() {
		if done {
			return
		}
		done = true
		observer.Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Nop discards everything
type Nop struct{}

func (Nop) Mark(string)        {}
func (Nop) Inc(string)         {}
func (Nop) Dec(string)         {}
func (Nop) Time(string) func() { return func() {} }
