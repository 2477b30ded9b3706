package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric this package registers.
const Namespace = "mockmesh"

// Collector owns a private Prometheus registry and the mockmesh metrics
// registered on it. A nil *Collector is valid and records nothing, so
// components can hold one unconditionally.
type Collector struct {
	registry *prometheus.Registry

	processorRequests *prometheus.CounterVec
	processorDuration *prometheus.HistogramVec
	stepExecutions    *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	policyEvents      *prometheus.CounterVec
	registryEntries   *prometheus.GaugeVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	runtime bool
	buckets []float64
}

// WithRuntimeMetrics also exports the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(o *options) { o.runtime = true }
}

// WithBuckets overrides the histogram buckets used for durations, in seconds.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// DefaultBuckets span simulated latencies from 5ms to one minute.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// NewCollector creates a Collector with its own registry.
func NewCollector(opts ...Option) *Collector {
	o := options{buckets: DefaultBuckets}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),

		processorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "processor_requests_total",
				Help:      "Processor executions by outcome.",
			},
			[]string{"processor", "status"},
		),
		processorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "processor_duration_seconds",
				Help:      "Processor execution time including ingress latency.",
				Buckets:   o.buckets,
			},
			[]string{"processor"},
		),
		stepExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "step_executions_total",
				Help:      "Step executions by step kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "step_duration_seconds",
				Help:      "Step execution time by step kind.",
				Buckets:   o.buckets,
			},
			[]string{"kind"},
		),
		policyEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "policy_events_total",
				Help:      "Resilience policy activity: fallbacks, retries, breaker transitions and timeouts.",
			},
			[]string{"policy", "kind", "event"},
		),
		registryEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "registry_entries",
				Help:      "Configured entries loaded into the registry, by section.",
			},
			[]string{"section"},
		),
	}

	c.registry.MustRegister(
		c.processorRequests,
		c.processorDuration,
		c.stepExecutions,
		c.stepDuration,
		c.policyEvents,
		c.registryEntries,
	)
	if o.runtime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// ObserveProcessor records one processor execution.
func (c *Collector) ObserveProcessor(name, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.processorRequests.WithLabelValues(name, status).Inc()
	c.processorDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveStep records one step execution.
func (c *Collector) ObserveStep(kind, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.stepExecutions.WithLabelValues(kind, status).Inc()
	c.stepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObservePolicyEvent records a policy acting on a request.
func (c *Collector) ObservePolicyEvent(policy, kind, event string) {
	if c == nil {
		return
	}
	c.policyEvents.WithLabelValues(policy, kind, event).Inc()
}

// SetRegistryEntries records how many entries a registry section holds.
func (c *Collector) SetRegistryEntries(section string, n int) {
	if c == nil {
		return
	}
	c.registryEntries.WithLabelValues(section).Set(float64(n))
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
