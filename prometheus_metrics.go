package tenantstore

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
// Every metric name the store and transaction paths emit is registered up
// front; unknown names register lazily under the mutex, since a duplicate
// promauto registration panics.
type PrometheusMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
// If registry is nil, uses the default Prometheus registry.
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

var (
	durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	countBuckets    = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}
	batchBuckets    = []float64{1, 2, 4, 8, 16, 32, 64}
)

// registerDefaultMetrics registers all standard tenantstore metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counter(MetricLookupSuccess, "lookup", "success_total", "Bulk lookups completed")
	p.counter(MetricLookupError, "lookup", "errors_total", "Bulk lookups failed")
	p.counter(MetricWriteSuccess, "write", "success_total", "Bulk writes completed")
	p.counter(MetricWriteError, "write", "errors_total", "Bulk writes failed")
	p.counter(MetricDeleteSuccess, "delete", "success_total", "Bulk deletes completed")
	p.counter(MetricDeleteError, "delete", "errors_total", "Bulk deletes failed")

	p.counter(MetricTxCommit, "transaction", "commits_total", "Transactions committed")
	p.counter(MetricTxRollback, "transaction", "rollbacks_total", "Transactions rolled back or failed at commit")
	p.counter(MetricTxConflict, "transaction", "conflicts_total", "Transaction existence conflicts", "kind")

	p.counter(MetricNamespaceKept, "namespace", "kept_total", "Tenant namespaces registered with the index")
	p.counter(MetricNamespacePopulated, "namespace", "populated_total", "Namespace index populate scans")

	p.counter(MetricProviderOps, "provider", "operations_total", "Provider operations", "operation", "provider")
	p.counter(MetricProviderErrors, "provider", "errors_total", "Provider errors", "operation", "provider", "error_type")

	p.histogram(MetricLookupDuration, "lookup", "duration_seconds", "Bulk lookup duration in seconds", durationBuckets)
	p.histogram(MetricWriteDuration, "write", "duration_seconds", "Bulk write duration in seconds", durationBuckets)
	p.histogram(MetricWriteBatches, "write", "batches", "Provider calls one bulk write chunked into", batchBuckets)
	p.histogram(MetricDeleteDuration, "delete", "duration_seconds", "Bulk delete duration in seconds", durationBuckets)
	p.histogram(MetricDeleteBatches, "delete", "batches", "Provider calls one bulk delete chunked into", batchBuckets)

	p.histogram(MetricQueryDuration, "query", "duration_seconds", "Query execution duration in seconds", durationBuckets, "kind")
	p.histogram(MetricQueryResults, "query", "results", "Number of results returned by queries", countBuckets, "kind")
	p.histogram(MetricQueryFanout, "query", "fanout", "Provider conjunctions a composite query expanded into", batchBuckets, "kind")

	p.histogram(MetricProviderLatency, "provider", "operation_duration_seconds", "Provider operation duration in seconds", durationBuckets, "operation", "provider")
}

func (p *PrometheusMetrics) counter(key, subsystem, name, help string, labels ...string) {
	p.counters[key] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenantstore",
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (p *PrometheusMetrics) histogram(key, subsystem, name, help string, buckets []float64, labels ...string) {
	p.histograms[key] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tenantstore",
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	p.mu.RLock()
	counter, ok := p.counters[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		counter, ok = p.counters[name]
		if !ok {
			counter = promauto.With(p.registry).NewCounterVec(
				prometheus.CounterOpts{
					Name: sanitizeMetricName(name),
					Help: "Dynamic counter: " + name,
				},
				p.extractLabels(tags),
			)
			p.counters[name] = counter
		}
		p.mu.Unlock()
	}

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.mu.RLock()
	gauge, ok := p.gauges[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		gauge, ok = p.gauges[name]
		if !ok {
			gauge = promauto.With(p.registry).NewGaugeVec(
				prometheus.GaugeOpts{
					Name: sanitizeMetricName(name),
					Help: "Dynamic gauge: " + name,
				},
				p.extractLabels(tags),
			)
			p.gauges[name] = gauge
		}
		p.mu.Unlock()
	}

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	p.mu.RLock()
	histogram, ok := p.histograms[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		histogram, ok = p.histograms[name]
		if !ok {
			histogram = promauto.With(p.registry).NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    sanitizeMetricName(name),
					Help:    "Dynamic histogram: " + name,
					Buckets: prometheus.DefBuckets,
				},
				p.extractLabels(tags),
			)
			p.histograms[name] = histogram
		}
		p.mu.Unlock()
	}

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels)
	for i := 0; i < len(tags)-1; i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// GetRegistry returns the underlying Prometheus registry
func (p *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return p.registry
}

// sanitizeMetricName converts dotted metric names to Prometheus-legal names
func sanitizeMetricName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || c == '-' {
			out[i] = '_'
		} else {
			out[i] = c
		}
	}
	return string(out)
}
