package tenantstore

import (
	"sync"
	"time"
)

// Metrics provides observability for tenantstore operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (result counts, batch sizes, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing
type InMemoryMetrics struct {
	mu         sync.Mutex
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], duration)
}

// Counter returns the current value of a counter (test helper)
func (m *InMemoryMetrics) Counter(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[name]
}

// Common metric names
const (
	MetricLookupSuccess  = "tenantstore.lookup.success"
	MetricLookupError    = "tenantstore.lookup.error"
	MetricLookupDuration = "tenantstore.lookup.duration"
	MetricWriteSuccess   = "tenantstore.write.success"
	MetricWriteError     = "tenantstore.write.error"
	MetricWriteDuration  = "tenantstore.write.duration"
	MetricWriteBatches   = "tenantstore.write.batches"
	MetricDeleteSuccess  = "tenantstore.delete.success"
	MetricDeleteError    = "tenantstore.delete.error"
	MetricDeleteDuration = "tenantstore.delete.duration"
	MetricDeleteBatches  = "tenantstore.delete.batches"
	MetricQueryDuration  = "tenantstore.query.duration"
	MetricQueryResults   = "tenantstore.query.results"
	MetricQueryFanout    = "tenantstore.query.fanout"

	MetricTxCommit   = "tenantstore.transaction.commit"
	MetricTxConflict = "tenantstore.transaction.conflict"
	MetricTxRollback = "tenantstore.transaction.rollback"

	MetricNamespaceKept      = "tenantstore.namespace.kept"
	MetricNamespacePopulated = "tenantstore.namespace.populated"

	MetricProviderOps     = "tenantstore.provider.ops"
	MetricProviderErrors  = "tenantstore.provider.errors"
	MetricProviderLatency = "tenantstore.provider.latency"
)
