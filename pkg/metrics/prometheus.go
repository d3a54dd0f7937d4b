// Package metrics provides Prometheus metrics for the racecheck service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every metric the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Classification and ranking
	linesClassified *prometheus.CounterVec
	rankingRuns     prometheus.Counter
	rankingLatency  prometheus.Histogram
	rankedRunners   prometheus.Histogram

	// Imports
	importsAccepted  prometheus.Counter
	importsDuplicate prometheus.Counter
	importsRejected  *prometheus.CounterVec
	importsApplied   prometheus.Counter
	importsStale     prometheus.Counter
	importsFailed    prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	eventsStored prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // served by /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "racecheck",
		subsystem:        "results",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.linesClassified = m.counterVec("lines_classified_total", "Feed lines classified, by outcome (valid/invalid)", "outcome")
	m.rankingRuns = m.counter("ranking_runs_total", "Number of ranking computations")
	m.rankingLatency = m.histogram("ranking_latency_milliseconds", "Ranking computation latency in milliseconds", m.histogramBuckets)
	m.rankedRunners = m.histogram("ranked_runners", "Runners in each ranked roster", prometheus.ExponentialBuckets(1, 4, 8))

	m.importsAccepted = m.counter("imports_accepted_total", "Result uploads accepted for processing")
	m.importsDuplicate = m.counter("imports_duplicate_total", "Result uploads acknowledged as duplicates")
	m.importsRejected = m.counterVec("imports_rejected_total", "Result uploads rejected before queueing", "reason")
	m.importsApplied = m.counter("imports_applied_total", "Result imports stored by workers")
	m.importsStale = m.counter("imports_stale_total", "Result imports skipped because a newer feed was stored")
	m.importsFailed = m.counter("imports_failed_total", "Result imports that failed in workers")

	m.queueSize = m.gauge("queue_size", "Import jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue failures (full or closed queue)")

	m.workerCount = m.gauge("worker_count", "Running import workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Import job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker processing errors")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Event store operation latency in milliseconds", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Event store operation errors", "operation")
	m.eventsStored = m.gauge("events_stored", "Events currently stored")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordClassification adds a classification outcome.
func (m *Manager) RecordClassification(valid, invalid int) {
	m.linesClassified.WithLabelValues("valid").Add(float64(valid))
	m.linesClassified.WithLabelValues("invalid").Add(float64(invalid))
}

// RecordRanking records one ranking run.
func (m *Manager) RecordRanking(latencyMs float64, runners int) {
	m.rankingRuns.Inc()
	m.rankingLatency.Observe(latencyMs)
	m.rankedRunners.Observe(float64(runners))
}

// Package-level helpers operate on the global manager.

// RecordClassification adds a classification outcome.
func RecordClassification(valid, invalid int) { globalManager.RecordClassification(valid, invalid) }

// RecordRanking records one ranking run.
func RecordRanking(latencyMs float64, runners int) { globalManager.RecordRanking(latencyMs, runners) }

// RecordImportAccepted counts an upload handed to the queue.
func RecordImportAccepted() { globalManager.importsAccepted.Inc() }

// RecordImportDuplicate counts an upload acknowledged as already seen.
func RecordImportDuplicate() { globalManager.importsDuplicate.Inc() }

// RecordImportRejected counts an upload rejected before queueing.
func RecordImportRejected(reason string) { globalManager.importsRejected.WithLabelValues(reason).Inc() }

// RecordImportApplied counts an import stored by a worker.
func RecordImportApplied() { globalManager.importsApplied.Inc() }

// RecordImportStale counts an import skipped in favour of a newer feed.
func RecordImportStale() { globalManager.importsStale.Inc() }

// RecordImportFailed counts an import a worker could not store.
func RecordImportFailed() { globalManager.importsFailed.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordStoreOperation records the latency of a store call and counts failures.
func RecordStoreOperation(operation string, latencyMs float64, err error) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(operation).Inc()
	}
}

// UpdateEventsStored sets the number of stored events.
func UpdateEventsStored(count int) { globalManager.eventsStored.Set(float64(count)) }

// RecordHTTPRequest records a served request and its duration.
func RecordHTTPRequest(endpoint, method string, status int, durationMs float64) {
	code := strconv.Itoa(status)
	globalManager.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry the global metrics live in.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
