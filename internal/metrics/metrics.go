package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values recorded by the recognition pipeline.
const (
	StatusSuccess = "success"
	StatusNoMatch = "not_found"
	StatusError   = "error"

	ModeCache  = "cache"
	ModeHNSW   = "hnsw"
	ModeLinear = "linear"
	ModeStore  = "store"
	ModeNone   = "none"

	JobCreated   = "created"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Metrics holds every instrument exported by the service.
type Metrics struct {
	recognitions         *prometheus.CounterVec
	registrations        *prometheus.CounterVec
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	batchJobs            *prometheus.CounterVec
	batchImages          *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	recognitionDuration  *prometheus.HistogramVec
	registrationDuration *prometheus.HistogramVec
	searchDuration       prometheus.Histogram
	queryDuration        *prometheus.HistogramVec
	httpDuration         *prometheus.HistogramVec
	indexSize            prometheus.Gauge
	activeUsers          prometheus.Gauge
	gpuMemoryUsed        prometheus.Gauge
	gpuMemoryTotal       prometheus.Gauge
	gpuActive            prometheus.Gauge
}

// New registers every instrument plus the Go and process collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	// The default registry already carries these collectors; tolerate the
	// duplicate so New works against both it and fresh registries.
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}

	return &Metrics{
		recognitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recognition_total",
			Help: "Total number of recognition attempts by outcome and matching backend",
		}, []string{"status", "mode"}),

		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_total",
			Help: "Total number of face registrations by outcome",
		}, []string{"status"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of recognition result cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of recognition result cache misses",
		}),

		batchJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_jobs_total",
			Help: "Total number of batch jobs by lifecycle status",
		}, []string{"status"}),

		batchImages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_images_total",
			Help: "Total number of images processed by batch jobs by outcome",
		}, []string{"status"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),

		recognitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recognition_duration_seconds",
			Help:    "Recognition latency by outcome and matching backend",
			Buckets: prometheus.DefBuckets,
		}, []string{"status", "mode"}),

		registrationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registration_duration_seconds",
			Help:    "Registration latency by outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hnsw_search_duration_seconds",
			Help:    "Vector index search latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),

		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency by operation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"operation"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),

		indexSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hnsw_index_size",
			Help: "Number of live descriptors in the vector index",
		}),

		activeUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "active_users",
			Help: "Number of active enrolled users",
		}),

		gpuMemoryUsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gpu_memory_used_bytes",
			Help: "GPU memory used by the vision backend",
		}),

		gpuMemoryTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gpu_memory_total_bytes",
			Help: "Total GPU memory visible to the vision backend",
		}),

		gpuActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tensorflow_gpu_active",
			Help: "1 if the vision backend runs on GPU, 0 otherwise",
		}),
	}
}

// ObserveRecognition records one recognition attempt.
func (m *Metrics) ObserveRecognition(status, mode string, duration time.Duration) {
	m.recognitions.WithLabelValues(status, mode).Inc()
	m.recognitionDuration.WithLabelValues(status, mode).Observe(duration.Seconds())
}

// ObserveRegistration records one enrollment attempt.
func (m *Metrics) ObserveRegistration(status string, duration time.Duration) {
	m.registrations.WithLabelValues(status).Inc()
	m.registrationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// CacheHit increments the result cache hit counter.
func (m *Metrics) CacheHit() {
	m.cacheHits.Inc()
}

// CacheMiss increments the result cache miss counter.
func (m *Metrics) CacheMiss() {
	m.cacheMisses.Inc()
}

// ObserveIndexSearch records one vector index search.
func (m *Metrics) ObserveIndexSearch(duration time.Duration) {
	m.searchDuration.Observe(duration.Seconds())
}

// ObserveQuery records one database query.
func (m *Metrics) ObserveQuery(operation string, duration time.Duration) {
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// BatchJob records a batch job lifecycle transition.
func (m *Metrics) BatchJob(status string) {
	m.batchJobs.WithLabelValues(status).Inc()
}

// BatchImage records one processed batch image.
func (m *Metrics) BatchImage(status string) {
	m.batchImages.WithLabelValues(status).Inc()
}

// SetIndexSize updates the live index size gauge.
func (m *Metrics) SetIndexSize(n int) {
	m.indexSize.Set(float64(n))
}

// SetActiveUsers updates the enrolled user gauge.
func (m *Metrics) SetActiveUsers(n int) {
	m.activeUsers.Set(float64(n))
}

// SetGPUStatus updates the vision backend GPU gauges.
func (m *Metrics) SetGPUStatus(active bool, usedBytes, totalBytes uint64) {
	if active {
		m.gpuActive.Set(1)
	} else {
		m.gpuActive.Set(0)
	}
	m.gpuMemoryUsed.Set(float64(usedBytes))
	m.gpuMemoryTotal.Set(float64(totalBytes))
}
