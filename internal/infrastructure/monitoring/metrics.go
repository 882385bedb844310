package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Device metrics
	ProfilesGenerated *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge
	Navigations    *prometheus.CounterVec

	// Persistence metrics
	RecordWrites    *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	AutoSaveTicks   *prometheus.CounterVec
	BreakerRejected prometheus.Counter

	// Batch metrics
	BatchRuns     *prometheus.CounterVec
	BatchFailures *prometheus.CounterVec

	// Notification metrics
	Notifications *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	ActiveSessions    int64   `json:"activeSessions"`
	ActiveConnections int64   `json:"activeConnections"`
	TotalDuration     float64 `json:"totalDuration"` // sum of all request durations
	RequestCount      int64   `json:"requestCount"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a metrics collector registered on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devicematrix_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devicematrix_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devicematrix_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Device metrics
		ProfilesGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_profiles_generated_total",
				Help: "Total number of device profiles generated",
			},
			[]string{"platform"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devicematrix_sessions_active",
				Help: "Number of open windows",
			},
		),
		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_navigations_total",
				Help: "Total number of navigation attempts",
			},
			[]string{"result"},
		),

		// Persistence metrics
		RecordWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_record_writes_total",
				Help: "Total number of persisted record writes",
			},
			[]string{"record", "status"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devicematrix_store_duration_seconds",
				Help:    "Record store operation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"driver", "op", "status"},
		),
		AutoSaveTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_autosave_ticks_total",
				Help: "Total number of autosave ticks",
			},
			[]string{"status"},
		),
		BreakerRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "devicematrix_storage_breaker_rejected_total",
				Help: "Writes rejected while the storage breaker was open",
			},
		),

		// Batch metrics
		BatchRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_batch_runs_total",
				Help: "Total number of batch operations",
			},
			[]string{"operation"},
		),
		BatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_batch_failures_total",
				Help: "Total number of failed batch items",
			},
			[]string{"operation"},
		),

		// Notification metrics
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_notifications_total",
				Help: "Total number of user notifications",
			},
			[]string{"severity"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devicematrix_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devicematrix_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "devicematrix_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordProfileGenerated counts one generated device profile
func (m *Metrics) RecordProfileGenerated(platform string) {
	m.ProfilesGenerated.WithLabelValues(platform).Inc()
}

// SetSessionsActive sets the number of open windows
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// RecordNavigation counts a navigation attempt by result
func (m *Metrics) RecordNavigation(result string) {
	m.Navigations.WithLabelValues(result).Inc()
}

// RecordRecordWrite counts a persisted record write
func (m *Metrics) RecordRecordWrite(record, status string) {
	m.RecordWrites.WithLabelValues(record, status).Inc()
}

// RecordStoreCall records the duration of a record store operation
func (m *Metrics) RecordStoreCall(driver, op, status string, duration time.Duration) {
	m.StoreDuration.WithLabelValues(driver, op, status).Observe(duration.Seconds())
}

// RecordAutoSaveTick counts an autosave tick
func (m *Metrics) RecordAutoSaveTick(status string) {
	m.AutoSaveTicks.WithLabelValues(status).Inc()
}

// IncBreakerRejected counts a write refused by the open breaker
func (m *Metrics) IncBreakerRejected() {
	m.BreakerRejected.Inc()
}

// RecordBatch records a batch run and its failed items
func (m *Metrics) RecordBatch(operation string, failed int) {
	m.BatchRuns.WithLabelValues(operation).Inc()
	if failed > 0 {
		m.BatchFailures.WithLabelValues(operation).Add(float64(failed))
	}
}

// RecordNotification counts a user notification
func (m *Metrics) RecordNotification(severity string) {
	m.Notifications.WithLabelValues(severity).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}
