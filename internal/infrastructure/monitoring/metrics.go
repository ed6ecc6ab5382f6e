package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// Each Metrics owns its registry so that several servers (tests, restarts)
// can coexist in one process. All recording methods accept a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Terminal metrics
	SessionState    prometheus.Gauge
	SessionsStarted prometheus.Counter
	TerminalCalls   *prometheus.CounterVec
	TerminalLatency *prometheus.HistogramVec
	Drains          *prometheus.CounterVec
	BytesWritten    prometheus.Counter
	BytesRead       prometheus.Counter
	LockWait        prometheus.Histogram
	DecodeErrors    *prometheus.CounterVec
	OutputDropped   prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the health endpoint
type MetricsSnapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	CommandsSent  int64   `json:"commands_sent"`
	KeysSent      int64   `json:"keys_sent"`
	BytesRead     int64   `json:"bytes_read"`
	BytesWritten  int64   `json:"bytes_written"`
	BytesDropped  int64   `json:"bytes_dropped"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Terminal metrics
		SessionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webterm_session_state",
				Help: "Shell session state (0=starting, 1=running, 2=dead)",
			},
		),
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_sessions_started_total",
				Help: "Total number of shell sessions started",
			},
		),
		TerminalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_terminal_calls_total",
				Help: "Total number of session operations",
			},
			[]string{"op", "status"},
		),
		TerminalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_terminal_call_duration_seconds",
				Help:    "Session operation duration in seconds, lock wait included",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		Drains: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_drains_total",
				Help: "Output drains by result (data, timeout, closed)",
			},
			[]string{"op", "result"},
		),
		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_bytes_written_total",
				Help: "Bytes written to the shell",
			},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_bytes_read_total",
				Help: "Bytes drained from the shell",
			},
		),
		LockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webterm_session_lock_wait_seconds",
				Help:    "Time spent waiting for the session lock",
				Buckets: []float64{.0001, .001, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_decode_errors_total",
				Help: "Output chunks that could not be decoded",
			},
			[]string{"kind"},
		),
		OutputDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_output_dropped_bytes_total",
				Help: "Shell output discarded because the buffer was full between drains",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webterm_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "webterm_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler returns the Prometheus exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordTerminalCall records one session operation
func (m *Metrics) RecordTerminalCall(op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TerminalCalls.WithLabelValues(op, status).Inc()
	m.TerminalLatency.WithLabelValues(op).Observe(duration.Seconds())

	if status != "success" {
		return
	}
	m.mu.Lock()
	switch op {
	case "command":
		m.snapshot.CommandsSent++
	case "key":
		m.snapshot.KeysSent++
	}
	m.mu.Unlock()
}

// RecordDrain records one output drain
func (m *Metrics) RecordDrain(op, result string, n int) {
	if m == nil {
		return
	}
	m.Drains.WithLabelValues(op, result).Inc()
	if n > 0 {
		m.BytesRead.Add(float64(n))
		m.mu.Lock()
		m.snapshot.BytesRead += int64(n)
		m.mu.Unlock()
	}
}

// AddBytesWritten counts bytes delivered to the shell
func (m *Metrics) AddBytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesWritten.Add(float64(n))
	m.mu.Lock()
	m.snapshot.BytesWritten += int64(n)
	m.mu.Unlock()
}

// ObserveLockWait records time spent waiting for the session lock
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}

// RecordDecodeError counts an undecodable chunk ("partial" or "invalid")
func (m *Metrics) RecordDecodeError(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(kind).Inc()
}

// AddOutputDropped counts output bytes lost to buffer overflow
func (m *Metrics) AddOutputDropped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.OutputDropped.Add(float64(n))
	m.mu.Lock()
	m.snapshot.BytesDropped += n
	m.mu.Unlock()
}

// SetSessionState publishes the session lifecycle state
func (m *Metrics) SetSessionState(state int) {
	if m == nil {
		return
	}
	m.SessionState.Set(float64(state))
}

// IncSessionsStarted counts a spawned shell
func (m *Metrics) IncSessionsStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns current counter values
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
