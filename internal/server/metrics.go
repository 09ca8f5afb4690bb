package server

import (
	"sort"
	"sync"
	"time"
)

// maxLatencySamples bounds the per-route latency window.
const maxLatencySamples = 1000

// Metrics holds application metrics. It satisfies files.Recorder.
type Metrics struct {
	mu sync.RWMutex

	startedAt time.Time

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Delete metrics
	deletesTotal      int64
	deleteErrorsTotal int64

	// Compensation after a failed metadata insert
	compensationsTotal   int64
	compensationFailures int64

	// Health probes
	healthChecksOK     int64
	healthChecksFailed int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64

	// route pattern -> durations in ms
	routeDurations map[string][]float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startedAt:      time.Now(),
		routeDurations: make(map[string][]float64),
	}
}

// RecordUpload records a successful upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	if bytes > 0 {
		m.uploadBytesTotal += bytes
	}
	m.uploadDurationTotal += duration
}

// RecordUploadError records an upload error
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

func (m *Metrics) RecordDeleteError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErrorsTotal++
}

// RecordCompensation records one compensating object delete and its outcome.
func (m *Metrics) RecordCompensation(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensationsTotal++
	if !ok {
		m.compensationFailures++
	}
}

func (m *Metrics) RecordHealthCheck(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.healthChecksOK++
	} else {
		m.healthChecksFailed++
	}
}

// RecordRequest records an HTTP request against its route pattern.
func (m *Metrics) RecordRequest(route string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}

	durations := append(m.routeDurations[route], float64(duration.Microseconds())/1000)
	// Keep only the most recent samples per route
	if len(durations) > maxLatencySamples {
		durations = durations[len(durations)-maxLatencySamples:]
	}
	m.routeDurations[route] = durations
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make(map[string]LatencySummary, len(m.routeDurations))
	for route, durations := range m.routeDurations {
		routes[route] = summarize(durations)
	}

	return MetricsSnapshot{
		UploadsTotal:         m.uploadsTotal,
		UploadBytesTotal:     m.uploadBytesTotal,
		UploadErrorsTotal:    m.uploadErrorsTotal,
		UploadAvgDurationMs:  avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DeletesTotal:         m.deletesTotal,
		DeleteErrorsTotal:    m.deleteErrorsTotal,
		CompensationsTotal:   m.compensationsTotal,
		CompensationFailures: m.compensationFailures,
		HealthChecksOK:       m.healthChecksOK,
		HealthChecksFailed:   m.healthChecksFailed,
		RequestsTotal:        m.requestsTotal,
		RequestErrors5xx:     m.requestErrors5xx,
		RequestErrors4xx:     m.requestErrors4xx,
		UptimeSeconds:        time.Since(m.startedAt).Seconds(),
		Routes:               routes,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Upload metrics
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	// Delete metrics
	DeletesTotal      int64 `json:"deletes_total"`
	DeleteErrorsTotal int64 `json:"delete_errors_total"`

	CompensationsTotal   int64 `json:"compensations_total"`
	CompensationFailures int64 `json:"compensation_failures_total"`

	HealthChecksOK     int64 `json:"health_checks_ok_total"`
	HealthChecksFailed int64 `json:"health_checks_failed_total"`

	// System metrics
	RequestsTotal    int64   `json:"requests_total"`
	RequestErrors5xx int64   `json:"request_errors_5xx"`
	RequestErrors4xx int64   `json:"request_errors_4xx"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	Routes map[string]LatencySummary `json:"routes"`
}

// LatencySummary holds request duration percentiles in milliseconds.
type LatencySummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
}

func summarize(durations []float64) LatencySummary {
	if len(durations) == 0 {
		return LatencySummary{}
	}

	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	return LatencySummary{
		Count: len(sorted),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
	}
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
