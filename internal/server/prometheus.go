// prometheus.go - Prometheus text exporter for Metrics
package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// PrometheusHandler serves the current snapshot in the Prometheus text format.
func (m *Metrics) PrometheusHandler(build BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := renderPrometheus(m.Snapshot(), build)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func renderPrometheus(s MetricsSnapshot, build BuildInfo) string {
	var out strings.Builder

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	out.WriteString("# HELP filedrop_info Application version info\n")
	out.WriteString("# TYPE filedrop_info gauge\n")
	fmt.Fprintf(&out, "filedrop_info{version=\"%s\",commit=\"%s\"} 1\n\n",
		prometheusLabel(build.Version), prometheusLabel(build.Commit))

	metric("filedrop_requests_total", "counter", "Total number of HTTP requests", s.RequestsTotal)

	out.WriteString("# HELP filedrop_request_errors_total HTTP requests answered with an error status\n")
	out.WriteString("# TYPE filedrop_request_errors_total counter\n")
	fmt.Fprintf(&out, "filedrop_request_errors_total{class=\"4xx\"} %d\n", s.RequestErrors4xx)
	fmt.Fprintf(&out, "filedrop_request_errors_total{class=\"5xx\"} %d\n\n", s.RequestErrors5xx)

	metric("filedrop_uploads_total", "counter", "Total number of completed uploads", s.UploadsTotal)
	metric("filedrop_upload_bytes_total", "counter", "Total bytes accepted by completed uploads", s.UploadBytesTotal)
	metric("filedrop_upload_errors_total", "counter", "Total number of failed uploads", s.UploadErrorsTotal)
	metric("filedrop_deletes_total", "counter", "Total number of completed deletes", s.DeletesTotal)
	metric("filedrop_delete_errors_total", "counter", "Total number of deletes failed upstream", s.DeleteErrorsTotal)
	metric("filedrop_compensations_total", "counter", "Object deletes issued after a failed metadata insert", s.CompensationsTotal)
	metric("filedrop_compensation_failures_total", "counter", "Compensating deletes that failed", s.CompensationFailures)

	out.WriteString("# HELP filedrop_health_checks_total Health probes by outcome\n")
	out.WriteString("# TYPE filedrop_health_checks_total counter\n")
	fmt.Fprintf(&out, "filedrop_health_checks_total{result=\"ok\"} %d\n", s.HealthChecksOK)
	fmt.Fprintf(&out, "filedrop_health_checks_total{result=\"failed\"} %d\n\n", s.HealthChecksFailed)

	if len(s.Routes) > 0 {
		routes := make([]string, 0, len(s.Routes))
		for route := range s.Routes {
			routes = append(routes, route)
		}
		sort.Strings(routes)

		out.WriteString("# HELP filedrop_request_duration_ms Request latency over the recent window\n")
		out.WriteString("# TYPE filedrop_request_duration_ms summary\n")
		for _, route := range routes {
			sum := s.Routes[route]
			label := prometheusLabel(route)
			fmt.Fprintf(&out, "filedrop_request_duration_ms{route=\"%s\",quantile=\"0.5\"} %g\n", label, sum.P50)
			fmt.Fprintf(&out, "filedrop_request_duration_ms{route=\"%s\",quantile=\"0.95\"} %g\n", label, sum.P95)
			fmt.Fprintf(&out, "filedrop_request_duration_ms{route=\"%s\",quantile=\"0.99\"} %g\n", label, sum.P99)
			fmt.Fprintf(&out, "filedrop_request_duration_ms_count{route=\"%s\"} %d\n", label, sum.Count)
		}
		out.WriteString("\n")
	}

	metric("filedrop_uptime_seconds", "counter", "Application uptime in seconds", fmt.Sprintf("%.0f", s.UptimeSeconds))

	return out.String()
}

// Helper function to format label safely for Prometheus
func prometheusLabel(value string) string {
	// Escape quotes, backslashes and newlines
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
