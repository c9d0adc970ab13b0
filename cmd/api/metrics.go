package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetops",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"method", "handler"},
	)

	evaluationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Subsystem: "compliance",
			Name:      "evaluation_runs_total",
			Help:      "Total number of compliance evaluation runs",
		},
		[]string{"trigger"},
	)

	openComplianceIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleetops",
			Subsystem: "compliance",
			Name:      "open_issues",
			Help:      "Current open compliance issues by status",
		},
		[]string{"status"},
	)

	auditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit entries dropped after a storage failure",
		},
	)

	fleetRiskScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleetops",
			Subsystem: "risk",
			Name:      "fleet_score",
			Help:      "Latest computed fleet risk score per organization",
		},
		[]string{"org_id"},
	)

	dbConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "connections",
			Help:      "Current number of connections in the pool",
		},
		[]string{"state"},
	)
)

// MetricsHandler returns the Prometheus metrics handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// InstrumentHTTPHandler wraps an HTTP handler with request metrics.
func InstrumentHTTPHandler(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		handler(wrapped, r)

		duration := time.Since(start).Seconds()
		status := statusCodeClass(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, handlerName, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, handlerName).Observe(duration)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func statusCodeClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// RecordEvaluationRun counts one evaluation run by trigger source.
func RecordEvaluationRun(trigger string) {
	evaluationRuns.WithLabelValues(trigger).Inc()
}

// UpdateOpenIssues refreshes the open-issue gauges from a stats read.
func UpdateOpenIssues(warning, critical, overdue int) {
	openComplianceIssues.WithLabelValues("warning").Set(float64(warning))
	openComplianceIssues.WithLabelValues("critical").Set(float64(critical))
	openComplianceIssues.WithLabelValues("overdue").Set(float64(overdue))
}

// RecordAuditWriteFailure counts one dropped audit entry.
func RecordAuditWriteFailure() {
	auditWriteFailures.Inc()
}

// UpdateFleetRiskScore publishes the latest score for an organization.
func UpdateFleetRiskScore(orgID string, score int) {
	fleetRiskScore.WithLabelValues(orgID).Set(float64(score))
}

// UpdateDBConnectionPoolMetrics refreshes pool gauges.
func UpdateDBConnectionPoolMetrics(active, idle, total int) {
	dbConnectionPoolSize.WithLabelValues("active").Set(float64(active))
	dbConnectionPoolSize.WithLabelValues("idle").Set(float64(idle))
	dbConnectionPoolSize.WithLabelValues("total").Set(float64(total))
}
