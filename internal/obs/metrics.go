// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts JSON-RPC requests handled by method and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_requests_total",
			Help: "Total number of JSON-RPC requests handled, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// RequestDuration tracks handler latency by method.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_request_duration_seconds",
			Help:    "JSON-RPC request handling latency in seconds, by method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ActiveSessions tracks currently connected sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcp_active_sessions",
			Help: "Number of currently connected MCP sessions.",
		},
	)

	// ToolCalls tracks tools/call invocations by tool name and outcome.
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_tool_calls_total",
			Help: "Total number of tools/call invocations, by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	// TasksActive tracks non-terminal tasks by status.
	TasksActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcp_tasks_active",
			Help: "Number of tasks currently in a non-terminal status.",
		},
		[]string{"status"},
	)

	// TasksCompletedTotal counts tasks reaching a terminal status.
	TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_tasks_completed_total",
			Help: "Total number of tasks reaching a terminal status.",
		},
		[]string{"status"},
	)

	// TasksReapedTotal counts tasks removed by the TTL reaper.
	TasksReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mcp_tasks_reaped_total",
			Help: "Total number of tasks evicted by the TTL reaper.",
		},
	)

	// StreamEventsTotal counts SSE events appended to the resumable event
	// store, by stream kind (e.g. "request", "standalone").
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_stream_events_total",
			Help: "Total number of SSE events appended to the resumable event store.",
		},
		[]string{"stream"},
	)

	// StreamResumptionsTotal counts successful Last-Event-ID resumptions.
	StreamResumptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mcp_stream_resumptions_total",
			Help: "Total number of GET reconnects that resumed via Last-Event-ID.",
		},
	)
)

// responseWriter wraps http.ResponseWriter on the streamable transport's
// own endpoint to capture the response status code; HTTPMiddleware does
// not record the captured code in any metric.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher so SSE responses can still flush through
// the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// HTTPMiddleware records the latency of every HTTP request against the
// streamable endpoint in RequestDuration, keyed by method and path. The
// outcome (status code) is not recorded.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		RequestDuration.WithLabelValues(r.Method + " " + r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records a completed JSON-RPC request's method and outcome
// ("ok" or "error").
func RecordRequest(method, outcome string, d time.Duration) {
	RequestsTotal.WithLabelValues(method, outcome).Inc()
	RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordToolCall records a tools/call invocation's outcome.
func RecordToolCall(tool, outcome string) {
	ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordTaskTerminal moves a task out of TasksActive and into
// TasksCompletedTotal for its terminal status.
func RecordTaskTerminal(fromStatus, toStatus string) {
	TasksActive.WithLabelValues(fromStatus).Dec()
	TasksCompletedTotal.WithLabelValues(toStatus).Inc()
}
