// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan pipeline metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_scans_total",
			Help: "Total scans processed, by transport and outcome",
		},
		[]string{"transport", "status"}, // transport: http, websocket, batch
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aln_scan_duration_seconds",
			Help:    "Scan processing duration in seconds, including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"transport"},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aln_websocket_connections",
			Help: "Currently connected WebSocket clients",
		},
	)

	WSHandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_websocket_handshake_rejections_total",
			Help: "WebSocket handshakes rejected before upgrade",
		},
		[]string{"reason"}, // auth, validation, capacity
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_broadcasts_total",
			Help: "Events broadcast to WebSocket rooms",
		},
		[]string{"event"},
	)

	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aln_broadcast_drops_total",
			Help: "Broadcasts dropped because a client send buffer was full",
		},
	)

	// Video queue metrics
	VideoQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aln_video_queue_length",
			Help: "Items currently waiting in the video queue",
		},
	)

	VideoPlaybacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_video_playbacks_total",
			Help: "Video queue items by terminal state",
		},
		[]string{"outcome"}, // completed, error, skipped
	)

	VLCCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_vlc_commands_total",
			Help: "VLC HTTP commands issued, by command and result",
		},
		[]string{"command", "result"}, // result: ok, error, timeout
	)

	VLCBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aln_vlc_breaker_state",
			Help: "VLC circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// Offline batch metrics
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_batches_processed_total",
			Help: "Offline scan batches, by cache outcome",
		},
		[]string{"outcome"}, // fresh, replay
	)

	BatchItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aln_batch_items_total",
			Help: "Individual scans processed through offline batches",
		},
	)

	// Persistence metrics
	PersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aln_persist_duration_seconds",
			Help:    "Atomic store write duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"namespace"}, // session, gameState
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aln_persist_errors_total",
			Help: "Failed store writes (the mutation is rolled back)",
		},
	)

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aln_api_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aln_api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aln_api_active_requests",
			Help: "Currently in-flight HTTP API requests",
		},
	)

	// Session metrics
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aln_session_active",
			Help: "1 while a session is active or paused, 0 otherwise",
		},
	)

	SessionTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aln_session_transactions",
			Help: "Transactions recorded in the current session",
		},
	)
)

// RecordScan records one processed scan.
func RecordScan(transport, status string, duration time.Duration) {
	ScansTotal.WithLabelValues(transport, status).Inc()
	ScanDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(increment bool) {
	if increment {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordVLCCommand records a VLC HTTP command outcome.
func RecordVLCCommand(command string, err error, timedOut bool) {
	result := "ok"
	switch {
	case timedOut:
		result = "timeout"
	case err != nil:
		result = "error"
	}
	VLCCommands.WithLabelValues(command, result).Inc()
}

// SetBreakerState exports the circuit breaker state by name.
func SetBreakerState(state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	VLCBreakerState.Set(v)
}

// RecordBroadcast counts a room broadcast of the named event.
func RecordBroadcast(event string) {
	BroadcastsTotal.WithLabelValues(event).Inc()
}

// RecordPersist records one store write.
func RecordPersist(namespace string, duration time.Duration, err error) {
	PersistDuration.WithLabelValues(namespace).Observe(duration.Seconds())
	if err != nil {
		PersistErrors.Inc()
	}
}

// FormatStatusCode converts an HTTP status to its label value.
func FormatStatusCode(code int) string {
	return strconv.Itoa(code)
}
