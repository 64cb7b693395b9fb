// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the chat
// orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the agent loop
// and the WebSocket surface. Metrics include:
//   - Turn counters (by status)
//   - Streamed token counters
//   - Tool invocation counters (by tool and status)
//   - Turn duration histograms
//   - Active connection and stored session gauges
//   - Reaped session counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "rutopia"

// Subsystem for chat orchestrator metrics
const chatSubsystem = "chat"

// ChatMetrics holds all Prometheus metrics for the chat orchestrator.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring turn throughput,
// tool usage, and session population. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type ChatMetrics struct {
	// TurnsTotal counts completed chat turns.
	// Labels: status (success, error)
	TurnsTotal *prometheus.CounterVec

	// TokensStreamedTotal counts token chunks streamed to clients.
	TokensStreamedTotal prometheus.Counter

	// ToolInvocationsTotal counts tool invocations.
	// Labels: tool (search_experiences, get_experience_details), status
	ToolInvocationsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures wall time per turn.
	// Labels: status (success, error)
	TurnDurationSeconds *prometheus.HistogramVec

	// ActiveConnections tracks currently open chat WebSocket connections.
	ActiveConnections prometheus.Gauge

	// StoredSessions tracks the number of sessions held in memory.
	StoredSessions prometheus.Gauge

	// SessionsReapedTotal counts sessions evicted by the reaper.
	SessionsReapedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of ChatMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ChatMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Outputs
//
//   - *ChatMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "turns_total",
				Help:      "Total chat turns by completion status",
			},
			[]string{"status"},
		),

		TokensStreamedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "tokens_streamed_total",
				Help:      "Total token chunks streamed to clients",
			},
		),

		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "tool_invocations_total",
				Help:      "Total tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Wall time per chat turn in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		ActiveConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_connections",
				Help:      "Currently open chat WebSocket connections",
			},
		),

		StoredSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stored_sessions",
				Help:      "Sessions currently held in memory",
			},
		),

		SessionsReapedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "sessions_reaped_total",
				Help:      "Total sessions evicted by the background reaper",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordTurn records one completed turn and its duration.
//
// # Inputs
//
//   - success: Whether the turn ended with done rather than error.
//   - seconds: Wall time of the turn.
func (m *ChatMetrics) RecordTurn(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordToken counts one streamed token chunk.
func (m *ChatMetrics) RecordToken() {
	m.TokensStreamedTotal.Inc()
}

// RecordToolInvocation records one tool invocation outcome.
//
// # Inputs
//
//   - tool: The registered tool name.
//   - success: Whether the invocation returned a non-error result.
func (m *ChatMetrics) RecordToolInvocation(tool string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ToolInvocationsTotal.WithLabelValues(tool, status).Inc()
}

// ConnectionOpened increments the active connections gauge.
func (m *ChatMetrics) ConnectionOpened() {
	m.ActiveConnections.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (m *ChatMetrics) ConnectionClosed() {
	m.ActiveConnections.Dec()
}

// SetStoredSessions updates the stored sessions gauge.
func (m *ChatMetrics) SetStoredSessions(n int) {
	m.StoredSessions.Set(float64(n))
}

// RecordReapedSessions adds to the reaped sessions counter.
func (m *ChatMetrics) RecordReapedSessions(n int) {
	m.SessionsReapedTotal.Add(float64(n))
}
