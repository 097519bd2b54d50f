// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package metrics exposes Prometheus collectors for the orchestrator.
//
// All collectors are package-level promauto variables registered with the
// default registry and served at GET /metrics. The collector set covers
// the scan pipeline (counts, latency), WebSocket fan-out (connections,
// broadcasts, drops), the video queue and VLC client (queue length,
// command outcomes, circuit breaker state), offline batch intake
// (fresh vs replay), and persistence (write latency, failures).
//
// Recording helpers (RecordScan, RecordAPIRequest, ...) keep label
// vocabulary consistent across call sites; components should prefer them
// over touching the collectors directly.
package metrics
