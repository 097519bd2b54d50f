// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package middleware holds http.HandlerFunc middleware shared by the API
// router: request-ID propagation, Prometheus instrumentation, and
// security headers. Each middleware wraps http.HandlerFunc; the router
// adapts them into chi's func(http.Handler) http.Handler form.
package middleware
