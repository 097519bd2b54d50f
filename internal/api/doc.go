// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package api provides HTTP routing using the Chi router.
//
// The surface splits into three groups with their own middleware stacks:
// public scanner endpoints (no auth, rate limited), read endpoints for
// dashboards, and admin endpoints behind JWT auth. The scan response is
// advisory: player scanners act on their local catalog and treat the
// HTTP response as a hint, so handlers return quickly and never block on
// broadcast delivery.
package api
