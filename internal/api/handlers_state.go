// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"net/http"
	"time"
)

// State handles GET /api/state: the current GameState projection. Always
// 200; with no session the projection still carries devices and video
// status so dashboards render in the lobby.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.projector.Project())
}

// Tokens handles GET /api/tokens: the full catalog snapshot scanners
// sync at boot.
func (h *Handler) Tokens(w http.ResponseWriter, r *http.Request) {
	all := h.catalog.All()
	respondJSON(w, http.StatusOK, map[string]any{
		"tokens": all,
		"count":  len(all),
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}
