// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/session"
)

// SessionCurrent handles GET /api/session.
func (h *Handler) SessionCurrent(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Current()
	if s == nil {
		respondError(w, http.StatusNotFound, models.CodeSessionNotFound, "no current session")
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// sessionCreateRequest is the POST /api/session body.
type sessionCreateRequest struct {
	Name  string   `json:"name" validate:"omitempty,max=200"`
	Teams []string `json:"teams" validate:"omitempty,dive,teamid"`
}

// SessionCreate handles POST /api/session (admin JWT).
func (h *Handler) SessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	s, err := h.manager.CreateSession(r.Context(), req.Name, req.Teams)
	if err != nil {
		if errors.Is(err, session.ErrConcurrentSession) {
			respondError(w, http.StatusConflict, models.CodeConcurrentSession, "an active or paused session already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, models.CodeInternalError, "failed to create session")
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

// sessionUpdateRequest is the PUT /api/session/{id} body.
type sessionUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused ended"`
}

// SessionUpdate handles PUT /api/session/{id} (admin JWT): lifecycle
// transitions by status value.
func (h *Handler) SessionUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req sessionUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	s, err := h.manager.UpdateStatus(r.Context(), id, models.SessionStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrNoSession):
			respondError(w, http.StatusNotFound, models.CodeSessionNotFound, "session not found: "+sanitizeLogValue(id))
		case errors.Is(err, session.ErrInvalidTransition):
			respondError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, models.CodeInternalError, "failed to update session")
		}
		return
	}
	respondJSON(w, http.StatusOK, s)
}
