// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"net/http"

	"github.com/tomtom215/aln-orchestrator/internal/auth"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// authRequest is the POST /api/admin/auth body.
type authRequest struct {
	Password string `json:"password" validate:"required"`
}

// authResponse carries the issued admin JWT. ExpiresIn is seconds.
type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// AdminAuth handles POST /api/admin/auth: password for JWT exchange.
// Failures are deliberately uniform so the response does not reveal
// whether an admin password is configured at all.
func (h *Handler) AdminAuth(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		logging.Ctx(r.Context()).Warn().Str("ip", ip).Msg("Login throttled")
		respondError(w, http.StatusTooManyRequests, models.CodeUnauthorized, "too many login attempts")
		return
	}

	var req authRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	if err := h.verifier.Verify(req.Password); err != nil {
		logging.Ctx(r.Context()).Warn().Str("ip", ip).Msg("Admin login failed")
		respondError(w, http.StatusUnauthorized, models.CodeInvalidToken, "invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(auth.RoleAdmin, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.CodeInternalError, "failed to issue token")
		return
	}

	logging.Ctx(r.Context()).Info().Str("ip", ip).Msg("Admin login")
	respondJSON(w, http.StatusOK, authResponse{
		Token:     token,
		ExpiresIn: int(h.jwt.TTL().Seconds()),
	})
}

// AdminBackup handles POST /api/admin/backup (admin JWT): snapshot the
// data directory.
func (h *Handler) AdminBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Backup()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Backup failed")
		respondError(w, http.StatusInternalServerError, models.CodeInternalError, "backup failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"path": path})
}

// AdminSessions handles GET /api/admin/sessions (admin JWT): every
// persisted session, for post-game review.
func (h *Handler) AdminSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.manager.ListSessions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.CodeInternalError, "failed to list sessions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
