// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/validation"
)

// maxBodySize caps request bodies. Offline batches are the largest
// legitimate payload; 5 MB covers thousands of queued scans.
const maxBodySize = 5 << 20

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes the standard {error, message, details?} body.
func respondError(w http.ResponseWriter, status int, code, message string, details ...string) {
	respondJSON(w, status, models.ErrorBody{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// decodeJSON decodes a size-capped request body into out. Unknown fields
// are tolerated; scanners across firmware versions send extras.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("request body is not valid JSON")
	}
	return nil
}

// validateRequest runs struct validation and writes the VALIDATION_ERROR
// response on failure. Returns true when the request is valid.
func validateRequest(w http.ResponseWriter, req any) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidationError, "request validation failed", verr.Details()...)
		return false
	}
	return true
}

// sanitizeLogValue strips newlines and truncates client-supplied strings
// before they reach the log, preventing log injection.
func sanitizeLogValue(v string) string {
	v = strings.ReplaceAll(v, "\n", "")
	v = strings.ReplaceAll(v, "\r", "")
	if len(v) > 100 {
		v = v[:100]
	}
	return v
}

// clientIP extracts the caller address without the port.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		addr = addr[:i]
	}
	return strings.Trim(addr, "[]")
}
