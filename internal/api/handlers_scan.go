// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/batch"
	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/metrics"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// scanRequest is the POST /api/scan body.
type scanRequest struct {
	TokenID   string     `json:"tokenId" validate:"required,tokenid"`
	TeamID    string     `json:"teamId" validate:"omitempty,teamid"`
	DeviceID  string     `json:"deviceId" validate:"required,deviceid"`
	Mode      string     `json:"mode" validate:"omitempty,scanmode"`
	Timestamp *time.Time `json:"timestamp"`
}

// Scan handles POST /api/scan: one player scanner submission. The
// response is advisory; scanners already showed the player something
// from their local catalog by the time this body arrives.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	start := time.Now()
	result := h.engine.Process(r.Context(), &engine.ScanRequest{
		TokenID:   req.TokenID,
		TeamID:    req.TeamID,
		DeviceID:  req.DeviceID,
		Mode:      models.ScanMode(req.Mode),
		Timestamp: req.Timestamp,
	})
	metrics.RecordScan("http", string(result.Transaction.Status), time.Since(start))

	resp := models.ScanResponseFor(result.Transaction, result.Token, result.VideoQueued)
	resp.Message = result.Message

	switch result.Transaction.Status {
	case models.TxAccepted, models.TxUnknown:
		respondJSON(w, http.StatusOK, resp)
	case models.TxDuplicate:
		respondJSON(w, http.StatusConflict, resp)
	default:
		status := http.StatusInternalServerError
		if result.Code == models.CodeSessionNotFound {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, result.Code, result.Message)
	}
}

// batchRequest is the POST /api/scan/batch body.
type batchRequest struct {
	BatchID      string               `json:"batchId"`
	DeviceID     string               `json:"deviceId" validate:"required,deviceid"`
	Transactions []engine.ScanRequest `json:"transactions"`
}

// ScanBatch handles POST /api/scan/batch: an offline queue flush.
// Replayed batch ids return the cached result with alreadyProcessed set,
// so scanner retries are harmless.
func (h *Handler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	for i := range req.Transactions {
		if !models.ValidTokenID(req.Transactions[i].TokenID) {
			respondError(w, http.StatusBadRequest, models.CodeValidationError,
				"batch contains an invalid tokenId", "transactions["+strconv.Itoa(i)+"].tokenId")
			return
		}
		if teamID := req.Transactions[i].TeamID; teamID != "" && !models.ValidTeamID(teamID) {
			respondError(w, http.StatusBadRequest, models.CodeValidationError,
				"batch contains an invalid teamId", "transactions["+strconv.Itoa(i)+"].teamId")
			return
		}
	}

	result := h.batch.Process(r.Context(), &batch.Request{
		BatchID:      req.BatchID,
		DeviceID:     req.DeviceID,
		Transactions: req.Transactions,
	})

	outcome := "fresh"
	if result.AlreadyProcessed {
		outcome = "replay"
	}
	metrics.BatchesProcessed.WithLabelValues(outcome).Inc()
	metrics.BatchItems.Add(float64(len(result.Results)))

	logging.Ctx(r.Context()).Info().
		Str("batch_id", sanitizeLogValue(result.BatchID)).
		Str("device_id", sanitizeLogValue(req.DeviceID)).
		Int("count", len(result.Results)).
		Bool("already_processed", result.AlreadyProcessed).
		Msg("Batch submitted")

	respondJSON(w, http.StatusOK, result)
}
