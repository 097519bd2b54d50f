// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package batch processes offline scan queues. Scanners in dead zones
// buffer scans locally and submit them as a batch once connectivity
// returns; scanners also retry whole batches, so processing is
// idempotent on batchId within a TTL window.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/cache"
	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// Cache sizing floors; configs below these are raised, matching the
// published option contract.
const (
	minCacheSize = 100
	minCacheTTL  = time.Hour
)

// Request is one submitted offline batch. Items usually omit DeviceID
// and inherit the batch's.
type Request struct {
	BatchID      string               `json:"batchId"`
	DeviceID     string               `json:"deviceId"`
	Transactions []engine.ScanRequest `json:"transactions"`
}

// Handler runs offline batches through the scan engine, one batch at a
// time. Items inside a batch commit individually through the session
// manager, so a live scan may interleave at item boundaries; duplicate
// safety comes from the manager's claim check, not from batch-wide
// locking.
type Handler struct {
	engine *engine.Engine
	bus    *events.Bus
	seen   *cache.LRU
	logger zerolog.Logger

	mu sync.Mutex
}

// NewHandler creates a batch handler with an idempotency cache of the
// given capacity and TTL.
func NewHandler(eng *engine.Engine, bus *events.Bus, capacity int, ttl time.Duration) *Handler {
	if capacity < minCacheSize {
		capacity = minCacheSize
	}
	if ttl < minCacheTTL {
		ttl = minCacheTTL
	}
	return &Handler{
		engine: eng,
		bus:    bus,
		seen:   cache.NewLRU(capacity, ttl),
		logger: logging.WithComponent("batch"),
	}
}

// Process runs a batch. A batchId seen within the TTL window returns the
// cached result with AlreadyProcessed set and emits nothing. Fresh
// batches process every item in order, preserving submitted timestamps,
// then emit batch:ack and offline:queue:processed. Empty batches are
// valid: they cache and ack with no items.
func (h *Handler) Process(ctx context.Context, req *Request) *models.BatchResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	batchID := req.BatchID
	if batchID == "" {
		// Without an id there is nothing to deduplicate against; assign
		// one so the ack and cache entry still work.
		batchID = uuid.NewString()
		h.logger.Warn().Str("device_id", req.DeviceID).Msg("Batch submitted without id")
	}

	if cached, ok := h.seen.Get(batchID); ok {
		prior := cached.(*models.BatchResult)
		h.logger.Info().
			Str("batch_id", batchID).
			Str("device_id", req.DeviceID).
			Msg("Batch replay, returning cached result")
		return &models.BatchResult{
			BatchID:          prior.BatchID,
			Results:          prior.Results,
			AlreadyProcessed: true,
		}
	}

	results := make([]models.BatchItemResult, 0, len(req.Transactions))
	for i := range req.Transactions {
		item := req.Transactions[i]
		if item.DeviceID == "" {
			item.DeviceID = req.DeviceID
		}

		outcome := h.engine.Process(ctx, &item)
		r := models.BatchItemResult{
			Index:         i,
			TransactionID: outcome.Transaction.ID,
			Status:        outcome.Transaction.Status,
		}
		if outcome.Transaction.Status == models.TxError {
			r.Error = outcome.Message
		}
		results = append(results, r)
	}

	result := &models.BatchResult{BatchID: batchID, Results: results}
	h.seen.Add(batchID, result)

	h.logger.Info().
		Str("batch_id", batchID).
		Str("device_id", req.DeviceID).
		Int("count", len(results)).
		Msg("Batch processed")

	h.publish(ctx, events.BatchAck, models.BatchAck{
		BatchID:   batchID,
		DeviceID:  req.DeviceID,
		Count:     len(results),
		Timestamp: time.Now().UTC(),
	})
	h.publish(ctx, events.OfflineQueueProcessed, events.OfflineQueuePayload{
		BatchID:  batchID,
		DeviceID: req.DeviceID,
		Count:    len(results),
		Results:  results,
	})

	return result
}

// ResetCache drops all remembered batch results. Used by system:reset;
// scanners that resubmit afterwards will be processed again.
func (h *Handler) ResetCache() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen.Clear()
}

func (h *Handler) publish(ctx context.Context, name string, payload any) {
	if err := h.bus.Publish(ctx, name, payload); err != nil {
		h.logger.Error().Err(err).Str("event", name).Msg("Failed to publish batch event")
	}
}
