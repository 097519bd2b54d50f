// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package engine turns raw scan submissions into transactions.
//
// The engine is stateless between scans apart from counters: claims,
// scores, and group progress all live in the session manager, which is
// the serialization point for concurrent scans. The duplicate check here
// is an advisory fast path; the manager repeats it under its lock and
// demotes a racing claim, so two engines (HTTP and WebSocket paths)
// processing the same token concurrently still yield exactly one
// accepted transaction.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/session"
	"github.com/tomtom215/aln-orchestrator/internal/tokens"
)

// ScanRequest is one scan submission from HTTP, WebSocket, or an offline
// batch item.
type ScanRequest struct {
	TokenID    string            `json:"tokenId"`
	TeamID     string            `json:"teamId,omitempty"`
	DeviceID   string            `json:"deviceId"`
	DeviceType models.DeviceType `json:"deviceType,omitempty"`
	Mode       models.ScanMode   `json:"mode,omitempty"`

	// Timestamp overrides the transaction time; offline batches submit
	// the original scan time. Nil means now.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ScanResult is the outcome of one processed scan. Transaction is always
// set; synthetic error transactions (no session, persist failure) are not
// persisted and carry status error.
type ScanResult struct {
	Transaction *models.Transaction
	Completion  *models.GroupCompletion

	// Token is the catalog entry, nil for unknown token ids.
	Token *models.Token

	// VideoQueued reports whether the scan put a video on the queue.
	VideoQueued bool

	// Code is a wire error code for non-accepted outcomes, empty
	// otherwise.
	Code    string
	Message string
}

// VideoIntake receives accepted scans of tokens that carry a video asset.
// Implemented by the video queue; nil disables video intake.
type VideoIntake interface {
	// OfferScan queues the token's video. Returns false when the queue
	// rejects it (full backlog).
	OfferScan(ctx context.Context, token *models.Token, deviceID string) bool
}

// Stats counts processed scans by outcome since the last reset.
type Stats struct {
	Processed  int64 `json:"processed"`
	Accepted   int64 `json:"accepted"`
	Duplicates int64 `json:"duplicates"`
	Unknown    int64 `json:"unknown"`
	Errors     int64 `json:"errors"`
}

// Engine processes scans against the token catalog and session manager.
type Engine struct {
	catalog *tokens.Catalog
	manager *session.Manager
	video   VideoIntake
	logger  zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a scan engine. video may be nil when no video system is
// configured.
func New(catalog *tokens.Catalog, manager *session.Manager, video VideoIntake) *Engine {
	return &Engine{
		catalog: catalog,
		manager: manager,
		video:   video,
		logger:  logging.WithComponent("engine"),
	}
}

// Process runs one scan through the full pipeline: session gate,
// duplicate check, catalog lookup, scoring, persistence, video intake.
// The result always carries a transaction; callers map Code to their
// transport's error shape.
func (e *Engine) Process(ctx context.Context, req *ScanRequest) *ScanResult {
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = models.DeviceTypePlayer
	}

	tx := models.NewTransaction(req.TokenID, req.TeamID, req.DeviceID, deviceType, req.Mode)
	if req.Timestamp != nil {
		tx.Timestamp = req.Timestamp.UTC()
	}

	if !e.manager.HasActiveSession() {
		return e.errorResult(tx, models.CodeSessionNotFound, "no active session")
	}

	token, known := e.catalog.Get(req.TokenID)
	if known {
		tx.MemoryType = token.MemoryType
		tx.ValueRating = token.ValueRating
		tx.Group = token.Group
	}

	if claim, taken := e.manager.TokenClaim(req.TokenID); taken {
		tx.Status = models.TxDuplicate
		tx.OriginalTransactionID = claim.TransactionID
		return e.commitDuplicate(ctx, tx, token)
	}

	if !known {
		return e.commitUnknown(ctx, tx)
	}

	tx.Status = models.TxAccepted
	if tx.Mode != models.ModeDetective {
		tx.Points = token.Value()
	}

	appended, completion, err := e.manager.AddTransaction(ctx, tx)
	if err != nil {
		return e.commitFailed(tx, err)
	}
	if appended.Status == models.TxDuplicate {
		// Lost the claim race inside the manager.
		return e.duplicateResult(appended, token)
	}

	videoQueued := false
	if e.video != nil && token.HasVideo() {
		videoQueued = e.video.OfferScan(ctx, token, req.DeviceID)
	}

	e.count(func(s *Stats) { s.Processed++; s.Accepted++ })
	e.logger.Info().
		Str("token_id", appended.TokenID).
		Str("team_id", appended.TeamID).
		Str("device_id", appended.DeviceID).
		Int("points", appended.Points).
		Bool("video_queued", videoQueued).
		Msg("Scan accepted")

	return &ScanResult{
		Transaction: appended,
		Completion:  completion,
		Token:       token,
		VideoQueued: videoQueued,
	}
}

// commitDuplicate persists a pre-detected duplicate. Duplicates are part
// of the transaction log and still broadcast; they just never score.
func (e *Engine) commitDuplicate(ctx context.Context, tx *models.Transaction, token *models.Token) *ScanResult {
	appended, _, err := e.manager.AddTransaction(ctx, tx)
	if err != nil {
		return e.commitFailed(tx, err)
	}
	return e.duplicateResult(appended, token)
}

func (e *Engine) duplicateResult(tx *models.Transaction, token *models.Token) *ScanResult {
	e.count(func(s *Stats) { s.Processed++; s.Duplicates++ })
	e.logger.Debug().
		Str("token_id", tx.TokenID).
		Str("device_id", tx.DeviceID).
		Str("original_transaction_id", tx.OriginalTransactionID).
		Msg("Duplicate scan")

	return &ScanResult{
		Transaction: tx,
		Token:       token,
		Code:        models.CodeDuplicateTransaction,
		Message:     "token already claimed this session",
	}
}

// commitUnknown persists a scan of a token id the catalog does not know.
// Unknown scans are recorded for post-game review but never claim, score,
// or dedupe.
func (e *Engine) commitUnknown(ctx context.Context, tx *models.Transaction) *ScanResult {
	tx.Status = models.TxUnknown
	tx.IsUnknown = true
	tx.MemoryType = models.MemoryTypeUnknown

	appended, _, err := e.manager.AddTransaction(ctx, tx)
	if err != nil {
		return e.commitFailed(tx, err)
	}

	e.count(func(s *Stats) { s.Processed++; s.Unknown++ })
	e.logger.Warn().
		Str("token_id", appended.TokenID).
		Str("device_id", appended.DeviceID).
		Msg("Unknown token scanned")

	return &ScanResult{
		Transaction: appended,
		Message:     "token not in catalog",
	}
}

func (e *Engine) commitFailed(tx *models.Transaction, err error) *ScanResult {
	if errors.Is(err, session.ErrNoSession) {
		return e.errorResult(tx, models.CodeSessionNotFound, "no active session")
	}
	e.logger.Error().Err(err).Str("token_id", tx.TokenID).Msg("Transaction commit failed")
	return e.errorResult(tx, models.CodeInternalError, "failed to record scan")
}

// errorResult builds a synthetic, non-persisted error transaction.
func (e *Engine) errorResult(tx *models.Transaction, code, message string) *ScanResult {
	tx.Status = models.TxError
	tx.Points = 0

	e.count(func(s *Stats) { s.Processed++; s.Errors++ })

	return &ScanResult{
		Transaction: tx,
		Code:        code,
		Message:     message,
	}
}

func (e *Engine) count(apply func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	apply(&e.stats)
}

// Stats returns a snapshot of the outcome counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Reset zeroes the outcome counters. Claims and scores are session state
// and reset with the session, not here.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Stats{}
}
