// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package admin executes GM commands arriving over gm:command. Every
// action answers with a CommandAck to the issuing socket only; the state
// changes themselves reach the room through the event bus like any other
// mutation.
package admin

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/session"
	"github.com/tomtom215/aln-orchestrator/internal/tokens"
	"github.com/tomtom215/aln-orchestrator/internal/video"
)

// Command action names accepted over gm:command.
const (
	ActionSessionCreate     = "session:create"
	ActionSessionPause      = "session:pause"
	ActionSessionResume     = "session:resume"
	ActionSessionEnd        = "session:end"
	ActionScoreAdjust       = "score:adjust"
	ActionTransactionDelete = "transaction:delete"
	ActionTransactionCreate = "transaction:create"
	ActionVideoPlay         = "video:play"
	ActionVideoPause        = "video:pause"
	ActionVideoSkip         = "video:skip"
	ActionVideoQueueClear   = "video:queue:clear"
	ActionSystemReset       = "system:reset"
)

// BatchCache is the slice of the batch handler system:reset touches.
type BatchCache interface {
	ResetCache()
}

// Handler executes admin commands against the domain services.
type Handler struct {
	manager *session.Manager
	engine  *engine.Engine
	queue   *video.Queue
	catalog *tokens.Catalog
	batch   BatchCache
	logger  zerolog.Logger
}

// NewHandler wires the command handler. batch may be nil in tests that
// never issue system:reset.
func NewHandler(manager *session.Manager, eng *engine.Engine, queue *video.Queue, catalog *tokens.Catalog, batch BatchCache) *Handler {
	return &Handler{
		manager: manager,
		engine:  eng,
		queue:   queue,
		catalog: catalog,
		batch:   batch,
		logger:  logging.WithComponent("admin"),
	}
}

// Execute runs one command and returns its acknowledgment. It never
// panics on malformed payloads; those come back as VALIDATION_ERROR acks.
func (h *Handler) Execute(ctx context.Context, deviceID string, cmd models.Command) models.CommandAck {
	h.logger.Info().
		Str("action", cmd.Action).
		Str("device_id", deviceID).
		Msg("admin command")

	switch cmd.Action {
	case ActionSessionCreate:
		return h.sessionCreate(ctx, cmd)
	case ActionSessionPause:
		return h.sessionSetStatus(ctx, cmd.Action, models.SessionPaused)
	case ActionSessionResume:
		return h.sessionSetStatus(ctx, cmd.Action, models.SessionActive)
	case ActionSessionEnd:
		return h.sessionEnd(ctx)
	case ActionScoreAdjust:
		return h.scoreAdjust(ctx, cmd)
	case ActionTransactionDelete:
		return h.transactionDelete(ctx, cmd)
	case ActionTransactionCreate:
		return h.transactionCreate(ctx, deviceID, cmd)
	case ActionVideoPlay:
		return h.videoPlay(ctx, cmd)
	case ActionVideoPause:
		return h.videoPause(ctx)
	case ActionVideoSkip:
		h.queue.Skip(ctx)
		return ok(ActionVideoSkip, "skipped to next queued video")
	case ActionVideoQueueClear:
		h.queue.Clear(ctx)
		return ok(ActionVideoQueueClear, "video queue cleared")
	case ActionSystemReset:
		return h.systemReset(ctx)
	default:
		return fail(cmd.Action, models.CodeUnknownAction, "unknown action: "+cmd.Action)
	}
}

type sessionCreatePayload struct {
	Name  string   `json:"name"`
	Teams []string `json:"teams"`
}

func (h *Handler) sessionCreate(ctx context.Context, cmd models.Command) models.CommandAck {
	var p sessionCreatePayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fail(cmd.Action, models.CodeValidationError, "malformed session:create payload")
		}
	}
	for _, team := range p.Teams {
		if !models.ValidTeamID(team) {
			return fail(cmd.Action, models.CodeValidationError, "teamId must be exactly three digits: "+team)
		}
	}

	s, err := h.manager.CreateSession(ctx, p.Name, p.Teams)
	if err != nil {
		if errors.Is(err, session.ErrConcurrentSession) {
			return fail(cmd.Action, models.CodeConcurrentSession, "end the current session first")
		}
		return fail(cmd.Action, models.CodeInternalError, err.Error())
	}
	return okResult(cmd.Action, "session created", s)
}

func (h *Handler) sessionSetStatus(ctx context.Context, action string, status models.SessionStatus) models.CommandAck {
	id := h.manager.CurrentID()
	if id == "" {
		return fail(action, models.CodeSessionNotFound, "no current session")
	}

	s, err := h.manager.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			return fail(action, models.CodeValidationError, err.Error())
		}
		return fail(action, models.CodeInternalError, err.Error())
	}
	return okResult(action, "session "+string(status), s)
}

func (h *Handler) sessionEnd(ctx context.Context) models.CommandAck {
	s, err := h.manager.EndSession(ctx, "admin")
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return fail(ActionSessionEnd, models.CodeSessionNotFound, "no current session")
		}
		return fail(ActionSessionEnd, models.CodeInternalError, err.Error())
	}
	return okResult(ActionSessionEnd, "session ended", s)
}

type scoreAdjustPayload struct {
	TeamID string `json:"teamId"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) scoreAdjust(ctx context.Context, cmd models.Command) models.CommandAck {
	var p scoreAdjustPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fail(cmd.Action, models.CodeValidationError, "malformed score:adjust payload")
	}
	if !models.ValidTeamID(p.TeamID) {
		return fail(cmd.Action, models.CodeValidationError, "teamId must be exactly three digits")
	}

	score, err := h.manager.AdjustScore(ctx, p.TeamID, p.Delta, p.Reason)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return fail(cmd.Action, models.CodeSessionNotFound, "no current session")
		}
		return fail(cmd.Action, models.CodeInternalError, err.Error())
	}
	return okResult(cmd.Action, "score adjusted", score)
}

type transactionDeletePayload struct {
	TransactionID string `json:"transactionId"`
}

func (h *Handler) transactionDelete(ctx context.Context, cmd models.Command) models.CommandAck {
	var p transactionDeletePayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil || p.TransactionID == "" {
		return fail(cmd.Action, models.CodeValidationError, "transactionId is required")
	}

	tx, err := h.manager.DeleteTransaction(ctx, p.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			return fail(cmd.Action, models.CodeSessionNotFound, "no current session")
		case errors.Is(err, session.ErrTransactionNotFound):
			return fail(cmd.Action, models.CodeValidationError, "transaction not found: "+p.TransactionID)
		default:
			return fail(cmd.Action, models.CodeInternalError, err.Error())
		}
	}
	return okResult(cmd.Action, "transaction deleted, scores recomputed", tx)
}

type transactionCreatePayload struct {
	TokenID string `json:"tokenId"`
	TeamID  string `json:"teamId,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// transactionCreate injects a server-side scan through the normal engine
// path so scoring, duplicate detection, and events all behave as if a GM
// station had scanned the token.
func (h *Handler) transactionCreate(ctx context.Context, deviceID string, cmd models.Command) models.CommandAck {
	var p transactionCreatePayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fail(cmd.Action, models.CodeValidationError, "malformed transaction:create payload")
	}
	if !models.ValidTokenID(p.TokenID) {
		return fail(cmd.Action, models.CodeValidationError, "tokenId must be 1-100 characters of letters, digits or underscore")
	}
	if p.TeamID != "" && !models.ValidTeamID(p.TeamID) {
		return fail(cmd.Action, models.CodeValidationError, "teamId must be exactly three digits")
	}

	result := h.engine.Process(ctx, &engine.ScanRequest{
		TokenID:    p.TokenID,
		TeamID:     p.TeamID,
		DeviceID:   deviceID,
		DeviceType: models.DeviceTypeAdmin,
		Mode:       models.ScanMode(p.Mode),
	})
	if result.Transaction.Status != models.TxAccepted {
		code := result.Code
		if code == "" {
			code = models.CodeTokenNotFound
		}
		return fail(cmd.Action, code, result.Message)
	}
	return okResult(cmd.Action, "transaction recorded", models.ScanResponseFor(result.Transaction, result.Token, result.VideoQueued))
}

type videoPlayPayload struct {
	TokenID  string `json:"tokenId,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// videoPlay enqueues the named token or file; with an empty payload it
// resumes paused playback instead.
func (h *Handler) videoPlay(ctx context.Context, cmd models.Command) models.CommandAck {
	var p videoPlayPayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fail(cmd.Action, models.CodeValidationError, "malformed video:play payload")
		}
	}

	if p.TokenID == "" && p.Filename == "" {
		if err := h.queue.Resume(ctx); err != nil {
			return fail(cmd.Action, models.CodeVLCError, err.Error())
		}
		return ok(cmd.Action, "playback resumed")
	}

	filename := p.Filename
	tokenID := p.TokenID
	if filename == "" {
		token, found := h.catalog.Get(tokenID)
		if !found {
			return fail(cmd.Action, models.CodeTokenNotFound, "unknown token: "+tokenID)
		}
		if token.MediaAssets == nil || token.MediaAssets.Video == "" {
			return fail(cmd.Action, models.CodeValidationError, "token has no video asset: "+tokenID)
		}
		filename = token.MediaAssets.Video
	}
	if tokenID == "" {
		tokenID = filename
	}

	position := h.queue.Enqueue(ctx, tokenID, filename)
	return okResult(cmd.Action, "queued", map[string]any{"position": position})
}

func (h *Handler) videoPause(ctx context.Context) models.CommandAck {
	if err := h.queue.Pause(ctx); err != nil {
		return fail(ActionVideoPause, models.CodeVLCError, err.Error())
	}
	return ok(ActionVideoPause, "playback paused")
}

// systemReset tears the game state down for the next run: scores reset,
// session ended, engine transients cleared, video queue emptied, batch
// idempotency cache dropped. Persisted session history stays on disk.
func (h *Handler) systemReset(ctx context.Context) models.CommandAck {
	if err := h.manager.ResetScores(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
		return fail(ActionSystemReset, models.CodeInternalError, err.Error())
	}
	if _, err := h.manager.EndSession(ctx, "system reset"); err != nil && !errors.Is(err, session.ErrNoSession) {
		return fail(ActionSystemReset, models.CodeInternalError, err.Error())
	}

	h.engine.Reset()
	h.queue.Clear(ctx)
	if h.batch != nil {
		h.batch.ResetCache()
	}

	h.logger.Warn().Msg("system reset complete")
	return ok(ActionSystemReset, "system reset complete")
}

func ok(action, message string) models.CommandAck {
	return models.CommandAck{Action: action, Success: true, Message: message}
}

func okResult(action, message string, result any) models.CommandAck {
	return models.CommandAck{Action: action, Success: true, Message: message, Result: result}
}

func fail(action, code, message string) models.CommandAck {
	return models.CommandAck{Action: action, Success: false, Error: code, Message: message}
}
