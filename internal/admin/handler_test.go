// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package admin

import (
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/session"
	"github.com/tomtom215/aln-orchestrator/internal/store"
	"github.com/tomtom215/aln-orchestrator/internal/tokens"
	"github.com/tomtom215/aln-orchestrator/internal/video"
)

const testCatalogJSON = `{
  "kaa001": {
    "memoryType": "Personal",
    "valueRating": 3,
    "mediaAssets": {"video": "kaa001.mp4"}
  },
  "doc_b7": {
    "memoryType": "Business",
    "valueRating": 2
  }
}`

type idlePlayer struct{}

func (idlePlayer) Play(_ context.Context, filename string) (*video.Status, error) {
	return &video.Status{State: "playing", Filename: filename, Duration: 30}, nil
}
func (idlePlayer) Stop(context.Context) error   { return nil }
func (idlePlayer) Pause(context.Context) error  { return nil }
func (idlePlayer) Resume(context.Context) error { return nil }
func (idlePlayer) Status(context.Context) (*video.Status, error) {
	return &video.Status{State: "playing"}, nil
}
func (idlePlayer) Health() bool { return true }

type countingCache struct{ resets int }

func (c *countingCache) ResetCache() { c.resets++ }

type harness struct {
	handler *Handler
	manager *session.Manager
	engine  *engine.Engine
	queue   *video.Queue
	cache   *countingCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	catalog, err := tokens.LoadFromReader(strings.NewReader(testCatalogJSON))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	bus := events.NewBus(events.Config{})
	t.Cleanup(func() { bus.Close() })

	manager := session.NewManager(st, bus)
	queue := video.NewQueue(idlePlayer{}, bus, manager)
	eng := engine.New(catalog, manager, queue)
	cache := &countingCache{}

	return &harness{
		handler: NewHandler(manager, eng, queue, catalog, cache),
		manager: manager,
		engine:  eng,
		queue:   queue,
		cache:   cache,
	}
}

func (h *harness) exec(t *testing.T, action string, payload any) models.CommandAck {
	t.Helper()
	cmd := models.Command{Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		cmd.Payload = raw
	}
	return h.handler.Execute(context.Background(), "admin-1", cmd)
}

func (h *harness) startSession(t *testing.T) {
	t.Helper()
	ack := h.exec(t, ActionSessionCreate, map[string]any{"name": "run", "teams": []string{"001", "002"}})
	if !ack.Success {
		t.Fatalf("session:create failed: %s %s", ack.Error, ack.Message)
	}
}

func TestUnknownAction(t *testing.T) {
	h := newHarness(t)

	ack := h.exec(t, "fleet:warp", nil)
	if ack.Success {
		t.Fatal("unknown action reported success")
	}
	if ack.Error != models.CodeUnknownAction {
		t.Errorf("Error got = %v, want %v", ack.Error, models.CodeUnknownAction)
	}
	if ack.Action != "fleet:warp" {
		t.Errorf("Action got = %v, want fleet:warp", ack.Action)
	}
}

func TestSessionLifecycleCommands(t *testing.T) {
	h := newHarness(t)

	if ack := h.exec(t, ActionSessionPause, nil); ack.Success || ack.Error != models.CodeSessionNotFound {
		t.Errorf("pause with no session: got %+v, want SESSION_NOT_FOUND failure", ack)
	}

	h.startSession(t)
	if h.manager.Current().Status != models.SessionActive {
		t.Fatalf("session status = %v, want active", h.manager.Current().Status)
	}

	if ack := h.exec(t, ActionSessionCreate, map[string]any{"name": "second"}); ack.Success || ack.Error != models.CodeConcurrentSession {
		t.Errorf("concurrent create: got %+v, want CONCURRENT_SESSION failure", ack)
	}

	if ack := h.exec(t, ActionSessionPause, nil); !ack.Success {
		t.Fatalf("pause failed: %s", ack.Message)
	}
	if h.manager.Current().Status != models.SessionPaused {
		t.Errorf("status after pause = %v, want paused", h.manager.Current().Status)
	}

	if ack := h.exec(t, ActionSessionResume, nil); !ack.Success {
		t.Fatalf("resume failed: %s", ack.Message)
	}
	if h.manager.Current().Status != models.SessionActive {
		t.Errorf("status after resume = %v, want active", h.manager.Current().Status)
	}

	if ack := h.exec(t, ActionSessionEnd, nil); !ack.Success {
		t.Fatalf("end failed: %s", ack.Message)
	}
	if h.manager.HasActiveSession() {
		t.Error("session still active after session:end")
	}

	if ack := h.exec(t, ActionSessionEnd, nil); ack.Success || ack.Error != models.CodeSessionNotFound {
		t.Errorf("double end: got %+v, want SESSION_NOT_FOUND failure", ack)
	}
}

func TestSessionCreateRejectsBadTeamID(t *testing.T) {
	h := newHarness(t)

	ack := h.exec(t, ActionSessionCreate, map[string]any{"teams": []string{"01"}})
	if ack.Success || ack.Error != models.CodeValidationError {
		t.Errorf("got %+v, want VALIDATION_ERROR failure", ack)
	}
}

func TestScoreAdjust(t *testing.T) {
	h := newHarness(t)
	h.startSession(t)

	ack := h.exec(t, ActionScoreAdjust, map[string]any{"teamId": "001", "delta": 250, "reason": "bonus round"})
	if !ack.Success {
		t.Fatalf("score:adjust failed: %s %s", ack.Error, ack.Message)
	}

	score := h.manager.Current().Scores["001"]
	if score.CurrentScore != 250 {
		t.Errorf("CurrentScore = %d, want 250", score.CurrentScore)
	}
	if len(score.AdminAdjustments) != 1 || score.AdminAdjustments[0].Reason != "bonus round" {
		t.Errorf("AdminAdjustments = %+v, want one entry with reason", score.AdminAdjustments)
	}
}

func TestScoreAdjustValidation(t *testing.T) {
	h := newHarness(t)
	h.startSession(t)

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"bad team id", map[string]any{"teamId": "1", "delta": 10}, models.CodeValidationError},
		{"missing team id", map[string]any{"delta": 10}, models.CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := h.exec(t, ActionScoreAdjust, tt.payload)
			if ack.Success || ack.Error != tt.want {
				t.Errorf("got %+v, want %s failure", ack, tt.want)
			}
		})
	}
}

func TestTransactionCreateAndDelete(t *testing.T) {
	h := newHarness(t)
	h.startSession(t)

	ack := h.exec(t, ActionTransactionCreate, map[string]any{"tokenId": "doc_b7", "teamId": "001"})
	if !ack.Success {
		t.Fatalf("transaction:create failed: %s %s", ack.Error, ack.Message)
	}

	s := h.manager.Current()
	if len(s.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(s.Transactions))
	}
	tx := s.Transactions[0]
	if tx.DeviceID != "admin-1" || tx.DeviceType != models.DeviceTypeAdmin {
		t.Errorf("injected tx device = %s/%s, want admin-1/admin", tx.DeviceID, tx.DeviceType)
	}
	if s.Scores["001"].CurrentScore != 1500 {
		t.Errorf("score = %d, want 1500", s.Scores["001"].CurrentScore)
	}

	// Duplicate injection is a failed ack, not a silent success.
	dup := h.exec(t, ActionTransactionCreate, map[string]any{"tokenId": "doc_b7", "teamId": "002"})
	if dup.Success || dup.Error != models.CodeDuplicateTransaction {
		t.Errorf("duplicate inject: got %+v, want DUPLICATE_TRANSACTION failure", dup)
	}

	del := h.exec(t, ActionTransactionDelete, map[string]any{"transactionId": tx.ID})
	if !del.Success {
		t.Fatalf("transaction:delete failed: %s %s", del.Error, del.Message)
	}
	if got := h.manager.Current().Scores["001"].CurrentScore; got != 0 {
		t.Errorf("score after delete = %d, want 0 (replay)", got)
	}

	missing := h.exec(t, ActionTransactionDelete, map[string]any{"transactionId": "nope"})
	if missing.Success || missing.Error != models.CodeValidationError {
		t.Errorf("delete missing tx: got %+v, want VALIDATION_ERROR failure", missing)
	}
}

func TestVideoPlayVariants(t *testing.T) {
	h := newHarness(t)
	h.startSession(t)

	t.Run("by token id", func(t *testing.T) {
		ack := h.exec(t, ActionVideoPlay, map[string]any{"tokenId": "kaa001"})
		if !ack.Success {
			t.Fatalf("video:play failed: %s %s", ack.Error, ack.Message)
		}
		status := h.queue.Status()
		if status.TokenID != "kaa001" {
			t.Errorf("playing token = %q, want kaa001", status.TokenID)
		}
	})

	t.Run("token without video asset", func(t *testing.T) {
		ack := h.exec(t, ActionVideoPlay, map[string]any{"tokenId": "doc_b7"})
		if ack.Success || ack.Error != models.CodeValidationError {
			t.Errorf("got %+v, want VALIDATION_ERROR failure", ack)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		ack := h.exec(t, ActionVideoPlay, map[string]any{"tokenId": "ghost"})
		if ack.Success || ack.Error != models.CodeTokenNotFound {
			t.Errorf("got %+v, want TOKEN_NOT_FOUND failure", ack)
		}
	})

	t.Run("explicit filename", func(t *testing.T) {
		ack := h.exec(t, ActionVideoPlay, map[string]any{"filename": "intro.mp4"})
		if !ack.Success {
			t.Errorf("video:play by filename failed: %s %s", ack.Error, ack.Message)
		}
	})

	t.Run("empty payload resumes", func(t *testing.T) {
		if ack := h.exec(t, ActionVideoPause, nil); !ack.Success {
			t.Fatalf("video:pause failed: %s", ack.Message)
		}
		ack := h.exec(t, ActionVideoPlay, nil)
		if !ack.Success {
			t.Errorf("empty video:play failed: %s %s", ack.Error, ack.Message)
		}
	})
}

func TestVideoQueueClear(t *testing.T) {
	h := newHarness(t)
	h.startSession(t)

	h.exec(t, ActionVideoPlay, map[string]any{"filename": "a.mp4"})
	h.exec(t, ActionVideoPlay, map[string]any{"filename": "b.mp4"})

	ack := h.exec(t, ActionVideoQueueClear, nil)
	if !ack.Success {
		t.Fatalf("video:queue:clear failed: %s", ack.Message)
	}
	if got := h.queue.Status().QueueLength; got != 0 {
		t.Errorf("queue length after clear = %d, want 0", got)
	}
}

func TestSystemReset(t *testing.T) {
	h := newHarness(t)
	h.startSession(t)

	h.exec(t, ActionTransactionCreate, map[string]any{"tokenId": "kaa001", "teamId": "001"})
	if h.engine.Stats().Processed == 0 {
		t.Fatal("expected engine activity before reset")
	}

	ack := h.exec(t, ActionSystemReset, nil)
	if !ack.Success {
		t.Fatalf("system:reset failed: %s %s", ack.Error, ack.Message)
	}

	if h.manager.HasActiveSession() {
		t.Error("session still active after system:reset")
	}
	if got := h.engine.Stats().Processed; got != 0 {
		t.Errorf("engine stats after reset = %d, want 0", got)
	}
	if got := h.queue.Status().QueueLength; got != 0 {
		t.Errorf("queue length after reset = %d, want 0", got)
	}
	if h.cache.resets != 1 {
		t.Errorf("batch cache resets = %d, want 1", h.cache.resets)
	}

	// History survives: the ended session is still on disk.
	sessions, err := h.manager.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("persisted sessions = %d, want 1", len(sessions))
	}
}

func TestSystemResetWithoutSession(t *testing.T) {
	h := newHarness(t)

	ack := h.exec(t, ActionSystemReset, nil)
	if !ack.Success {
		t.Errorf("system:reset with no session should succeed, got %+v", ack)
	}
	if h.cache.resets != 1 {
		t.Errorf("batch cache resets = %d, want 1", h.cache.resets)
	}
}
