// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, *events.Bus) {
	t.Helper()

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	bus := events.NewBus(events.Config{})
	t.Cleanup(func() { bus.Close() })

	return NewManager(st, bus), st, bus
}

// collector drains domain events for assertions.
type collector struct {
	ch <-chan *events.Event
}

func newCollector(t *testing.T, bus *events.Bus) *collector {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	return &collector{ch: ch}
}

func (c *collector) next(t *testing.T) *events.Event {
	t.Helper()
	select {
	case evt, ok := <-c.ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

// expect asserts the next events arrive with exactly these names, in order.
func (c *collector) expect(t *testing.T, names ...string) []*events.Event {
	t.Helper()
	out := make([]*events.Event, 0, len(names))
	for i, name := range names {
		evt := c.next(t)
		if evt.Name != name {
			t.Fatalf("event %d: Name = %q, want %q", i, evt.Name, name)
		}
		out = append(out, evt)
	}
	return out
}

func scoringTransaction(tokenID, teamID, deviceID string, points int) *models.Transaction {
	tx := models.NewTransaction(tokenID, teamID, deviceID, models.DeviceTypeGM, models.ModeBlackmarket)
	tx.Status = models.TxAccepted
	tx.Points = points
	return tx
}

func TestCreateSessionPersistsAndEmits(t *testing.T) {
	m, st, bus := newTestManager(t)
	c := newCollector(t, bus)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "Friday", []string{"001", "002"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.Status != models.SessionActive {
		t.Errorf("Status = %q, want active", sess.Status)
	}
	if len(sess.Scores) != 2 {
		t.Errorf("len(Scores) = %d, want 2", len(sess.Scores))
	}

	c.expect(t, events.SessionCreated)

	var stored models.Session
	if err := st.Load(store.CurrentSessionKey, &stored); err != nil {
		t.Fatalf("Load(current) error = %v", err)
	}
	if stored.ID != sess.ID {
		t.Errorf("stored ID = %q, want %q", stored.ID, sess.ID)
	}
	if err := st.Load(store.SessionKey(sess.ID), &stored); err != nil {
		t.Fatalf("Load(session:<id>) error = %v", err)
	}

	// The returned session is a snapshot; mutating it never reaches the
	// live one.
	sess.Name = "tampered"
	if got := m.Current().Name; got != "Friday" {
		t.Errorf("Current().Name = %q, want Friday", got)
	}
}

func TestCreateSessionConcurrent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "first", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := m.CreateSession(ctx, "second", nil); !errors.Is(err, ErrConcurrentSession) {
		t.Fatalf("second CreateSession() error = %v, want ErrConcurrentSession", err)
	}

	if _, err := m.EndSession(ctx, ""); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if _, err := m.CreateSession(ctx, "third", nil); err != nil {
		t.Fatalf("CreateSession() after end error = %v", err)
	}
}

func TestCreateSessionInvalidTeam(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.CreateSession(context.Background(), "bad", []string{"01"})
	if !errors.Is(err, ErrInvalidTeamID) {
		t.Fatalf("CreateSession() error = %v, want ErrInvalidTeamID", err)
	}
}

func TestAddTransactionAcceptedFlow(t *testing.T) {
	m, _, bus := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "run", []string{"001"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	c := newCollector(t, bus)
	tx := scoringTransaction("kaa001", "001", "GM_01", 1000)

	appended, completion, err := m.AddTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if appended.Status != models.TxAccepted {
		t.Errorf("Status = %q, want accepted", appended.Status)
	}
	if completion != nil {
		t.Errorf("completion = %+v, want nil", completion)
	}

	c.expect(t, events.TransactionAdded, events.ScoreUpdated, events.SessionUpdated)

	claim, ok := m.TokenClaim("kaa001")
	if !ok {
		t.Fatal("TokenClaim(kaa001) not found")
	}
	if claim.DeviceID != "GM_01" {
		t.Errorf("claim.DeviceID = %q, want GM_01", claim.DeviceID)
	}
	if !m.IsTokenScannedByDevice("GM_01", "kaa001") {
		t.Error("IsTokenScannedByDevice() = false, want true")
	}

	card := m.Current().Scores["001"]
	if card.CurrentScore != 1000 || card.TokensScanned != 1 {
		t.Errorf("score = %d/%d scans, want 1000/1", card.CurrentScore, card.TokensScanned)
	}
}

func TestAddTransactionFirstClaimWins(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "run", []string{"001", "002"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	first, _, err := m.AddTransaction(ctx, scoringTransaction("kaa001", "001", "GM_01", 1000))
	if err != nil {
		t.Fatalf("first AddTransaction() error = %v", err)
	}

	// A second accepted claim slips past the engine's advisory check; the
	// manager demotes it at the serialization point.
	second, _, err := m.AddTransaction(ctx, scoringTransaction("kaa001", "002", "GM_02", 1000))
	if err != nil {
		t.Fatalf("second AddTransaction() error = %v", err)
	}
	if second.Status != models.TxDuplicate {
		t.Errorf("second Status = %q, want duplicate", second.Status)
	}
	if second.Points != 0 {
		t.Errorf("second Points = %d, want 0", second.Points)
	}
	if second.OriginalTransactionID != first.ID {
		t.Errorf("OriginalTransactionID = %q, want %q", second.OriginalTransactionID, first.ID)
	}

	current := m.Current()
	if len(current.Transactions) != 2 {
		t.Errorf("len(Transactions) = %d, want 2 (duplicate persisted)", len(current.Transactions))
	}
	if card := current.Scores["002"]; card != nil && card.CurrentScore != 0 {
		t.Errorf("team 002 score = %d, want 0", card.CurrentScore)
	}
}

func TestAddTransactionGroupCompletion(t *testing.T) {
	m, _, bus := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "run", []string{"001"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	a := scoringTransaction("clue_a", "001", "GM_01", 1500)
	a.Group = "clue (x2)"
	if _, completion, err := m.AddTransaction(ctx, a); err != nil || completion != nil {
		t.Fatalf("first group tx: completion = %v, err = %v", completion, err)
	}

	c := newCollector(t, bus)
	b := scoringTransaction("clue_b", "001", "GM_01", 300)
	b.Group = "clue (x2)"

	_, completion, err := m.AddTransaction(ctx, b)
	if err != nil {
		t.Fatalf("second group tx error = %v", err)
	}
	if completion == nil {
		t.Fatal("completion = nil, want group completion")
	}
	if completion.Group != "clue" || completion.BonusPoints != 1800 {
		t.Errorf("completion = %+v, want clue/1800", completion)
	}

	got := c.expect(t, events.TransactionAdded, events.ScoreUpdated, events.GroupCompleted, events.SessionUpdated)

	var payload models.GroupCompletion
	if err := json.Unmarshal(got[2].Payload, &payload); err != nil {
		t.Fatalf("Unmarshal group:completed: %v", err)
	}
	if payload.TeamID != "001" || payload.BonusPoints != 1800 {
		t.Errorf("group:completed payload = %+v", payload)
	}

	card := m.Current().Scores["001"]
	if card.BaseScore != 1800 || card.BonusPoints != 1800 || card.CurrentScore != 3600 {
		t.Errorf("card = base %d bonus %d current %d, want 1800/1800/3600",
			card.BaseScore, card.BonusPoints, card.CurrentScore)
	}
}

func TestAddTransactionNoSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, _, err := m.AddTransaction(context.Background(), scoringTransaction("t", "001", "d", 100))
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("AddTransaction() error = %v, want ErrNoSession", err)
	}
}

func TestAddTransactionRejectsErrorStatus(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "run", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	tx := models.NewTransaction("t", "001", "d", models.DeviceTypeGM, models.ModeBlackmarket)
	tx.Status = models.TxError
	if _, _, err := m.AddTransaction(ctx, tx); err == nil {
		t.Fatal("AddTransaction() with error status returned nil error")
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "run", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	paused, err := m.UpdateStatus(ctx, sess.ID, models.SessionPaused)
	if err != nil {
		t.Fatalf("pause error = %v", err)
	}
	if paused.Status != models.SessionPaused {
		t.Errorf("Status = %q, want paused", paused.Status)
	}

	// Pausing twice is invalid.
	if _, err := m.UpdateStatus(ctx, sess.ID, models.SessionPaused); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double pause error = %v, want ErrInvalidTransition", err)
	}

	resumed, err := m.UpdateStatus(ctx, sess.ID, models.SessionActive)
	if err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if resumed.Status != models.SessionActive {
		t.Errorf("Status = %q, want active", resumed.Status)
	}

	if _, err := m.UpdateStatus(ctx, "unknown-id", models.SessionPaused); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown id error = %v, want ErrSessionNotFound", err)
	}

	ended, err := m.UpdateStatus(ctx, sess.ID, models.SessionEnded)
	if err != nil {
		t.Fatalf("end via status error = %v", err)
	}
	if ended.Status != models.SessionEnded {
		t.Errorf("Status = %q, want ended", ended.Status)
	}
	if m.Current() != nil {
		t.Error("Current() != nil after end")
	}
}

func TestEndSessionClearsCurrentPointer(t *testing.T) {
	m, st, bus := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "run", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	c := newCollector(t, bus)
	if _, err := m.EndSession(ctx, "timeout"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	got := c.expect(t, events.SessionEnded)
	var payload events.SessionPayload
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil {
		t.Fatalf("Unmarshal session:ended: %v", err)
	}
	if payload.Reason != "timeout" {
		t.Errorf("Reason = %q, want timeout", payload.Reason)
	}
	if payload.Session.EndTime == nil {
		t.Error("EndTime = nil, want set")
	}

	var stored models.Session
	if err := st.Load(store.CurrentSessionKey, &stored); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load(current) error = %v, want ErrNotFound", err)
	}
	if err := st.Load(store.SessionKey(sess.ID), &stored); err != nil {
		t.Fatalf("Load(session:<id>) error = %v", err)
	}
	if stored.Status != models.SessionEnded {
		t.Errorf("stored Status = %q, want ended", stored.Status)
	}
}

func TestLoadCurrentRestoresState(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "run", []string{"001"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, _, err := m.AddTransaction(ctx, scoringTransaction("kaa001", "001", "GM_01", 1000)); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	a := scoringTransaction("clue_a", "001", "GM_01", 1500)
	a.Group = "clue (x2)"
	if _, _, err := m.AddTransaction(ctx, a); err != nil {
		t.Fatalf("AddTransaction(group) error = %v", err)
	}

	// Simulated restart: fresh manager over the same data directory.
	bus2 := events.NewBus(events.Config{})
	defer bus2.Close()
	m2 := NewManager(st, bus2)
	if err := m2.LoadCurrent(ctx); err != nil {
		t.Fatalf("LoadCurrent() error = %v", err)
	}

	if m2.Current() == nil {
		t.Fatal("Current() = nil after LoadCurrent")
	}
	if _, ok := m2.TokenClaim("kaa001"); !ok {
		t.Error("claim index not rebuilt")
	}
	if !m2.IsTokenScannedByDevice("GM_01", "clue_a") {
		t.Error("scanned-token set not rebuilt")
	}

	// The restored group index keeps counting: finishing the pair now
	// must award the bonus over both members.
	b := scoringTransaction("clue_b", "001", "GM_01", 300)
	b.Group = "clue (x2)"
	_, completion, err := m2.AddTransaction(ctx, b)
	if err != nil {
		t.Fatalf("AddTransaction(after restore) error = %v", err)
	}
	if completion == nil || completion.BonusPoints != 1800 {
		t.Fatalf("completion = %+v, want bonus 1800", completion)
	}

	card := m2.Current().Scores["001"]
	if card.CurrentScore != 1000+1800+1800 {
		t.Errorf("CurrentScore = %d, want 4600", card.CurrentScore)
	}
}

func TestLoadCurrentIgnoresEnded(t *testing.T) {
	m, st, _ := newTestManager(t)

	ended := models.NewSession("old", nil)
	ended.Status = models.SessionEnded
	if err := st.Save(store.CurrentSessionKey, ended); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := m.LoadCurrent(context.Background()); err != nil {
		t.Fatalf("LoadCurrent() error = %v", err)
	}
	if m.Current() != nil {
		t.Error("Current() != nil, want ended session ignored")
	}
}

func TestLoadCurrentMissingIsCleanStart(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.LoadCurrent(context.Background()); err != nil {
		t.Fatalf("LoadCurrent() error = %v", err)
	}
	if m.Current() != nil {
		t.Error("Current() != nil on clean start")
	}
}

func TestListSessions(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "first", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := m.EndSession(ctx, ""); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	second, err := m.CreateSession(ctx, "second", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sessions, err := m.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", sessions[0].Name, sessions[1].Name)
	}
}

func TestGetSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "live", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := m.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession(live) error = %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("ID = %q, want %q", got.ID, sess.ID)
	}

	if _, err := m.EndSession(ctx, ""); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	// Ended sessions come from disk.
	got, err = m.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession(ended) error = %v", err)
	}
	if got.Status != models.SessionEnded {
		t.Errorf("Status = %q, want ended", got.Status)
	}

	if _, err := m.GetSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestExpireIfStale(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "run", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	ended, err := m.ExpireIfStale(ctx, time.Hour)
	if err != nil || ended {
		t.Fatalf("ExpireIfStale(1h) = %v, %v, want false, nil", ended, err)
	}

	time.Sleep(10 * time.Millisecond)
	ended, err = m.ExpireIfStale(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("ExpireIfStale() error = %v", err)
	}
	if !ended {
		t.Fatal("ExpireIfStale() = false, want true")
	}
	if m.Current() != nil {
		t.Error("Current() != nil after expiry")
	}
}
