// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package session owns the live game session.
//
// The Manager is the only component that mutates a Session. A single mutex
// serializes every write path, and domain events are published while it is
// held, so bus order always equals mutation order. Reads hand out deep
// clones; the live object never escapes.
//
// Writes are clone-rollback: each mutating operation snapshots the session
// before touching it, persists the result, and restores the snapshot when
// the persist fails. A failed write is therefore invisible — no state
// change, no events.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
	"github.com/tomtom215/aln-orchestrator/internal/store"
)

// Sentinel errors mapped to API error codes at the transport boundary.
var (
	ErrConcurrentSession   = errors.New("an active or paused session already exists")
	ErrNoSession           = errors.New("no current session")
	ErrSessionNotFound     = errors.New("session not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTeamID       = errors.New("invalid team id")
	ErrInvalidTransition   = errors.New("invalid session status transition")
)

// Claim records the first accepted scan of a token within a session.
type Claim struct {
	TransactionID string
	DeviceID      string
}

// Manager is the sole owner of the live session.
type Manager struct {
	store  *store.Store
	bus    *events.Bus
	logger zerolog.Logger

	mu      sync.Mutex
	current *models.Session

	// claims indexes accepted transactions by token id. First claim wins;
	// the index is rebuilt from the transaction log on load.
	claims map[string]Claim

	// lobby holds device records while no session is live. GM scanners
	// connect and authenticate before they create the session; their
	// records merge into the session at creation.
	lobby map[string]*models.DeviceConnection
}

// NewManager creates a session manager over the given store and bus.
func NewManager(st *store.Store, bus *events.Bus) *Manager {
	return &Manager{
		store:  st,
		bus:    bus,
		logger: logging.WithComponent("session"),
		claims: make(map[string]Claim),
		lobby:  make(map[string]*models.DeviceConnection),
	}
}

// LoadCurrent restores the live session from disk after a restart. A
// missing pointer file means a clean start; an ended session left behind is
// ignored. The claim index, per-device scanned sets, and group progress are
// rebuilt from the transaction log — persisted score values stay
// authoritative.
func (m *Manager) LoadCurrent(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sess models.Session
	err := m.store.Load(store.CurrentSessionKey, &sess)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load current session: %w", err)
	}
	if !sess.Live() {
		m.logger.Info().Str("session_id", sess.ID).Msg("Ignoring ended session left in current pointer")
		return nil
	}

	normalize(&sess)
	m.current = &sess
	m.rebuildClaimsLocked()
	m.restoreProgressLocked()

	m.logger.Info().
		Str("session_id", sess.ID).
		Str("status", string(sess.Status)).
		Int("transactions", len(sess.Transactions)).
		Msg("Restored session from disk")
	return nil
}

// normalize guards against hand-edited session files with null maps.
func normalize(s *models.Session) {
	if s.Scores == nil {
		s.Scores = make(map[string]*models.TeamScore)
	}
	if s.ConnectedDevices == nil {
		s.ConnectedDevices = make(map[string]*models.DeviceConnection)
	}
	if s.ScannedTokensByDevice == nil {
		s.ScannedTokensByDevice = make(map[string][]string)
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	for _, team := range s.Teams {
		if s.Scores[team] == nil {
			s.Scores[team] = models.NewTeamScore(team)
		}
	}
	// Sockets from the previous process are gone.
	for _, device := range s.ConnectedDevices {
		device.SocketID = ""
	}
}

// CreateSession starts a new session. Fails with ErrConcurrentSession while
// an active or paused session exists. Devices already connected (waiting in
// the lobby) carry over into the new session.
func (m *Manager) CreateSession(ctx context.Context, name string, teams []string) (*models.Session, error) {
	for _, team := range teams {
		if !models.ValidTeamID(team) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTeamID, team)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Live() {
		return nil, ErrConcurrentSession
	}

	sess := models.NewSession(name, teams)
	for id, device := range m.lobby {
		if device.Connected() {
			sess.ConnectedDevices[id] = device
		}
	}

	if err := m.persistSession(sess); err != nil {
		return nil, err
	}

	m.current = sess
	m.claims = make(map[string]Claim)
	m.lobby = make(map[string]*models.DeviceConnection)

	m.publishLocked(ctx, events.SessionCreated, events.SessionPayload{Session: sess})
	m.logger.Info().
		Str("session_id", sess.ID).
		Str("name", name).
		Strs("teams", teams).
		Msg("Session created")

	return sess.Clone(), nil
}

// AddTransaction appends a transaction to the live session and applies its
// side effects: claim registration, per-device scanned set, score delta,
// group completion. This is the serialization point for the first-claim
// rule — an accepted transaction whose token is already claimed is demoted
// to duplicate here, under the lock, regardless of what the caller checked
// earlier.
//
// Returns the appended transaction (possibly demoted) and a non-nil
// completion when this transaction finished a group.
func (m *Manager) AddTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, *models.GroupCompletion, error) {
	if tx == nil || tx.Status == models.TxError {
		return nil, nil, fmt.Errorf("transaction not persistable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.current.Live() {
		return nil, nil, ErrNoSession
	}

	before := m.current.Clone()
	beforeClaims := m.cloneClaimsLocked()

	if tx.Status == models.TxAccepted {
		if claim, taken := m.claims[tx.TokenID]; taken {
			tx.Status = models.TxDuplicate
			tx.Points = 0
			tx.OriginalTransactionID = claim.TransactionID
		}
	}

	s := m.current
	s.Transactions = append(s.Transactions, tx)

	var completion *models.GroupCompletion
	if tx.Status == models.TxAccepted {
		m.claims[tx.TokenID] = Claim{TransactionID: tx.ID, DeviceID: tx.DeviceID}
		s.RecordClaim(tx.DeviceID, tx.TokenID)
		if tx.Scoring() {
			card := s.EnsureTeam(tx.TeamID)
			completion = card.RecordAccepted(tx)
		}
	}

	if err := m.persistSession(s); err != nil {
		m.current = before
		m.claims = beforeClaims
		return nil, nil, err
	}

	m.publishLocked(ctx, events.TransactionAdded, events.TransactionPayload{Transaction: tx})
	if tx.Scoring() {
		m.publishLocked(ctx, events.ScoreUpdated, s.Scores[tx.TeamID])
	}
	if completion != nil {
		m.publishLocked(ctx, events.GroupCompleted, completion)
	}
	m.publishLocked(ctx, events.SessionUpdated, events.SessionPayload{Session: s})

	return tx, completion, nil
}

// UpdateStatus pauses, resumes, or ends the session with the given id.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	if m.current.ID != id {
		return nil, ErrSessionNotFound
	}

	switch status {
	case models.SessionPaused:
		if m.current.Status != models.SessionActive {
			return nil, fmt.Errorf("%w: %s -> paused", ErrInvalidTransition, m.current.Status)
		}
	case models.SessionActive:
		if m.current.Status != models.SessionPaused {
			return nil, fmt.Errorf("%w: %s -> active", ErrInvalidTransition, m.current.Status)
		}
	case models.SessionEnded:
		return m.endLocked(ctx, "")
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	before := m.current.Clone()
	m.current.Status = status

	if err := m.persistSession(m.current); err != nil {
		m.current = before
		return nil, err
	}

	m.publishLocked(ctx, events.SessionUpdated, events.SessionPayload{Session: m.current})
	m.logger.Info().
		Str("session_id", m.current.ID).
		Str("status", string(status)).
		Msg("Session status updated")

	return m.current.Clone(), nil
}

// EndSession ends the current session. Reason is carried on the
// session:ended event ("timeout" for watchdog expiry, empty for operator
// action).
func (m *Manager) EndSession(ctx context.Context, reason string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.endLocked(ctx, reason)
}

func (m *Manager) endLocked(ctx context.Context, reason string) (*models.Session, error) {
	s := m.current
	before := s.Clone()

	now := time.Now().UTC()
	s.Status = models.SessionEnded
	s.EndTime = &now

	if err := m.store.Save(store.SessionKey(s.ID), s); err != nil {
		m.current = before
		return nil, fmt.Errorf("persist ended session: %w", err)
	}
	if err := m.store.Delete(store.CurrentSessionKey); err != nil {
		m.current = before
		return nil, fmt.Errorf("clear current session pointer: %w", err)
	}

	m.publishLocked(ctx, events.SessionEnded, events.SessionPayload{Session: s, Reason: reason})
	m.logger.Info().
		Str("session_id", s.ID).
		Str("reason", reason).
		Int("transactions", len(s.Transactions)).
		Msg("Session ended")

	// Connected devices outlive the session; move them back to the lobby
	// so the next session picks them up.
	m.lobby = make(map[string]*models.DeviceConnection)
	for id, device := range s.ConnectedDevices {
		if device.Connected() {
			m.lobby[id] = device.Clone()
		}
	}

	m.current = nil
	m.claims = make(map[string]Claim)

	return s, nil
}

// ExpireIfStale ends a live session whose age exceeds timeout. Used by the
// watchdog; returns true when a session was ended.
func (m *Manager) ExpireIfStale(ctx context.Context, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.current.Live() {
		return false, nil
	}
	if time.Since(m.current.StartTime) < timeout {
		return false, nil
	}

	m.logger.Warn().
		Str("session_id", m.current.ID).
		Time("start_time", m.current.StartTime).
		Dur("timeout", timeout).
		Msg("Session exceeded timeout, ending")

	if _, err := m.endLocked(ctx, "timeout"); err != nil {
		return false, err
	}
	return true, nil
}

// Current returns a deep clone of the live session, or nil.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	return m.current.Clone()
}

// CurrentID returns the live session id, or empty.
func (m *Manager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// HasActiveSession reports whether scans can be accepted right now.
func (m *Manager) HasActiveSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.Status == models.SessionActive
}

// GetSession returns the session with the given id, reading history from
// disk when it is not the live one.
func (m *Manager) GetSession(id string) (*models.Session, error) {
	m.mu.Lock()
	if m.current != nil && m.current.ID == id {
		defer m.mu.Unlock()
		return m.current.Clone(), nil
	}
	m.mu.Unlock()

	var sess models.Session
	err := m.store.Load(store.SessionKey(id), &sess)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns every stored session, newest first. Corrupt files
// are skipped with a warning so one bad file cannot hide the rest.
func (m *Manager) ListSessions() ([]*models.Session, error) {
	keys, err := m.store.List(store.SessionKeyPrefix)
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(keys))
	for _, key := range keys {
		if key == store.CurrentSessionKey {
			continue
		}
		var sess models.Session
		if err := m.store.Load(key, &sess); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("Skipping unreadable session file")
			continue
		}
		sessions = append(sessions, &sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

// TokenClaim returns the first accepted claim for a token in the live
// session.
func (m *Manager) TokenClaim(tokenID string) (Claim, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[tokenID]
	return claim, ok
}

// IsTokenScannedByDevice reports whether the device already holds an
// accepted claim for the token in the live session.
func (m *Manager) IsTokenScannedByDevice(deviceID, tokenID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	set := m.current.ScannedTokensByDevice[deviceID]
	i := sort.SearchStrings(set, tokenID)
	return i < len(set) && set[i] == tokenID
}

// persistSession writes the session under its id and refreshes the current
// pointer. Both writes are atomic individually; the id file is written
// first so a crash between the two can only leave a stale pointer, never a
// missing session.
// Persist writes the live session to disk. Mutations already persist as
// they happen; this exists for shutdown, where connection state touched
// outside a mutation (heartbeats, socket ids) would otherwise be lost.
func (m *Manager) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.persistSession(m.current)
}

func (m *Manager) persistSession(s *models.Session) error {
	if err := m.store.Save(store.SessionKey(s.ID), s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := m.store.Save(store.CurrentSessionKey, s); err != nil {
		return fmt.Errorf("persist current pointer: %w", err)
	}
	return nil
}

func (m *Manager) cloneClaimsLocked() map[string]Claim {
	claims := make(map[string]Claim, len(m.claims))
	for token, claim := range m.claims {
		claims[token] = claim
	}
	return claims
}

// rebuildClaimsLocked derives the claim index and per-device scanned sets
// from the transaction log. Idempotent; duplicates and unknowns contribute
// nothing.
func (m *Manager) rebuildClaimsLocked() {
	m.claims = make(map[string]Claim)
	s := m.current
	s.ScannedTokensByDevice = make(map[string][]string)

	for _, tx := range s.Transactions {
		if tx.Status != models.TxAccepted {
			continue
		}
		if _, taken := m.claims[tx.TokenID]; taken {
			continue
		}
		m.claims[tx.TokenID] = Claim{TransactionID: tx.ID, DeviceID: tx.DeviceID}
		s.RecordClaim(tx.DeviceID, tx.TokenID)
	}
}

// restoreProgressLocked re-seeds each score card's group index from the
// transaction log without touching persisted score values.
func (m *Manager) restoreProgressLocked() {
	for _, card := range m.current.Scores {
		card.RestoreProgress(m.current.Transactions)
	}
}

// publishLocked emits a domain event; failures are logged, never fatal —
// the mutation is already persisted by the time events go out.
func (m *Manager) publishLocked(ctx context.Context, name string, payload any) {
	if err := m.bus.Publish(ctx, name, payload); err != nil {
		m.logger.Error().Err(err).Str("event", name).Msg("Publish domain event failed")
	}
}
