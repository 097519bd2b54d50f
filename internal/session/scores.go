// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// AdjustScore applies a manual GM correction to a team's score. The team
// is created lazily if a GM adjusts a team that has not scanned yet.
func (m *Manager) AdjustScore(ctx context.Context, teamID string, delta int, reason string) (*models.TeamScore, error) {
	if !models.ValidTeamID(teamID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTeamID, teamID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.liveLocked() {
		return nil, ErrNoSession
	}

	before := m.current.Clone()
	card := m.current.EnsureTeam(teamID)
	card.Adjust(delta, reason, time.Now().UTC())

	if err := m.persistSession(m.current); err != nil {
		m.current = before
		return nil, err
	}

	m.publishLocked(ctx, events.ScoreUpdated, card)
	m.publishLocked(ctx, events.SessionUpdated, events.SessionPayload{Session: m.current})

	m.logger.Info().
		Str("team_id", teamID).
		Int("delta", delta).
		Str("reason", reason).
		Int("current_score", card.CurrentScore).
		Msg("Score adjusted")

	return card.Clone(), nil
}

// ResetScores zeroes every team's score card. Transactions stay in the
// log; a reset is an explicit divergence between scores and history.
func (m *Manager) ResetScores(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.liveLocked() {
		return ErrNoSession
	}

	before := m.current.Clone()
	now := time.Now().UTC()
	for _, card := range m.current.Scores {
		card.Reset(now)
	}

	if err := m.persistSession(m.current); err != nil {
		m.current = before
		return err
	}

	m.publishLocked(ctx, events.ScoresReset, events.ScoresResetPayload{
		Teams: append([]string(nil), m.current.Teams...),
	})
	m.logger.Info().Int("teams", len(m.current.Teams)).Msg("Scores reset")

	return nil
}

// DeleteTransaction removes a transaction from the log and recomputes
// everything derived from it: scores by deterministic replay (with admin
// adjustments re-applied), the claim index, and per-device scanned sets.
// Deleting the first claim of a token frees it for scanning again.
func (m *Manager) DeleteTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.liveLocked() {
		return nil, ErrNoSession
	}

	s := m.current
	index := -1
	for i, tx := range s.Transactions {
		if tx.ID == txID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrTransactionNotFound
	}

	before := s.Clone()
	beforeClaims := m.cloneClaimsLocked()
	removed := s.Transactions[index]

	s.Transactions = append(s.Transactions[:index], s.Transactions[index+1:]...)

	// Replay what remains, then graft the manual adjustments back on.
	adjustments := make(map[string][]models.AdminAdjustment, len(s.Scores))
	for team, card := range s.Scores {
		adjustments[team] = card.AdminAdjustments
	}

	rebuilt := models.RebuildScores(s.Transactions)
	scores := make(map[string]*models.TeamScore, len(s.Teams))
	for _, team := range s.Teams {
		card := rebuilt[team]
		if card == nil {
			card = models.NewTeamScore(team)
		}
		for _, adj := range adjustments[team] {
			card.Adjust(adj.Delta, adj.Reason, adj.Timestamp)
		}
		scores[team] = card
	}
	s.Scores = scores

	m.rebuildClaimsLocked()

	if err := m.persistSession(s); err != nil {
		m.current = before
		m.claims = beforeClaims
		return nil, err
	}

	if removed.Scoring() {
		m.publishLocked(ctx, events.ScoreUpdated, s.Scores[removed.TeamID])
	}
	m.publishLocked(ctx, events.SessionUpdated, events.SessionPayload{Session: s})

	m.logger.Info().
		Str("transaction_id", txID).
		Str("token_id", removed.TokenID).
		Str("status", string(removed.Status)).
		Msg("Transaction deleted")

	return removed, nil
}
