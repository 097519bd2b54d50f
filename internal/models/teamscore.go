// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import "time"

// AdminAdjustment is one manual score correction applied by a GM.
type AdminAdjustment struct {
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GroupCompletion describes a group bonus award, emitted as the
// group:completed domain event.
type GroupCompletion struct {
	TeamID      string `json:"teamId"`
	Group       string `json:"group"`
	BonusPoints int    `json:"bonusPoints"`
}

// TeamScore is a team's score card, maintained incrementally as scoring
// transactions arrive.
//
// Invariant: CurrentScore == BaseScore + BonusPoints after every mutation.
//
// Group progress (which member tokens of each group the team has
// collected) is tracked in an unexported index that is NOT persisted.
// After loading a session from disk, replay the transaction log through
// RebuildScores so half-complete groups keep counting; the replay is
// deterministic and yields identical scores.
type TeamScore struct {
	TeamID           string            `json:"teamId"`
	BaseScore        int               `json:"baseScore"`
	BonusPoints      int               `json:"bonusPoints"`
	CurrentScore     int               `json:"currentScore"`
	TokensScanned    int               `json:"tokensScanned"`
	CompletedGroups  []string          `json:"completedGroups"`
	AdminAdjustments []AdminAdjustment `json:"adminAdjustments"`
	LastUpdate       time.Time         `json:"lastUpdate"`

	groups map[string]*groupProgress
}

// groupProgress tracks a team's distinct collected members of one group.
type groupProgress struct {
	size     int
	sum      int
	members  map[string]struct{}
	complete bool
}

// NewTeamScore returns a zeroed score card for a team.
func NewTeamScore(teamID string) *TeamScore {
	return &TeamScore{
		TeamID:           teamID,
		CompletedGroups:  []string{},
		AdminAdjustments: []AdminAdjustment{},
		LastUpdate:       time.Now().UTC(),
	}
}

// RecordAccepted applies one scoring transaction: adds its points to the
// base score, advances group progress, and awards the completion bonus
// exactly once when the group's last member lands. Returns the completion
// if this transaction finished a group, else nil.
//
// Callers are responsible for filtering: only transactions for which
// tx.Scoring() is true belong here.
func (s *TeamScore) RecordAccepted(tx *Transaction) *GroupCompletion {
	s.BaseScore += tx.Points
	s.TokensScanned++
	s.LastUpdate = tx.Timestamp

	completion := s.advanceGroup(tx)
	s.recompute()
	return completion
}

// advanceGroup registers the token under its group and detects completion.
func (s *TeamScore) advanceGroup(tx *Transaction) *GroupCompletion {
	info, ok := ParseGroup(tx.Group)
	if !ok {
		return nil
	}

	if s.groups == nil {
		s.groups = make(map[string]*groupProgress)
	}
	gp := s.groups[info.Name]
	if gp == nil {
		gp = &groupProgress{size: info.Size, members: make(map[string]struct{})}
		s.groups[info.Name] = gp
	}

	if _, seen := gp.members[tx.TokenID]; seen || gp.complete {
		return nil
	}
	gp.members[tx.TokenID] = struct{}{}
	gp.sum += tx.Points

	if len(gp.members) < gp.size {
		return nil
	}

	gp.complete = true
	bonus := (gp.size - 1) * gp.sum
	s.BonusPoints += bonus
	s.CompletedGroups = append(s.CompletedGroups, info.Name)

	return &GroupCompletion{TeamID: s.TeamID, Group: info.Name, BonusPoints: bonus}
}

// Adjust applies a manual GM correction. The delta folds into BaseScore
// so the CurrentScore invariant keeps holding.
func (s *TeamScore) Adjust(delta int, reason string, at time.Time) {
	s.BaseScore += delta
	s.AdminAdjustments = append(s.AdminAdjustments, AdminAdjustment{
		Delta:     delta,
		Reason:    reason,
		Timestamp: at.UTC(),
	})
	s.LastUpdate = at.UTC()
	s.recompute()
}

// Reset zeroes the card, keeping only the team identity.
func (s *TeamScore) Reset(at time.Time) {
	s.BaseScore = 0
	s.BonusPoints = 0
	s.CurrentScore = 0
	s.TokensScanned = 0
	s.CompletedGroups = []string{}
	s.AdminAdjustments = []AdminAdjustment{}
	s.LastUpdate = at.UTC()
	s.groups = nil
}

func (s *TeamScore) recompute() {
	s.CurrentScore = s.BaseScore + s.BonusPoints
}

// Clone deep-copies the card, group progress index included, so a snapshot
// never observes later mutations and a rollback restores mid-group state.
func (s *TeamScore) Clone() *TeamScore {
	c := *s
	c.CompletedGroups = append([]string(nil), s.CompletedGroups...)
	c.AdminAdjustments = append([]AdminAdjustment(nil), s.AdminAdjustments...)

	if s.groups != nil {
		c.groups = make(map[string]*groupProgress, len(s.groups))
		for name, gp := range s.groups {
			members := make(map[string]struct{}, len(gp.members))
			for id := range gp.members {
				members[id] = struct{}{}
			}
			c.groups[name] = &groupProgress{
				size:     gp.size,
				sum:      gp.sum,
				members:  members,
				complete: gp.complete,
			}
		}
	}
	return &c
}

// RestoreProgress rebuilds the group index from the transaction log after a
// session loads from disk. Persisted score values stay authoritative; this
// only re-seeds which members each group already holds, and marks groups in
// CompletedGroups complete so the bonus is never awarded twice.
func (s *TeamScore) RestoreProgress(transactions []*Transaction) {
	s.groups = nil

	for _, tx := range transactions {
		if !tx.Scoring() || tx.TeamID != s.TeamID {
			continue
		}
		info, ok := ParseGroup(tx.Group)
		if !ok {
			continue
		}

		if s.groups == nil {
			s.groups = make(map[string]*groupProgress)
		}
		gp := s.groups[info.Name]
		if gp == nil {
			gp = &groupProgress{size: info.Size, members: make(map[string]struct{})}
			s.groups[info.Name] = gp
		}
		if _, seen := gp.members[tx.TokenID]; !seen {
			gp.members[tx.TokenID] = struct{}{}
			gp.sum += tx.Points
		}
		if len(gp.members) >= gp.size {
			gp.complete = true
		}
	}

	for _, name := range s.CompletedGroups {
		gp := s.groups[name]
		if gp == nil {
			if s.groups == nil {
				s.groups = make(map[string]*groupProgress)
			}
			gp = &groupProgress{members: make(map[string]struct{})}
			s.groups[name] = gp
		}
		gp.complete = true
	}
}

// RebuildScores replays a transaction log through fresh score cards.
// The result is deterministic: identical logs yield identical scores and
// completed groups (scoring determinism law). Admin adjustments live on
// the score card, not in the log, so callers re-apply them afterwards.
func RebuildScores(transactions []*Transaction) map[string]*TeamScore {
	scores := make(map[string]*TeamScore)
	for _, tx := range transactions {
		if !tx.Scoring() {
			continue
		}
		card := scores[tx.TeamID]
		if card == nil {
			card = NewTeamScore(tx.TeamID)
			scores[tx.TeamID] = card
		}
		card.RecordAccepted(tx)
	}
	return scores
}
