// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

// Session statuses. At most one session is active or paused at any time.
const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionEnded  SessionStatus = "ended"
)

// Session is the single authoritative game record.
//
// Invariants:
//  1. At most one Session has status active or paused at any time
//     (enforced by the Session Manager).
//  2. scores[team].CurrentScore == BaseScore + BonusPoints always.
//  3. ScannedTokensByDevice[d] grows only when an accepted transaction
//     for device d is appended.
//  4. The session is persisted atomically after every mutation.
//
// Only the Session Manager mutates a live Session; the helpers here keep
// the bookkeeping in one place but take no locks.
type Session struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime"`
	Status    SessionStatus `json:"status"`

	// Teams is the ordered list of team ids ("001", "002", ...). Teams
	// are appended lazily when a scan names a team not yet listed.
	Teams []string `json:"teams"`

	// Transactions is the append-only scan log, in processing order.
	Transactions []*Transaction `json:"transactions"`

	Scores           map[string]*TeamScore        `json:"scores"`
	ConnectedDevices map[string]*DeviceConnection `json:"connectedDevices"`

	// VideoQueue mirrors the Video Queue for persistence; the queue
	// component owns the live items.
	VideoQueue []*VideoQueueItem `json:"videoQueue"`

	// ScannedTokensByDevice maps device id to the sorted token ids that
	// device has successfully claimed this session. Drives client-side
	// duplicate suppression after reconnect.
	ScannedTokensByDevice map[string][]string `json:"scannedTokensByDevice"`

	Metadata map[string]any `json:"metadata"`
}

// NewSession creates an active session with zeroed score cards for the
// given teams.
func NewSession(name string, teams []string) *Session {
	s := &Session{
		ID:                    uuid.NewString(),
		Name:                  name,
		StartTime:             time.Now().UTC(),
		Status:                SessionActive,
		Teams:                 append([]string{}, teams...),
		Transactions:          []*Transaction{},
		Scores:                make(map[string]*TeamScore),
		ConnectedDevices:      make(map[string]*DeviceConnection),
		VideoQueue:            []*VideoQueueItem{},
		ScannedTokensByDevice: make(map[string][]string),
		Metadata:              make(map[string]any),
	}
	for _, team := range s.Teams {
		s.Scores[team] = NewTeamScore(team)
	}
	return s
}

// Live reports whether the session is active or paused.
func (s *Session) Live() bool {
	return s.Status == SessionActive || s.Status == SessionPaused
}

// HasTeam reports whether team is already listed.
func (s *Session) HasTeam(teamID string) bool {
	for _, t := range s.Teams {
		if t == teamID {
			return true
		}
	}
	return false
}

// EnsureTeam lazily adds a team with a zeroed score card and returns it.
func (s *Session) EnsureTeam(teamID string) *TeamScore {
	if card, ok := s.Scores[teamID]; ok {
		return card
	}
	if !s.HasTeam(teamID) {
		s.Teams = append(s.Teams, teamID)
	}
	card := NewTeamScore(teamID)
	s.Scores[teamID] = card
	return card
}

// RecordClaim adds a token to the device's scanned set, keeping the set
// sorted and deduplicated. Call only for accepted transactions.
func (s *Session) RecordClaim(deviceID, tokenID string) {
	if s.ScannedTokensByDevice == nil {
		s.ScannedTokensByDevice = make(map[string][]string)
	}
	set := s.ScannedTokensByDevice[deviceID]
	i := sort.SearchStrings(set, tokenID)
	if i < len(set) && set[i] == tokenID {
		return
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = tokenID
	s.ScannedTokensByDevice[deviceID] = set
}

// DeviceScannedTokens returns a copy of the device's claimed token ids.
func (s *Session) DeviceScannedTokens(deviceID string) []string {
	return append([]string{}, s.ScannedTokensByDevice[deviceID]...)
}

// DeviceConnection is the per-device identity record inside a session.
//
// Lifetime: created when a socket authenticates; a disconnect only clears
// SocketID and stamps DisconnectionTime so a reconnecting device keeps
// its identity and scanned-token history. Records are dropped only when
// the session ends.
type DeviceConnection struct {
	ID        string     `json:"id"`
	Type      DeviceType `json:"type"`
	Name      string     `json:"name,omitempty"`
	Version   string     `json:"version,omitempty"`
	IPAddress string     `json:"ipAddress,omitempty"`

	ConnectionTime    time.Time  `json:"connectionTime"`
	LastHeartbeat     time.Time  `json:"lastHeartbeat"`
	DisconnectionTime *time.Time `json:"disconnectionTime,omitempty"`

	// SocketID is transient: set while a socket is attached, cleared on
	// disconnect.
	SocketID string `json:"socketId,omitempty"`

	// Stale is set by the connection monitor when no heartbeat arrives
	// for the staleness window. Stale devices are flagged, never removed.
	Stale bool `json:"stale,omitempty"`
}

// Connected reports whether a live socket is attached.
func (d *DeviceConnection) Connected() bool {
	return d.SocketID != ""
}
