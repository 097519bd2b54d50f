// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package projector assembles read-side views: the GameState snapshot
// served by /api/state and the per-device sync:full payload. Projections
// are computed on demand from live sources and never persisted; deleting
// one loses nothing.
package projector

import (
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// SessionSource supplies the session snapshot and device registry.
// *session.Manager implements it.
type SessionSource interface {
	Current() *models.Session
	Devices() []*models.DeviceConnection
}

// VideoSource supplies playback status and VLC reachability.
// *video.Queue implements it; nil disables the video dimensions.
type VideoSource interface {
	Status() models.VideoStatus
	Healthy() bool
}

// System status vocabulary.
const (
	statusOnline       = "online"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

// Projector builds GameState and SyncFull views.
type Projector struct {
	sessions SessionSource
	video    VideoSource
}

// New creates a projector. video may be nil when no video system is
// configured; VLC then reports disconnected.
func New(sessions SessionSource, video VideoSource) *Projector {
	return &Projector{sessions: sessions, video: video}
}

// Project computes the current GameState. With no session it still
// reports devices (the lobby), video status, and system health, so GM
// dashboards render before a game starts.
func (p *Projector) Project() *models.GameState {
	state := &models.GameState{
		Teams:              []string{},
		Scores:             map[string]*models.TeamScore{},
		RecentTransactions: []*models.Transaction{},
		Devices:            p.sessions.Devices(),
		VideoStatus:        p.videoStatus(),
		SystemStatus:       p.systemStatus(),
		LastUpdate:         time.Now().UTC(),
	}

	if sess := p.sessions.Current(); sess != nil {
		state.SessionID = sess.ID
		state.Teams = sess.Teams
		state.Scores = sess.Scores
		state.RecentTransactions = recentTransactions(sess.Transactions)
	}
	return state
}

// SyncFor builds the sync:full payload for one device. reconnection is
// supplied by the socket layer (true when the device record pre-existed
// this socket).
func (p *Projector) SyncFor(deviceID string, reconnection bool) *models.SyncFull {
	sync := &models.SyncFull{
		Scores:              map[string]*models.TeamScore{},
		RecentTransactions:  []*models.Transaction{},
		Devices:             p.sessions.Devices(),
		VideoStatus:         p.videoStatus(),
		SystemStatus:        p.systemStatus(),
		DeviceScannedTokens: []string{},
		Reconnection:        reconnection,
	}

	if sess := p.sessions.Current(); sess != nil {
		sync.Session = sess
		sync.Scores = sess.Scores
		sync.RecentTransactions = recentTransactions(sess.Transactions)
		sync.DeviceScannedTokens = sess.DeviceScannedTokens(deviceID)
	}
	return sync
}

func (p *Projector) videoStatus() models.VideoStatus {
	if p.video == nil {
		return models.VideoStatus{Status: models.VideoStatusIdle}
	}
	return p.video.Status()
}

func (p *Projector) systemStatus() models.SystemStatus {
	vlc := statusDisconnected
	if p.video != nil && p.video.Healthy() {
		vlc = statusConnected
	}
	return models.SystemStatus{Orchestrator: statusOnline, VLC: vlc}
}

// recentTransactions returns the newest transactions first, capped at
// RecentTransactionLimit.
func recentTransactions(txs []*models.Transaction) []*models.Transaction {
	limit := models.RecentTransactionLimit
	if len(txs) < limit {
		limit = len(txs)
	}
	out := make([]*models.Transaction, 0, limit)
	for i := len(txs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, txs[i])
	}
	return out
}
