// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import "time"

// RecentTransactionLimit bounds the transaction window in projections.
const RecentTransactionLimit = 100

// SystemStatus reports component health inside projections.
type SystemStatus struct {
	Orchestrator string `json:"orchestrator"`
	VLC          string `json:"vlc"`
}

// GameState is the computed read-model of a running game. It is projected
// on demand from the session, the video queue, and cached VLC health;
// it is never persisted (safe to delete and rebuild).
type GameState struct {
	SessionID string                `json:"sessionId"`
	Teams     []string              `json:"teams"`
	Scores    map[string]*TeamScore `json:"scores"`

	// RecentTransactions holds the last RecentTransactionLimit
	// transactions, newest first.
	RecentTransactions []*Transaction `json:"recentTransactions"`

	VideoStatus  VideoStatus         `json:"videoStatus"`
	Devices      []*DeviceConnection `json:"devices"`
	SystemStatus SystemStatus        `json:"systemStatus"`
	LastUpdate   time.Time           `json:"lastUpdate"`
}

// SyncFull is the per-device state snapshot sent after connect and on
// sync:request. DeviceScannedTokens is tailored to the receiving device;
// Reconnection is true when the device record pre-existed the socket.
type SyncFull struct {
	Session             *Session              `json:"session"`
	Scores              map[string]*TeamScore `json:"scores"`
	RecentTransactions  []*Transaction        `json:"recentTransactions"`
	VideoStatus         VideoStatus           `json:"videoStatus"`
	Devices             []*DeviceConnection   `json:"devices"`
	SystemStatus        SystemStatus          `json:"systemStatus"`
	DeviceScannedTokens []string              `json:"deviceScannedTokens"`
	Reconnection        bool                  `json:"reconnection"`
}
