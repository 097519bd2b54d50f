// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package events

import (
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// Domain event names. These are internal names; the broadcast coordinator
// maps them to the WebSocket event vocabulary (session:update,
// transaction:new, video:status, ...) before anything reaches a client.
const (
	SessionCreated = "session:created"
	SessionUpdated = "session:updated"
	SessionEnded   = "session:ended"

	TransactionAdded = "transaction:added"
	ScoreUpdated     = "score:updated"
	ScoresReset      = "scores:reset"
	GroupCompleted   = "group:completed"

	DeviceUpdated      = "device:updated"
	DeviceDisconnected = "device:disconnected"

	VideoQueued       = "video:queued"
	VideoLoading      = "video:loading"
	VideoPlaying      = "video:playing"
	VideoPaused       = "video:paused"
	VideoCompleted    = "video:completed"
	VideoError        = "video:error"
	VideoProgress     = "video:progress"
	VideoQueueUpdated = "video:queue:updated"

	OfflineQueueProcessed = "offline:queue:processed"
	BatchAck              = "batch:ack"
)

// SessionPayload accompanies session:created, session:updated and
// session:ended. Reason is set when the transition was not operator
// initiated ("timeout" for watchdog expiry).
type SessionPayload struct {
	Session *models.Session `json:"session"`
	Reason  string          `json:"reason,omitempty"`
}

// TransactionPayload accompanies transaction:added. The shape matches the
// transaction:new wire payload so the coordinator forwards it verbatim.
type TransactionPayload struct {
	Transaction *models.Transaction `json:"transaction"`
}

// score:updated carries a *models.TeamScore directly (the wire payload is
// the flat score card), and group:completed carries a
// models.GroupCompletion. Neither needs a wrapper type here.

// ScoresResetPayload accompanies scores:reset after an admin score wipe or
// system:reset. Teams lists every team whose card was zeroed.
type ScoresResetPayload struct {
	Teams []string `json:"teams"`
}

// DevicePayload accompanies device:updated. IsNew is true only for the
// first connection of a deviceId within the session; reconnections reuse
// the retained record and publish IsNew=false.
type DevicePayload struct {
	Device *models.DeviceConnection `json:"device"`
	IsNew  bool                     `json:"isNew"`
}

// DeviceDisconnectedPayload accompanies device:disconnected. The device
// record itself is retained in the session for reconnection.
type DeviceDisconnectedPayload struct {
	DeviceID string `json:"deviceId"`
	Reason   string `json:"reason"`
}

// VideoProgressPayload accompanies video:progress, emitted roughly once per
// second while the head of the queue is playing. Progress is a percentage
// in [0,100]; Position and Duration are seconds.
type VideoProgressPayload struct {
	TokenID  string  `json:"tokenId"`
	Progress float64 `json:"progress"`
	Position int     `json:"position"`
	Duration int     `json:"duration"`
}

// VideoQueuePayload accompanies video:queue:updated whenever the queue's
// composition changes (enqueue, advance, clear).
type VideoQueuePayload struct {
	Items []*models.VideoQueueItem `json:"items"`
}

// OfflineQueuePayload accompanies offline:queue:processed with the per-item
// summary of a processed batch.
type OfflineQueuePayload struct {
	BatchID  string                   `json:"batchId"`
	DeviceID string                   `json:"deviceId"`
	Count    int                      `json:"count"`
	Results  []models.BatchItemResult `json:"results"`
}

// batch:ack carries a models.BatchAck; the coordinator routes it to the
// device:<deviceId> room only.
