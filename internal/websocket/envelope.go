// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package websocket

import (
	"time"

	"github.com/goccy/go-json"
)

// Wire event names. Outbound events are produced by the broadcast
// coordinator and the router itself; inbound events arrive from GM and
// admin stations.
const (
	// Outbound
	EventSyncFull              = "sync:full"
	EventTransactionResult     = "transaction:result"
	EventTransactionNew        = "transaction:new"
	EventScoreUpdated          = "score:updated"
	EventGroupCompleted        = "group:completed"
	EventScoresReset           = "scores:reset"
	EventSessionUpdate         = "session:update"
	EventVideoStatus           = "video:status"
	EventVideoProgress         = "video:progress"
	EventDeviceConnected       = "device:connected"
	EventDeviceDisconnected    = "device:disconnected"
	EventOfflineQueueProcessed = "offline:queue:processed"
	EventBatchAck              = "batch:ack"
	EventCommandAck            = "gm:command:ack"
	EventHeartbeatAck          = "heartbeat:ack"
	EventError                 = "error"

	// Inbound
	EventTransactionSubmit = "transaction:submit"
	EventCommand           = "gm:command"
	EventSyncRequest       = "sync:request"
	EventHeartbeat         = "heartbeat"
	EventIdentify          = "gm:identify" // legacy, accepted as no-op
)

// Room names. Every GM/admin socket joins the gm room; directed messages
// go to device:<id>. Team rooms exist for future per-team fan-out.
const (
	RoomGM           = "gm"
	RoomDevicePrefix = "device:"
	RoomTeamPrefix   = "team:"
)

// DeviceRoom returns the directed room name for a device.
func DeviceRoom(deviceID string) string {
	return RoomDevicePrefix + deviceID
}

// TeamRoom returns the room name for a team.
func TeamRoom(teamID string) string {
	return RoomTeamPrefix + teamID
}

// Envelope is the universal wire frame: {event, data, timestamp}.
// Non-wrapped frames are contract violations in both directions.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Wrap marshals data into a ready-to-send envelope frame. Marshaling
// happens once per broadcast, not once per client.
func Wrap(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
