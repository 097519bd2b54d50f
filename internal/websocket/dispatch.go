// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package websocket

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aln-orchestrator/internal/engine"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/metrics"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// CommandExecutor runs GM admin commands. *admin.Handler implements it.
type CommandExecutor interface {
	Execute(ctx context.Context, deviceID string, cmd models.Command) models.CommandAck
}

// Router dispatches inbound envelopes from GM/admin sockets to the scan
// engine and admin command handler. One instance serves all clients;
// the engine and manager serialize internally.
type Router struct {
	engine   *engine.Engine
	commands CommandExecutor
	registry DeviceRegistry
	hub      *Hub
}

// NewRouter builds the inbound dispatcher and attaches it to the hub.
func NewRouter(hub *Hub, eng *engine.Engine, commands CommandExecutor, registry DeviceRegistry) *Router {
	r := &Router{
		engine:   eng,
		commands: commands,
		registry: registry,
		hub:      hub,
	}
	hub.SetDispatcher(r)
	return r
}

// Dispatch implements Dispatcher.
func (r *Router) Dispatch(ctx context.Context, client *Client, env *Envelope) {
	switch env.Event {
	case EventTransactionSubmit:
		r.handleScan(ctx, client, env.Data)
	case EventCommand:
		r.handleCommand(ctx, client, env.Data)
	case EventSyncRequest:
		r.hub.SendSync(client)
	case EventHeartbeat:
		r.registry.Heartbeat(client.DeviceID())
		client.SendEvent(EventHeartbeatAck, map[string]string{"deviceId": client.DeviceID()})
	case EventIdentify:
		// Legacy: identification now happens at handshake. Accepted and
		// ignored so old GM builds keep working.
	default:
		client.SendError(models.CodeValidationError, "unknown event: "+env.Event)
	}
}

// scanSubmission is the transaction:submit payload. The socket identity
// overrides any client-supplied deviceId so a station cannot scan on
// another device's behalf.
type scanSubmission struct {
	TokenID string `json:"tokenId"`
	TeamID  string `json:"teamId,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

func (r *Router) handleScan(ctx context.Context, client *Client, data json.RawMessage) {
	var sub scanSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		client.SendError(models.CodeValidationError, "malformed transaction:submit payload")
		return
	}
	if !models.ValidTokenID(sub.TokenID) {
		client.SendError(models.CodeValidationError, "tokenId must be 1-100 characters of letters, digits or underscore")
		return
	}
	if sub.TeamID != "" && !models.ValidTeamID(sub.TeamID) {
		client.SendError(models.CodeValidationError, "teamId must be exactly three digits")
		return
	}

	start := time.Now()
	result := r.engine.Process(ctx, &engine.ScanRequest{
		TokenID:    sub.TokenID,
		TeamID:     sub.TeamID,
		DeviceID:   client.DeviceID(),
		DeviceType: models.DeviceTypeGM,
		Mode:       models.ScanMode(sub.Mode),
	})
	metrics.RecordScan("websocket", string(result.Transaction.Status), time.Since(start))

	// The result reaches the sender directly; the gm-room broadcast
	// rides the event bus, so the sender sees its result no later than
	// the room sees the transaction.
	client.SendEvent(EventTransactionResult, models.ScanResponseFor(result.Transaction, result.Token, result.VideoQueued))
}

func (r *Router) handleCommand(ctx context.Context, client *Client, data json.RawMessage) {
	var cmd models.Command
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.Action == "" {
		client.SendError(models.CodeValidationError, "malformed gm:command payload")
		return
	}

	ack := r.commands.Execute(ctx, client.DeviceID(), cmd)
	if !ack.Success {
		logging.Debug().
			Str("action", cmd.Action).
			Str("device_id", client.DeviceID()).
			Str("error", ack.Error).
			Msg("admin command failed")
	}
	client.SendEvent(EventCommandAck, ack)
}
