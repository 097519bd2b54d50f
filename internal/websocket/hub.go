// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/metrics"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// DeviceRegistry is the slice of the session manager the hub needs:
// device heartbeats and disconnect bookkeeping. *session.Manager
// implements it.
type DeviceRegistry interface {
	Heartbeat(deviceID string)
	MarkDisconnected(ctx context.Context, deviceID, reason string) error
}

// SyncSource builds per-device sync:full payloads. *projector.Projector
// implements it.
type SyncSource interface {
	SyncFor(deviceID string, reconnection bool) *models.SyncFull
}

// Dispatcher handles inbound envelopes from authenticated clients.
type Dispatcher interface {
	Dispatch(ctx context.Context, client *Client, env *Envelope)
}

// Hub owns the set of connected clients and their room membership, and
// fans wrapped events out to rooms. Lifecycle events flow through the
// Register/Unregister channels and are processed by RunWithContext;
// broadcasts take the room lock directly so bus order is preserved
// without a channel hop.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	registry   DeviceRegistry
	sync       SyncSource
	dispatcher Dispatcher

	mu       sync.RWMutex
	clients  map[*Client]bool
	byDevice map[string]*Client
	rooms    map[string]map[*Client]bool
}

// NewHub creates a hub. The dispatcher is attached later via
// SetDispatcher because it depends on components constructed after the
// hub.
func NewHub(registry DeviceRegistry, sync SyncSource) *Hub {
	return &Hub{
		Register:   make(chan *Client, 8),
		Unregister: make(chan *Client, 8),
		registry:   registry,
		sync:       sync,
		clients:    make(map[*Client]bool),
		byDevice:   make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// SetDispatcher attaches the inbound event dispatcher.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatcher = d
}

// RunWithContext processes client lifecycle events until ctx is
// canceled, then closes every client. Designed for suture supervision.
//
// Priority order: shutdown first, then lifecycle events. Broadcasts do
// not pass through this loop.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown has the highest priority (non-blocking check).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.unregister(ctx, client)
		}
	}
}

// register adds a client, joins its rooms in the contract order
// (device:<id>, gm, team:*), and sends the initial sync:full.
func (h *Hub) register(client *Client) {
	h.mu.Lock()

	// A reconnecting device may race its old socket; the fresh socket
	// wins and the stale one is closed.
	if old, ok := h.byDevice[client.deviceID]; ok && old != client {
		h.dropLocked(old)
		go func() { _ = old.conn.Close() }()
	}

	h.clients[client] = true
	h.byDevice[client.deviceID] = client
	h.joinLocked(client, DeviceRoom(client.deviceID))
	h.joinLocked(client, RoomGM)

	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("device_id", client.deviceID).
		Str("device_type", string(client.deviceType)).
		Bool("reconnection", client.reconnection).
		Int("total_clients", total).
		Msg("websocket client connected")

	h.SendSync(client)
}

// unregister removes a client and records the disconnect on the device
// registry. The device record survives for reconnection.
func (h *Hub) unregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	_, known := h.clients[client]
	if known {
		h.dropLocked(client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !known {
		return
	}

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("device_id", client.deviceID).
		Int("total_clients", total).
		Msg("websocket client disconnected")

	if err := h.registry.MarkDisconnected(ctx, client.deviceID, "transport close"); err != nil {
		logging.Debug().Err(err).Str("device_id", client.deviceID).Msg("disconnect bookkeeping failed")
	}
}

// dropLocked removes a client from all indexes and closes its send
// channel. Caller holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	if h.byDevice[client.deviceID] == client {
		delete(h.byDevice, client.deviceID)
	}
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.send)
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
}

// dispatch routes an inbound envelope. Called from client read pumps.
func (h *Hub) dispatch(client *Client, env *Envelope) {
	h.mu.RLock()
	d := h.dispatcher
	h.mu.RUnlock()

	if d == nil {
		client.SendError(models.CodeInternalError, "router not ready")
		return
	}
	d.Dispatch(context.Background(), client, env)
}

// heartbeat records transport-level liveness (pong frames).
func (h *Hub) heartbeat(client *Client) {
	h.registry.Heartbeat(client.deviceID)
}

// ToRoom wraps data and sends it to every member of room, in
// deterministic client order.
func (h *Hub) ToRoom(room, event string, data any) {
	h.toRoom(room, "", event, data)
}

// ToRoomExcept behaves like ToRoom but skips the named device.
func (h *Hub) ToRoomExcept(room, exceptDeviceID, event string, data any) {
	h.toRoom(room, exceptDeviceID, event, data)
}

// ToDevice sends a wrapped event to the device's directed room only.
func (h *Hub) ToDevice(deviceID, event string, data any) {
	h.toRoom(DeviceRoom(deviceID), "", event, data)
}

func (h *Hub) toRoom(room, exceptDeviceID, event string, data any) {
	frame, err := Wrap(event, data)
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("Failed to wrap broadcast")
		return
	}

	var slow []*Client
	h.mu.RLock()
	members := h.sortedMembersLocked(room)
	for _, client := range members {
		if exceptDeviceID != "" && client.deviceID == exceptDeviceID {
			continue
		}
		if !client.Send(frame) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	metrics.RecordBroadcast(event)

	// Slow clients are disconnected rather than allowed to stall or
	// reorder the stream; closing the conn unwinds the read pump, which
	// unregisters them.
	for _, client := range slow {
		logging.Warn().Str("device_id", client.deviceID).Str("event", event).Msg("client too slow, closing")
		go func(c *Client) { _ = c.conn.Close() }(client)
	}
}

// sortedMembersLocked returns room members ordered by client ID so
// delivery order is stable. Caller holds h.mu.
func (h *Hub) sortedMembersLocked(room string) []*Client {
	members := h.rooms[room]
	out := make([]*Client, 0, len(members))
	for client := range members {
		out = append(out, client)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// SendSync sends a fresh sync:full snapshot to one client.
func (h *Hub) SendSync(client *Client) {
	payload := h.sync.SyncFor(client.deviceID, client.reconnection)
	client.SendEvent(EventSyncFull, payload)
	metrics.RecordBroadcast(EventSyncFull)
}

// SyncGM sends a per-device sync:full to every client in the gm room.
// Used after offline batch processing so client state converges.
func (h *Hub) SyncGM() {
	h.mu.RLock()
	members := h.sortedMembersLocked(RoomGM)
	h.mu.RUnlock()

	for _, client := range members {
		h.SendSync(client)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the membership count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	clients := make([]*Client, 0, count)
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		h.dropLocked(client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
