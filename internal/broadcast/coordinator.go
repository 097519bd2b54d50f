// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package broadcast bridges the domain event bus to WebSocket rooms. The
// coordinator holds an explicit handler registry so a shutdown removes
// every subscription exactly once; leaked handlers across restart cycles
// are the canonical duplicate-broadcast bug this design exists to
// prevent.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/websocket"
)

// RoomSender is the hub surface the coordinator fans out through.
type RoomSender interface {
	ToRoom(room, event string, data any)
	ToRoomExcept(room, exceptDeviceID, event string, data any)
	ToDevice(deviceID, event string, data any)
	SyncGM()
}

// Handler processes one decoded domain event.
type Handler func(evt *events.Event)

// Coordinator subscribes once to the domain bus and dispatches each
// event through its registry. Registration is explicit and double
// registration is rejected; Cleanup is idempotent and drops everything.
type Coordinator struct {
	bus    *events.Bus
	sender RoomSender
	logger zerolog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCoordinator creates an empty coordinator. Call RegisterDefaults
// (or Register individual handlers) before Start.
func NewCoordinator(bus *events.Bus, sender RoomSender) *Coordinator {
	return &Coordinator{
		bus:      bus,
		sender:   sender,
		logger:   logging.WithComponent("broadcast"),
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for a domain event name. Registering the same
// name twice is a programming error and is rejected.
func (c *Coordinator) Register(name string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.handlers[name]; exists {
		return fmt.Errorf("broadcast: handler for %q already registered", name)
	}
	c.handlers[name] = h
	return nil
}

// HandlerCount returns the number of registered handlers. Tests assert
// this stays constant across startup/shutdown cycles.
func (c *Coordinator) HandlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// Start subscribes to the bus and pumps events until Cleanup or ctx
// cancellation. Starting twice without Cleanup is rejected.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("broadcast: coordinator already started")
	}
	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	ch, err := c.bus.Subscribe(subCtx)
	if err != nil {
		c.mu.Lock()
		c.cancel = nil
		c.done = nil
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("broadcast: subscribe: %w", err)
	}

	go func() {
		defer close(done)
		for evt := range ch {
			c.dispatch(evt)
		}
	}()
	return nil
}

// dispatch runs the handler for one event. A panicking or failing
// handler is logged and never blocks other events.
func (c *Coordinator) dispatch(evt *events.Event) {
	c.mu.Lock()
	h := c.handlers[evt.Name]
	c.mu.Unlock()

	if h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("event", evt.Name).Interface("panic", r).Msg("broadcast handler panicked")
		}
	}()
	h(evt)
}

// Cleanup cancels the subscription and drops every registered handler.
// Idempotent: a second call is a no-op. After Cleanup the coordinator
// can be reloaded with RegisterDefaults and started again.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.handlers = make(map[string]Handler)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RegisterDefaults wires the full domain-to-wire event mapping:
//
//	session:*                    -> session:update        (gm)
//	transaction:added            -> transaction:new       (gm)
//	score:updated                -> score:updated         (gm)
//	scores:reset                 -> scores:reset          (gm)
//	group:completed              -> group:completed       (gm)
//	video:progress               -> video:progress        (gm)
//	video:* (other)              -> video:status          (gm)
//	device:updated (isNew)       -> device:connected      (gm, minus the device)
//	device:disconnected          -> device:disconnected   (gm)
//	offline:queue:processed      -> offline:queue:processed (gm) + sync:full fan-out
//	batch:ack                    -> batch:ack             (device:<id> only)
func (c *Coordinator) RegisterDefaults() error {
	forwardToGM := func(wireEvent string) Handler {
		return func(evt *events.Event) {
			c.sender.ToRoom(websocket.RoomGM, wireEvent, evt.Payload)
		}
	}

	registrations := map[string]Handler{
		events.SessionCreated: forwardToGM(websocket.EventSessionUpdate),
		events.SessionUpdated: forwardToGM(websocket.EventSessionUpdate),
		events.SessionEnded:   forwardToGM(websocket.EventSessionUpdate),

		events.TransactionAdded: forwardToGM(websocket.EventTransactionNew),
		events.ScoreUpdated:     forwardToGM(websocket.EventScoreUpdated),
		events.ScoresReset:      forwardToGM(websocket.EventScoresReset),
		events.GroupCompleted:   forwardToGM(websocket.EventGroupCompleted),

		events.VideoQueued:       forwardToGM(websocket.EventVideoStatus),
		events.VideoLoading:      forwardToGM(websocket.EventVideoStatus),
		events.VideoPlaying:      forwardToGM(websocket.EventVideoStatus),
		events.VideoPaused:       forwardToGM(websocket.EventVideoStatus),
		events.VideoCompleted:    forwardToGM(websocket.EventVideoStatus),
		events.VideoError:        forwardToGM(websocket.EventVideoStatus),
		events.VideoQueueUpdated: forwardToGM(websocket.EventVideoStatus),
		events.VideoProgress:     forwardToGM(websocket.EventVideoProgress),

		events.DeviceUpdated:      c.handleDeviceUpdated,
		events.DeviceDisconnected: forwardToGM(websocket.EventDeviceDisconnected),

		events.OfflineQueueProcessed: c.handleOfflineProcessed,
		events.BatchAck:              c.handleBatchAck,
	}

	for name, h := range registrations {
		if err := c.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

// handleDeviceUpdated announces first-time connections to the gm room,
// excluding the device itself (it gets the full picture via sync:full).
// Reconnections are silent.
func (c *Coordinator) handleDeviceUpdated(evt *events.Event) {
	var payload events.DevicePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil || payload.Device == nil {
		c.logger.Error().Err(err).Msg("malformed device:updated payload")
		return
	}
	if !payload.IsNew {
		return
	}
	c.sender.ToRoomExcept(websocket.RoomGM, payload.Device.ID, websocket.EventDeviceConnected, evt.Payload)
}

// handleOfflineProcessed broadcasts the batch summary, then pushes a
// fresh sync:full to every GM so client state converges after the bulk
// update.
func (c *Coordinator) handleOfflineProcessed(evt *events.Event) {
	c.sender.ToRoom(websocket.RoomGM, websocket.EventOfflineQueueProcessed, evt.Payload)
	c.sender.SyncGM()
}

// handleBatchAck routes the acknowledgment to the submitting device
// only.
func (c *Coordinator) handleBatchAck(evt *events.Event) {
	var ack struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(evt.Payload, &ack); err != nil || ack.DeviceID == "" {
		c.logger.Error().Err(err).Msg("malformed batch:ack payload")
		return
	}
	c.sender.ToDevice(ack.DeviceID, websocket.EventBatchAck, evt.Payload)
}
