// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package websocket

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/metrics"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB; batches arrive over HTTP, not here
)

// clientIDCounter generates unique, monotonically increasing client IDs.
// Clients are sorted by this ID for deterministic broadcast order.
var clientIDCounter atomic.Uint64

// Client is one authenticated GM/admin socket. Identity fields are set
// at handshake and immutable afterwards.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	deviceID   string
	deviceType models.DeviceType
	version    string
	remoteAddr string

	// reconnection records whether the device record pre-existed this
	// socket; echoed in every sync:full sent to this client.
	reconnection bool
}

// newClient creates a client around an upgraded connection.
func newClient(hub *Hub, conn *websocket.Conn, deviceID string, deviceType models.DeviceType, version, remoteAddr string, reconnection bool) *Client {
	return &Client{
		id:           clientIDCounter.Add(1),
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		deviceID:     deviceID,
		deviceType:   deviceType,
		version:      version,
		remoteAddr:   remoteAddr,
		reconnection: reconnection,
	}
}

// DeviceID returns the stable device identity presented at handshake.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// DeviceType returns gm or admin.
func (c *Client) DeviceType() models.DeviceType {
	return c.deviceType
}

// SocketID returns a per-connection identifier, distinct across
// reconnects of the same device.
func (c *Client) SocketID() string {
	return "ws-" + strconv.FormatUint(c.id, 10)
}

// Send queues a pre-marshaled frame without blocking. A full buffer
// drops the frame and reports false; the hub disconnects clients that
// cannot keep up.
func (c *Client) Send(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		metrics.BroadcastDrops.Inc()
		return false
	}
}

// SendEvent wraps and queues a single-recipient event.
func (c *Client) SendEvent(event string, data any) {
	frame, err := Wrap(event, data)
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("Failed to wrap event")
		return
	}
	if !c.Send(frame) {
		logging.Warn().Str("event", event).Str("device_id", c.deviceID).Msg("Send buffer full, dropping directed event")
	}
}

// SendError sends a wrapped error event to this client only.
func (c *Client) SendError(code, message string) {
	c.SendEvent(EventError, models.ErrorEvent{Code: code, Message: message})
}

// readPump reads inbound envelopes and hands them to the hub dispatcher.
// Runs as one goroutine per client; exit unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		c.hub.heartbeat(c)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("device_id", c.deviceID).Msg("unexpected websocket close")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.SendError(models.CodeValidationError, "frames must be {event, data, timestamp} envelopes")
			continue
		}

		c.hub.dispatch(c, &env)
	}
}

// writePump writes queued frames and transport pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Error().Err(err).Str("device_id", c.deviceID).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
