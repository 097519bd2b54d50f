// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package session

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// RegisterDevice records a device connection, in the live session when one
// exists, otherwise in the lobby. A device id seen for the first time is
// "new"; reconnections reuse the retained record, refresh its connection
// metadata, and clear the disconnection stamp. Emits device:updated.
func (m *Manager) RegisterDevice(ctx context.Context, conn *models.DeviceConnection) (*models.DeviceConnection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	registry := m.registryLocked()

	device, exists := registry[conn.ID]
	if !exists {
		device = &models.DeviceConnection{ID: conn.ID}
		registry[conn.ID] = device
	}

	device.Type = conn.Type
	device.Name = conn.Name
	device.Version = conn.Version
	device.IPAddress = conn.IPAddress
	device.SocketID = conn.SocketID
	device.ConnectionTime = now
	device.LastHeartbeat = now
	device.DisconnectionTime = nil
	device.Stale = false

	if m.liveLocked() {
		if err := m.persistSession(m.current); err != nil {
			if !exists {
				delete(registry, conn.ID)
			}
			return nil, false, err
		}
	}

	m.publishLocked(ctx, events.DeviceUpdated, events.DevicePayload{
		Device: device.Clone(),
		IsNew:  !exists,
	})

	m.logger.Info().
		Str("device_id", device.ID).
		Str("device_type", string(device.Type)).
		Bool("is_new", !exists).
		Msg("Device registered")

	return device.Clone(), !exists, nil
}

// Heartbeat refreshes a device's liveness stamp. In-memory only: liveness
// is transient and flushes to disk with the next real mutation.
func (m *Manager) Heartbeat(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if device, ok := m.registryLocked()[deviceID]; ok {
		device.LastHeartbeat = time.Now().UTC()
		device.Stale = false
	}
}

// MarkStale flags a device that missed its heartbeat window. Stale devices
// are flagged, never removed.
func (m *Manager) MarkStale(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if device, ok := m.registryLocked()[deviceID]; ok {
		device.Stale = true
	}
}

// MarkDisconnected detaches the socket from a device record: SocketID is
// cleared and DisconnectionTime stamped, but the record survives for
// reconnection. Emits device:disconnected. Calling it for an unknown or
// already-disconnected device is a no-op.
func (m *Manager) MarkDisconnected(ctx context.Context, deviceID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, ok := m.registryLocked()[deviceID]
	if !ok || !device.Connected() {
		return nil
	}

	before := device.Clone()
	now := time.Now().UTC()
	device.SocketID = ""
	device.DisconnectionTime = &now

	if m.liveLocked() {
		if err := m.persistSession(m.current); err != nil {
			*device = *before
			return err
		}
	}

	m.publishLocked(ctx, events.DeviceDisconnected, events.DeviceDisconnectedPayload{
		DeviceID: deviceID,
		Reason:   reason,
	})

	m.logger.Info().
		Str("device_id", deviceID).
		Str("reason", reason).
		Msg("Device disconnected")

	return nil
}

// Device returns a clone of the record for deviceID, or nil.
func (m *Manager) Device(deviceID string) *models.DeviceConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if device, ok := m.registryLocked()[deviceID]; ok {
		return device.Clone()
	}
	return nil
}

// Devices returns clones of every known device record, sorted by id.
func (m *Manager) Devices() []*models.DeviceConnection {
	m.mu.Lock()
	defer m.mu.Unlock()

	registry := m.registryLocked()
	out := make([]*models.DeviceConnection, 0, len(registry))
	for _, device := range registry {
		out = append(out, device.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnectedDeviceCount counts devices with a live socket, for the
// maxDevices handshake gate.
func (m *Manager) ConnectedDeviceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, device := range m.registryLocked() {
		if device.Connected() {
			count++
		}
	}
	return count
}

// SetVideoQueue refreshes the persisted queue mirror. No events: the video
// service announces its own transitions.
func (m *Manager) SetVideoQueue(ctx context.Context, items []*models.VideoQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.liveLocked() {
		return nil
	}

	before := m.current.VideoQueue
	m.current.VideoQueue = items
	if err := m.persistSession(m.current); err != nil {
		m.current.VideoQueue = before
		return err
	}
	return nil
}

// registryLocked returns the map device records live in right now: the
// session's when one is live, the lobby otherwise.
func (m *Manager) registryLocked() map[string]*models.DeviceConnection {
	if m.liveLocked() {
		return m.current.ConnectedDevices
	}
	return m.lobby
}

func (m *Manager) liveLocked() bool {
	return m.current != nil && m.current.Live()
}
