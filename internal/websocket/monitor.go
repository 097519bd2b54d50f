// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package websocket

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

const (
	// monitorInterval is how often device liveness is checked.
	monitorInterval = 10 * time.Second

	// staleAfter marks devices with no heartbeat for this long. Stale
	// devices are flagged for GM visibility, never removed.
	staleAfter = 30 * time.Second
)

// StalenessRegistry is the monitoring slice of the session manager.
type StalenessRegistry interface {
	Devices() []*models.DeviceConnection
	MarkStale(deviceID string)
}

// Monitor is a supervised service that flags devices whose heartbeat has
// gone quiet. Transport pings handle socket liveness; this covers
// application-level heartbeats, which GM stations send explicitly.
type Monitor struct {
	registry StalenessRegistry
	interval time.Duration
	cutoff   time.Duration
	logger   zerolog.Logger
}

// NewMonitor creates a connection monitor with the contract intervals
// (check every 10s, stale after 30s).
func NewMonitor(registry StalenessRegistry) *Monitor {
	return &Monitor{
		registry: registry,
		interval: monitorInterval,
		cutoff:   staleAfter,
		logger:   logging.WithComponent("ws-monitor"),
	}
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	cutoff := time.Now().Add(-m.cutoff)
	for _, device := range m.registry.Devices() {
		if !device.Connected() || device.Stale {
			continue
		}
		if device.LastHeartbeat.Before(cutoff) {
			m.registry.MarkStale(device.ID)
			m.logger.Warn().
				Str("device_id", device.ID).
				Time("last_heartbeat", device.LastHeartbeat).
				Msg("device heartbeat stale")
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *Monitor) String() string {
	return "ws-monitor"
}
