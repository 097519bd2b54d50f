// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
)

// defaultWatchdogInterval is how often the watchdog checks session age.
const defaultWatchdogInterval = 30 * time.Second

// Watchdog ends sessions that outlive the configured timeout. Live events
// run long; a session left active overnight is an operator mistake, and
// auto-ending it keeps the next event from inheriting stale state.
type Watchdog struct {
	manager  *Manager
	timeout  time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

// NewWatchdog creates a watchdog ending live sessions older than timeout.
func NewWatchdog(manager *Manager, timeout time.Duration) *Watchdog {
	return &Watchdog{
		manager:  manager,
		timeout:  timeout,
		interval: defaultWatchdogInterval,
		logger:   logging.WithComponent("session-watchdog"),
	}
}

// Serve implements suture.Service: tick until the context ends.
func (w *Watchdog) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ended, err := w.manager.ExpireIfStale(ctx, w.timeout)
			if err != nil {
				w.logger.Error().Err(err).Msg("Expire stale session failed")
			}
			if ended {
				w.logger.Info().Msg("Stale session ended by watchdog")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *Watchdog) String() string {
	return "session-watchdog"
}
