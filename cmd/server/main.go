// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package main is the entry point for the ALN orchestrator server.
//
// The orchestrator is the single authority for one live game session:
// it accepts memory-token scans over HTTP and WebSocket, scores them,
// drives the VLC video queue, and fans state out to GM stations.
//
// Startup order:
//
//  1. Configuration: struct defaults, optional YAML file, ALN_* env vars
//  2. Services: store, token catalog, event bus, session manager (with
//     crash recovery), VLC client, video queue, scan engine, batch intake
//  3. Handlers: WebSocket hub and dispatch, broadcast coordinator,
//     admin commands, auth, HTTP router
//  4. Supervision tree: messaging, domain, and API layers
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server drains, broadcast listeners unregister, and the live session is
// persisted so the next boot resumes it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/aln-orchestrator/internal/config"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/orchestrator"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Msg("Starting ALN orchestrator")

	if cfg.Admin.Password == "" {
		logging.Warn().Msg("No admin password configured; admin and GM operations are locked")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.New(cfg, version).Run(ctx); err != nil {
		logging.Error().Err(err).Msg("Orchestrator exited with error")
		os.Exit(1)
	}
}
