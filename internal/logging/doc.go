// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package logging provides centralized zerolog-based structured logging
// for the orchestrator.
//
// Every component logs through this package: JSON output for production,
// console output for development, with request-ID propagation through
// context. Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("session", id).Msg("session created")  // correct
//	logging.Info().Str("session", id)                         // WRONG - not emitted
//
// Prefer structured fields over string formatting:
//
//	logging.Info().Str("device", d).Int("count", n).Msg("batch processed")
package logging
