// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package events provides the in-process domain event bus.
//
// Every state mutation in the orchestrator (session lifecycle, transaction
// appends, score changes, video queue transitions, device churn, batch
// processing) emits a named event on a single Watermill gochannel topic.
// The broadcast coordinator subscribes once and fans events out to
// WebSocket rooms; nothing else consumes the stream.
//
// Ordering: publishers call Publish while still holding the session writer
// lock, so the bus observes events in mutation order and gochannel delivers
// them to each subscriber in that same order. Payloads are serialized at
// publish time, which means later mutations of the underlying structs can
// never race with subscribers.
package events
