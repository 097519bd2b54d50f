// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package websocket is the GM-station transport: authenticated gorilla
// sockets organized into rooms, with every frame wrapped in the
// {event, data, timestamp} envelope.
//
// Connection lifecycle: the Handshake handler authenticates the JWT and
// device identity before upgrade, registers the DeviceConnection with
// the session manager, and hands the socket to the Hub, which joins it
// to its rooms (device:<id> first, then gm) and sends the initial
// sync:full snapshot. Disconnects clear the socket binding but keep the
// device record, so a reconnecting station recovers its scanned-token
// history.
//
// Inbound events (transaction:submit, gm:command, sync:request,
// heartbeat) are routed by the Router; outbound fan-out is driven by the
// broadcast coordinator calling ToRoom/ToDevice. The Monitor service
// flags devices whose heartbeat goes quiet for 30s.
package websocket
