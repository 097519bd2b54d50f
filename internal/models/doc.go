// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

/*
Package models defines the data structures shared across the orchestrator.

This package is the single source of truth for game state shapes: the token
catalog entry, the session record and its transaction log, team scoring,
the video queue item, device connections, and the GameState projection. It
also holds the pure scoring functions and the wire request/response shapes
used by the HTTP API and the WebSocket router.

Model Categories:

 1. Catalog Models:
    - Token: immutable catalog entry with memory type, rating, group, media
    - MediaAssets: optional image/audio/video/processing-image filenames

 2. Game Record Models:
    - Session: the single authoritative record (transactions append-only)
    - Transaction: one scan event, denormalized token fields at scan time
    - TeamScore: incremental scoring with group-completion tracking
    - DeviceConnection: per-device identity, survives disconnects

 3. Playback Models:
    - VideoQueueItem: FIFO queue entry with a strict state machine
    - VideoStatus: the wire-level playback summary

 4. Projection Models:
    - GameState: computed view, never persisted
    - SyncFull: per-device state snapshot sent on connect and sync:request

 5. Wire Models:
    - ScanRequest/ScanResponse, BatchRequest/BatchResult
    - Command/CommandAck for GM admin commands
    - ErrorBody for HTTP and WebSocket error payloads

Scoring:

Token value is basePoints[valueRating] x typeMultiplier[memoryType]
(100/500/1000/5000/10000 by rating; x1 Personal, x3 Business, x5
Technical). Completing a group "name (xN)" awards (N-1) x the sum of the
member token values, exactly once per team. Detective-mode scans claim
tokens but never contribute points or group progress.

Thread Safety:

Models carry no locks. The Session Manager is the only mutator of a live
Session; everything else receives copies or reads under the manager's
lock. TeamScore's group-progress index is rebuilt by replay after load,
so persisted JSON carries only the declared fields.

JSON Marshaling:

Field names are camelCase to match the scanner and GM client contract.
Timestamps marshal as RFC3339 UTC. Nullable fields (endTime, duration)
are pointers so explicit null survives round-trips.
*/
package models
