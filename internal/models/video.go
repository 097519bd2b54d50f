// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoState is the state of one queue item.
type VideoState string

// Video states. Legal transitions: queued -> loading -> playing ->
// completed, playing <-> paused, and any state -> error. At most one
// item is in {loading, playing, paused} at any time.
const (
	VideoQueued    VideoState = "queued"
	VideoLoading   VideoState = "loading"
	VideoPlaying   VideoState = "playing"
	VideoPaused    VideoState = "paused"
	VideoCompleted VideoState = "completed"
	VideoError     VideoState = "error"
)

// Active reports whether the state occupies the single playback slot.
func (s VideoState) Active() bool {
	return s == VideoLoading || s == VideoPlaying || s == VideoPaused
}

// VideoQueueItem is one entry in the strictly-FIFO video queue.
type VideoQueueItem struct {
	ID       string `json:"id"`
	TokenID  string `json:"tokenId"`
	Filename string `json:"filename"`

	// Duration in seconds; nil until VLC reports it.
	Duration *int `json:"duration"`

	State           VideoState `json:"state"`
	QueuedAt        time.Time  `json:"queuedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	ExpectedEndTime *time.Time `json:"expectedEndTime,omitempty"`

	// Error holds the failure detail when State is error.
	Error string `json:"error,omitempty"`
}

// NewVideoQueueItem creates a queued item for a token's video asset.
func NewVideoQueueItem(tokenID, filename string) *VideoQueueItem {
	return &VideoQueueItem{
		ID:       uuid.NewString(),
		TokenID:  tokenID,
		Filename: filename,
		State:    VideoQueued,
		QueuedAt: time.Now().UTC(),
	}
}

// VideoStatus is the wire-level playback summary carried by the
// video:status event and embedded in GameState.
type VideoStatus struct {
	// Status is the active item's state, or "idle" when nothing is
	// loaded and the queue is empty.
	Status string `json:"status"`

	QueueLength     int        `json:"queueLength"`
	TokenID         string     `json:"tokenId,omitempty"`
	Duration        *int       `json:"duration,omitempty"`
	Progress        *float64   `json:"progress,omitempty"`
	ExpectedEndTime *time.Time `json:"expectedEndTime,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// VideoStatusIdle is the Status value when no item occupies the slot.
const VideoStatusIdle = "idle"
