// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package video serializes memory-video playback through a single VLC
// instance. Tokens with a video asset queue strictly FIFO; at most one
// item occupies the playback slot (loading, playing, or paused) at any
// time, enforced by the queue mutex around slot transitions and the
// VLC.Play call.
//
// VLC failures never propagate to scan processing: a failed play or a
// dead VLC marks the head item as errored and advances the queue.
package video

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/logging"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

// Player is the VLC surface the queue drives. *Client implements it.
type Player interface {
	Play(ctx context.Context, filename string) (*Status, error)
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Status(ctx context.Context) (*Status, error)
	Health() bool
}

// Mirror receives queue snapshots for persistence. *session.Manager
// implements it; the mirror is advisory and mirror failures only log.
type Mirror interface {
	SetVideoQueue(ctx context.Context, items []*models.VideoQueueItem) error
}

// VLC state vocabulary.
const (
	vlcStatePlaying = "playing"
	vlcStatePaused  = "paused"
	vlcStateStopped = "stopped"
)

// stoppedGracePolls is how many consecutive "stopped" observations a
// playing item survives before it is considered completed. VLC briefly
// reports stopped between loading and playing.
const stoppedGracePolls = 2

// maxPollFailures is how many consecutive failed status polls an active
// item survives before it is marked errored.
const maxPollFailures = 3

// Queue is the single-slot FIFO video serializer.
type Queue struct {
	player Player
	bus    *events.Bus
	mirror Mirror
	logger zerolog.Logger

	mu      sync.Mutex
	current *models.VideoQueueItem
	pending []*models.VideoQueueItem

	// position is the last observed playback position in seconds.
	position     int
	stoppedPolls int
	failedPolls  int
}

// NewQueue creates a video queue. mirror may be nil.
func NewQueue(player Player, bus *events.Bus, mirror Mirror) *Queue {
	return &Queue{
		player: player,
		bus:    bus,
		mirror: mirror,
		logger: logging.WithComponent("video"),
	}
}

// OfferScan queues the video of an accepted scan. Implements the scan
// engine's video intake.
func (q *Queue) OfferScan(ctx context.Context, token *models.Token, deviceID string) bool {
	if !token.HasVideo() {
		return false
	}
	position := q.Enqueue(ctx, token.ID, token.VideoFilename())
	q.logger.Debug().
		Str("token_id", token.ID).
		Str("device_id", deviceID).
		Int("position", position).
		Msg("Video queued from scan")
	return true
}

// Enqueue appends a video and promotes it immediately when the playback
// slot is free. Returns the number of items ahead of it; 0 means it went
// straight to the slot.
func (q *Queue) Enqueue(ctx context.Context, tokenID, filename string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := models.NewVideoQueueItem(tokenID, filename)
	q.pending = append(q.pending, item)
	q.emitStatusLocked(ctx, events.VideoQueued)

	position := len(q.pending)
	if q.current == nil {
		q.promoteLocked(ctx)
		position = 0
	}

	q.emitQueueLocked(ctx)
	q.mirrorLocked(ctx)
	return position
}

// promoteLocked moves the next queued item into the playback slot and
// starts VLC. Items whose play call fails are errored and skipped until
// one starts or the backlog is empty.
func (q *Queue) promoteLocked(ctx context.Context) {
	for len(q.pending) > 0 {
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.current = item

		item.State = models.VideoLoading
		q.emitStatusLocked(ctx, events.VideoLoading)

		status, err := q.player.Play(ctx, item.Filename)
		if err != nil {
			q.failCurrentLocked(ctx, err.Error())
			continue
		}

		now := time.Now().UTC()
		item.State = models.VideoPlaying
		item.StartedAt = &now
		if status != nil && status.Duration > 0 {
			d := status.Duration
			item.Duration = &d
			end := now.Add(time.Duration(d) * time.Second)
			item.ExpectedEndTime = &end
		}
		q.position = 0
		q.stoppedPolls = 0
		q.failedPolls = 0

		q.logger.Info().
			Str("token_id", item.TokenID).
			Str("filename", item.Filename).
			Msg("Video playing")
		q.emitStatusLocked(ctx, events.VideoPlaying)
		return
	}
}

// Tick polls VLC and reconciles the playback slot. Called by the service
// loop every poll interval; a no-op when the slot is empty.
func (q *Queue) Tick(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return
	}

	status, err := q.player.Status(ctx)
	if err != nil {
		q.failedPolls++
		if q.failedPolls >= maxPollFailures {
			q.logger.Warn().Err(err).
				Str("token_id", q.current.TokenID).
				Msg("VLC unreachable, dropping current video")
			q.failCurrentLocked(ctx, "VLC unreachable: "+err.Error())
			q.promoteLocked(ctx)
			q.emitQueueLocked(ctx)
			q.mirrorLocked(ctx)
		}
		return
	}
	q.failedPolls = 0
	q.reconcileLocked(ctx, status)
}

func (q *Queue) reconcileLocked(ctx context.Context, status *Status) {
	item := q.current

	switch item.State {
	case models.VideoPlaying:
		if status.State == vlcStateStopped {
			q.stoppedPolls++
			if q.stoppedPolls >= stoppedGracePolls {
				q.completeCurrentLocked(ctx)
			}
			return
		}
		q.stoppedPolls = 0
		q.position = status.Position

		if item.Duration == nil && status.Duration > 0 {
			d := status.Duration
			item.Duration = &d
			if item.StartedAt != nil {
				end := item.StartedAt.Add(time.Duration(d) * time.Second)
				item.ExpectedEndTime = &end
			}
		}
		if item.ExpectedEndTime != nil && time.Now().UTC().After(*item.ExpectedEndTime) {
			q.completeCurrentLocked(ctx)
			return
		}
		q.emitProgressLocked(ctx)

	case models.VideoPaused:
		// Nothing to reconcile; resume is admin-driven.

	case models.VideoLoading:
		if status.State == vlcStatePlaying {
			now := time.Now().UTC()
			item.State = models.VideoPlaying
			item.StartedAt = &now
			q.emitStatusLocked(ctx, events.VideoPlaying)
		}
	}
}

// Skip stops the current video and advances the queue. No-op when idle.
func (q *Queue) Skip(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return
	}
	if err := q.player.Stop(ctx); err != nil {
		q.logger.Debug().Err(err).Msg("VLC stop during skip failed")
	}
	q.completeCurrentLocked(ctx)
}

// Pause pauses the playing video.
func (q *Queue) Pause(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil || q.current.State != models.VideoPlaying {
		return nil
	}
	if err := q.player.Pause(ctx); err != nil {
		return err
	}
	q.current.State = models.VideoPaused
	q.emitStatusLocked(ctx, events.VideoPaused)
	q.mirrorLocked(ctx)
	return nil
}

// Resume continues a paused video.
func (q *Queue) Resume(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil || q.current.State != models.VideoPaused {
		return nil
	}
	if err := q.player.Resume(ctx); err != nil {
		return err
	}
	q.current.State = models.VideoPlaying
	q.emitStatusLocked(ctx, events.VideoPlaying)
	q.mirrorLocked(ctx)
	return nil
}

// Clear stops playback and empties the queue.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	q.logger.Info().Msg("Video queue cleared")

	if q.current != nil {
		if err := q.player.Stop(ctx); err != nil {
			q.logger.Debug().Err(err).Msg("VLC stop during clear failed")
		}
		q.completeCurrentLocked(ctx)
		return
	}
	q.position = 0
	q.emitQueueLocked(ctx)
	q.mirrorLocked(ctx)
}

// completeCurrentLocked finishes the slot item and promotes the next.
func (q *Queue) completeCurrentLocked(ctx context.Context) {
	item := q.current
	item.State = models.VideoCompleted
	q.logger.Info().Str("token_id", item.TokenID).Msg("Video completed")
	q.emitStatusLocked(ctx, events.VideoCompleted)

	q.current = nil
	q.position = 0
	q.promoteLocked(ctx)
	q.emitQueueLocked(ctx)
	q.mirrorLocked(ctx)
}

// failCurrentLocked errors the slot item and vacates the slot. Callers
// decide whether to promote the next item.
func (q *Queue) failCurrentLocked(ctx context.Context, detail string) {
	item := q.current
	item.State = models.VideoError
	item.Error = detail
	q.logger.Error().
		Str("token_id", item.TokenID).
		Str("filename", item.Filename).
		Str("detail", detail).
		Msg("Video failed")
	q.emitStatusLocked(ctx, events.VideoError)

	q.current = nil
	q.position = 0
}

// Snapshot returns clones of the slot item and backlog, slot first.
func (q *Queue) Snapshot() []*models.VideoQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() []*models.VideoQueueItem {
	items := make([]*models.VideoQueueItem, 0, len(q.pending)+1)
	if q.current != nil {
		items = append(items, q.current.Clone())
	}
	for _, item := range q.pending {
		items = append(items, item.Clone())
	}
	return items
}

// Status summarizes playback for projections and video:status broadcasts.
func (q *Queue) Status() models.VideoStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() models.VideoStatus {
	if q.current == nil {
		return models.VideoStatus{
			Status:      models.VideoStatusIdle,
			QueueLength: len(q.pending),
		}
	}

	item := q.current
	vs := models.VideoStatus{
		Status:          string(item.State),
		QueueLength:     len(q.pending),
		TokenID:         item.TokenID,
		Duration:        item.Duration,
		ExpectedEndTime: item.ExpectedEndTime,
		Error:           item.Error,
	}
	if item.Duration != nil && *item.Duration > 0 {
		p := float64(q.position) / float64(*item.Duration) * 100
		if p > 100 {
			p = 100
		}
		vs.Progress = &p
	}
	return vs
}

// Healthy reports VLC reachability for system status.
func (q *Queue) Healthy() bool {
	return q.player.Health()
}

func (q *Queue) emitStatusLocked(ctx context.Context, name string) {
	if q.bus == nil {
		return
	}
	if err := q.bus.Publish(ctx, name, q.statusLocked()); err != nil {
		q.logger.Error().Err(err).Str("event", name).Msg("Failed to publish video event")
	}
}

func (q *Queue) emitQueueLocked(ctx context.Context) {
	if q.bus == nil {
		return
	}
	payload := events.VideoQueuePayload{Items: q.snapshotLocked()}
	if err := q.bus.Publish(ctx, events.VideoQueueUpdated, payload); err != nil {
		q.logger.Error().Err(err).Msg("Failed to publish queue update")
	}
}

func (q *Queue) emitProgressLocked(ctx context.Context) {
	if q.bus == nil {
		return
	}
	item := q.current
	payload := events.VideoProgressPayload{
		TokenID:  item.TokenID,
		Position: q.position,
	}
	if item.Duration != nil && *item.Duration > 0 {
		payload.Duration = *item.Duration
		payload.Progress = float64(q.position) / float64(*item.Duration) * 100
		if payload.Progress > 100 {
			payload.Progress = 100
		}
	}
	if err := q.bus.Publish(ctx, events.VideoProgress, payload); err != nil {
		q.logger.Error().Err(err).Msg("Failed to publish video progress")
	}
}

func (q *Queue) mirrorLocked(ctx context.Context) {
	if q.mirror == nil {
		return
	}
	if err := q.mirror.SetVideoQueue(ctx, q.snapshotLocked()); err != nil {
		q.logger.Error().Err(err).Msg("Failed to mirror video queue")
	}
}
