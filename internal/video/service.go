// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package video

import (
	"context"
	"time"
)

// defaultPollInterval is how often playback is reconciled against VLC.
const defaultPollInterval = time.Second

// Service runs the queue's poll loop under the supervision tree.
type Service struct {
	queue    *Queue
	interval time.Duration
}

// NewService wraps a queue in a supervised poller. interval <= 0 selects
// the one-second default.
func NewService(queue *Queue, interval time.Duration) *Service {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{queue: queue, interval: interval}
}

// Serve implements suture.Service: reconcile until the context ends.
// Tick is a cheap no-op while the playback slot is empty.
func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.queue.Tick(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Service) String() string {
	return "video-queue"
}
