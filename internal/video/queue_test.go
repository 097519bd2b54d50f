// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/events"
	"github.com/tomtom215/aln-orchestrator/internal/models"
)

type fakePlayer struct {
	mu        sync.Mutex
	state     string
	position  int
	duration  int
	playErr   error
	statusErr error

	played    []string
	stopCalls int
}

func (f *fakePlayer) Play(_ context.Context, filename string) (*Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return nil, f.playErr
	}
	f.state = vlcStatePlaying
	f.position = 0
	f.played = append(f.played, filename)
	return &Status{State: vlcStatePlaying, Filename: filename, Duration: f.duration}, nil
}

func (f *fakePlayer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = vlcStateStopped
	f.stopCalls++
	return nil
}

func (f *fakePlayer) Pause(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = vlcStatePaused
	return nil
}

func (f *fakePlayer) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = vlcStatePlaying
	return nil
}

func (f *fakePlayer) Status(context.Context) (*Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &Status{State: f.state, Position: f.position, Duration: f.duration}, nil
}

func (f *fakePlayer) Health() bool { return true }

func (f *fakePlayer) set(apply func(*fakePlayer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(f)
}

func (f *fakePlayer) getState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

type fakeMirror struct {
	mu   sync.Mutex
	last []*models.VideoQueueItem
}

func (m *fakeMirror) SetVideoQueue(_ context.Context, items []*models.VideoQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = items
	return nil
}

func (m *fakeMirror) snapshot() []*models.VideoQueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func newTestQueue(t *testing.T) (*Queue, *fakePlayer, *fakeMirror, <-chan *events.Event) {
	t.Helper()

	bus := events.NewBus(events.Config{BufferSize: 512})
	t.Cleanup(func() { bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	player := &fakePlayer{state: vlcStateStopped}
	mirror := &fakeMirror{}
	return NewQueue(player, bus, mirror), player, mirror, ch
}

func nextEvent(t *testing.T, ch <-chan *events.Event) *events.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func expectEvents(t *testing.T, ch <-chan *events.Event, names ...string) {
	t.Helper()
	for i, name := range names {
		if evt := nextEvent(t, ch); evt.Name != name {
			t.Fatalf("event %d: Name = %q, want %q", i, evt.Name, name)
		}
	}
}

func TestEnqueueOnIdlePlaysImmediately(t *testing.T) {
	q, player, mirror, ch := newTestQueue(t)
	ctx := context.Background()

	position := q.Enqueue(ctx, "kaa001", "kaa001.mp4")
	if position != 0 {
		t.Errorf("position = %d, want 0", position)
	}

	expectEvents(t, ch,
		events.VideoQueued, events.VideoLoading, events.VideoPlaying, events.VideoQueueUpdated)

	status := q.Status()
	if status.Status != string(models.VideoPlaying) {
		t.Errorf("Status = %q, want playing", status.Status)
	}
	if status.TokenID != "kaa001" {
		t.Errorf("TokenID = %q, want kaa001", status.TokenID)
	}
	if len(player.played) != 1 || player.played[0] != "kaa001.mp4" {
		t.Errorf("played = %v", player.played)
	}

	items := mirror.snapshot()
	if len(items) != 1 || items[0].State != models.VideoPlaying {
		t.Errorf("mirror = %+v, want one playing item", items)
	}
}

func TestEnqueueBusyReportsPosition(t *testing.T) {
	q, _, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")
	if got := q.Enqueue(ctx, "b", "b.mp4"); got != 1 {
		t.Errorf("second position = %d, want 1", got)
	}
	if got := q.Enqueue(ctx, "c", "c.mp4"); got != 2 {
		t.Errorf("third position = %d, want 2", got)
	}

	if got := q.Status().QueueLength; got != 2 {
		t.Errorf("QueueLength = %d, want 2", got)
	}
	if got := len(q.Snapshot()); got != 3 {
		t.Errorf("len(Snapshot()) = %d, want 3", got)
	}
}

func TestTickEmitsProgress(t *testing.T) {
	q, player, _, ch := newTestQueue(t)
	ctx := context.Background()

	player.set(func(f *fakePlayer) { f.duration = 200 })
	q.Enqueue(ctx, "kaa001", "kaa001.mp4")
	expectEvents(t, ch,
		events.VideoQueued, events.VideoLoading, events.VideoPlaying, events.VideoQueueUpdated)

	player.set(func(f *fakePlayer) { f.position = 50 })
	q.Tick(ctx)

	evt := nextEvent(t, ch)
	if evt.Name != events.VideoProgress {
		t.Fatalf("event = %q, want video:progress", evt.Name)
	}

	status := q.Status()
	if status.Progress == nil || *status.Progress != 25 {
		t.Errorf("Progress = %v, want 25", status.Progress)
	}
}

func TestStoppedPollsComplete(t *testing.T) {
	q, player, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")
	q.Enqueue(ctx, "b", "b.mp4")

	player.set(func(f *fakePlayer) { f.state = vlcStateStopped })
	q.Tick(ctx)
	if got := q.Status().TokenID; got != "a" {
		t.Fatalf("TokenID after 1 stopped poll = %q, want a (grace)", got)
	}
	q.Tick(ctx)

	// Completion promotes b, whose Play resets the fake state to playing.
	status := q.Status()
	if status.TokenID != "b" || status.Status != string(models.VideoPlaying) {
		t.Errorf("status = %+v, want b playing", status)
	}
	if len(player.played) != 2 {
		t.Errorf("played = %v, want [a.mp4 b.mp4]", player.played)
	}
}

func TestExpectedEndCompletes(t *testing.T) {
	q, _, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")

	q.mu.Lock()
	past := time.Now().UTC().Add(-time.Second)
	d := 300
	q.current.Duration = &d
	q.current.ExpectedEndTime = &past
	q.mu.Unlock()

	q.Tick(ctx)

	if got := q.Status().Status; got != models.VideoStatusIdle {
		t.Errorf("Status = %q, want idle after expected end", got)
	}
}

func TestPlayFailureErrorsAndAdvances(t *testing.T) {
	q, player, _, ch := newTestQueue(t)
	ctx := context.Background()

	player.set(func(f *fakePlayer) { f.playErr = errors.New("file not found") })
	q.Enqueue(ctx, "a", "a.mp4")

	expectEvents(t, ch,
		events.VideoQueued, events.VideoLoading, events.VideoError, events.VideoQueueUpdated)
	if got := q.Status().Status; got != models.VideoStatusIdle {
		t.Errorf("Status = %q, want idle", got)
	}

	// A healthy VLC afterwards plays the next enqueue.
	player.set(func(f *fakePlayer) { f.playErr = nil })
	q.Enqueue(ctx, "b", "b.mp4")
	if got := q.Status().TokenID; got != "b" {
		t.Errorf("TokenID = %q, want b", got)
	}
}

func TestPollFailuresDropCurrent(t *testing.T) {
	q, player, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")
	player.set(func(f *fakePlayer) { f.statusErr = errors.New("connection refused") })

	for i := 0; i < maxPollFailures-1; i++ {
		q.Tick(ctx)
	}
	if got := q.Status().TokenID; got != "a" {
		t.Fatalf("TokenID = %q, want a before failure threshold", got)
	}

	q.Tick(ctx)
	if got := q.Status().Status; got != models.VideoStatusIdle {
		t.Errorf("Status = %q, want idle after poll failures", got)
	}
}

func TestPauseResume(t *testing.T) {
	q, player, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")

	if err := q.Pause(ctx); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if got := q.Status().Status; got != string(models.VideoPaused) {
		t.Errorf("Status = %q, want paused", got)
	}
	if got := player.getState(); got != vlcStatePaused {
		t.Errorf("player state = %q, want paused", got)
	}

	// Ticks while paused must not complete the item.
	player.set(func(f *fakePlayer) { f.state = vlcStateStopped })
	q.Tick(ctx)
	q.Tick(ctx)
	if got := q.Status().Status; got != string(models.VideoPaused) {
		t.Errorf("Status after ticks = %q, want paused", got)
	}

	if err := q.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := q.Status().Status; got != string(models.VideoPlaying) {
		t.Errorf("Status = %q, want playing", got)
	}
}

func TestSkipAdvances(t *testing.T) {
	q, player, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")
	q.Enqueue(ctx, "b", "b.mp4")

	q.Skip(ctx)

	if got := q.Status().TokenID; got != "b" {
		t.Errorf("TokenID = %q, want b", got)
	}
	if player.stopCalls != 1 {
		t.Errorf("stopCalls = %d, want 1", player.stopCalls)
	}

	// Skip on an idle queue is a no-op.
	q.Skip(ctx)
	q.Skip(ctx)
	if got := q.Status().Status; got != models.VideoStatusIdle {
		t.Errorf("Status = %q, want idle", got)
	}
}

func TestClearEmptiesQueue(t *testing.T) {
	q, player, mirror, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a", "a.mp4")
	q.Enqueue(ctx, "b", "b.mp4")
	q.Enqueue(ctx, "c", "c.mp4")

	q.Clear(ctx)

	status := q.Status()
	if status.Status != models.VideoStatusIdle || status.QueueLength != 0 {
		t.Errorf("status = %+v, want idle/empty", status)
	}
	if player.stopCalls != 1 {
		t.Errorf("stopCalls = %d, want 1", player.stopCalls)
	}
	if got := mirror.snapshot(); len(got) != 0 {
		t.Errorf("mirror = %+v, want empty", got)
	}
}

func TestOfferScan(t *testing.T) {
	q, _, _, _ := newTestQueue(t)
	ctx := context.Background()

	withVideo := &models.Token{
		ID:          "kaa001",
		MemoryType:  models.MemoryTypePersonal,
		ValueRating: 3,
		MediaAssets: &models.MediaAssets{Video: "kaa001.mp4"},
	}
	if !q.OfferScan(ctx, withVideo, "GM_01") {
		t.Error("OfferScan(video token) = false, want true")
	}

	noVideo := &models.Token{ID: "doc_b7", MemoryType: models.MemoryTypeBusiness}
	if q.OfferScan(ctx, noVideo, "GM_01") {
		t.Error("OfferScan(no video) = true, want false")
	}

	if got := len(q.Snapshot()); got != 1 {
		t.Errorf("len(Snapshot()) = %d, want 1", got)
	}
}

func TestServiceTicksUntilCancelled(t *testing.T) {
	q, player, _, _ := newTestQueue(t)
	svc := NewService(q, 5*time.Millisecond)

	q.Enqueue(context.Background(), "a", "a.mp4")
	player.set(func(f *fakePlayer) { f.duration = 100; f.position = 10 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if q.Status().Progress == nil {
		t.Error("no progress observed, service did not tick")
	}
	if svc.String() != "video-queue" {
		t.Errorf("String() = %q", svc.String())
	}
}
