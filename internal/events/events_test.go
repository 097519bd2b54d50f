// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/aln-orchestrator/internal/models"
)

func recvEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	tx := models.NewTransaction("kaa001", "001", "GM_01", models.DeviceTypeGM, models.ModeBlackmarket)
	tx.Status = models.TxAccepted
	tx.Points = 1000

	if err := bus.Publish(ctx, TransactionAdded, TransactionPayload{Transaction: tx}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	evt := recvEvent(t, ch)
	if evt.Name != TransactionAdded {
		t.Errorf("Name = %q, want %q", evt.Name, TransactionAdded)
	}
	if evt.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want publish time")
	}

	var payload TransactionPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload.Transaction == nil {
		t.Fatal("payload.Transaction = nil")
	}
	if payload.Transaction.TokenID != "kaa001" {
		t.Errorf("TokenID = %q, want %q", payload.Transaction.TokenID, "kaa001")
	}
	if payload.Transaction.Points != 1000 {
		t.Errorf("Points = %d, want 1000", payload.Transaction.Points)
	}
}

func TestBusFIFOOrdering(t *testing.T) {
	bus := NewBus(Config{BufferSize: 512})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	const n = 100
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("seq-%03d", i)
		if err := bus.Publish(ctx, name, map[string]int{"seq": i}); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		evt := recvEvent(t, ch)
		want := fmt.Sprintf("seq-%03d", i)
		if evt.Name != want {
			t.Fatalf("event %d: Name = %q, want %q", i, evt.Name, want)
		}
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	second, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := bus.Publish(ctx, ScoreUpdated, models.NewTeamScore("001")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for i, ch := range []<-chan *Event{first, second} {
		evt := recvEvent(t, ch)
		if evt.Name != ScoreUpdated {
			t.Errorf("subscriber %d: Name = %q, want %q", i, evt.Name, ScoreUpdated)
		}
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(Config{})
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := bus.Publish(context.Background(), SessionCreated, SessionPayload{})
	if err == nil {
		t.Fatal("Publish() after Close returned nil error")
	}
}

func TestBusSubscribeAfterClose(t *testing.T) {
	bus := NewBus(Config{})
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := bus.Subscribe(context.Background()); err == nil {
		t.Fatal("Subscribe() after Close returned nil error")
	}
}

func TestBusCloseIdempotent(t *testing.T) {
	bus := NewBus(Config{})
	if err := bus.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestBusSubscriberContextCancel(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A buffered event may still arrive; the channel must close
			// shortly after.
			select {
			case _, ok := <-ch:
				if ok {
					t.Error("channel still open after context cancel")
				}
			case <-time.After(2 * time.Second):
				t.Error("channel not closed after context cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Error("channel not closed after context cancel")
	}
}

func TestWatermillLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillLogger(zerolog.New(&buf))

	adapter.Info("bus started", watermill.LogFields{"topic": Topic})

	out := buf.String()
	if !strings.Contains(out, "bus started") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, Topic) {
		t.Errorf("output missing topic field: %s", out)
	}
}

func TestWatermillLoggerError(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillLogger(zerolog.New(&buf))

	adapter.Error("publish failed", errors.New("boom"), nil)

	out := buf.String()
	if !strings.Contains(out, "publish failed") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("output missing error: %s", out)
	}
}

func TestWatermillLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillLogger(zerolog.New(&buf)).With(watermill.LogFields{"component": "bus"})

	adapter.Debug("derived logger", watermill.LogFields{"extra": "field"})

	out := buf.String()
	for _, want := range []string{"derived logger", "component", "bus", "extra", "field"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
