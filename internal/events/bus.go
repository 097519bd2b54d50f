// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topic is the single gochannel topic all domain events flow through.
// One topic keeps the FIFO guarantee trivial: subscriber order == publish
// order == session mutation order.
const Topic = "aln.events"

const (
	metadataEventName   = "event"
	metadataPublishedAt = "published_at"
)

// DefaultBufferSize is the per-subscriber output channel buffer. Publishers
// hold the session writer lock while publishing, so the buffer must absorb
// bursts (batch processing emits one event per item) without blocking.
const DefaultBufferSize = 256

// Event is a decoded domain event as seen by subscribers. Payload is the
// JSON produced at publish time; consumers unmarshal into the typed payload
// for the Name they are handling.
type Event struct {
	Name      string
	Payload   json.RawMessage
	Timestamp time.Time
}

// Config controls bus construction.
type Config struct {
	// BufferSize is the per-subscriber channel buffer. Zero or negative
	// selects DefaultBufferSize.
	BufferSize int64

	// Logger receives Watermill's internal diagnostics. Nil selects a
	// stdout logger with debug and trace disabled.
	Logger watermill.LoggerAdapter
}

// Bus is the in-process domain event bus. It is safe for concurrent use;
// Publish after Close returns an error rather than panicking.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a gochannel-backed bus.
func NewBus(cfg Config) *Bus {
	if cfg.Logger == nil {
		cfg.Logger = watermill.NewStdLogger(false, false)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, cfg.Logger)

	return &Bus{
		pubsub: pubsub,
		logger: cfg.Logger,
	}
}

// Publish serializes payload and emits it under the given event name.
// Serialization happens here, inside the caller's critical section, so the
// subscriber can never observe a payload newer than the event it rode in on.
func (b *Bus) Publish(ctx context.Context, name string, payload any) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(metadataEventName, name)
	msg.Metadata.Set(metadataPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// Subscribe returns a channel of decoded events. The channel closes when
// ctx is cancelled or the bus is closed. Each subscriber receives its own
// copy of the stream in publish order.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *Event, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Topic, err)
	}

	out := make(chan *Event)
	go b.decodeLoop(ctx, msgs, out)
	return out, nil
}

// decodeLoop converts raw Watermill messages to Events. Forward-then-ack in
// a single goroutine preserves per-subscriber FIFO order.
func (b *Bus) decodeLoop(ctx context.Context, msgs <-chan *message.Message, out chan<- *Event) {
	defer close(out)

	for msg := range msgs {
		evt := &Event{
			Name:    msg.Metadata.Get(metadataEventName),
			Payload: json.RawMessage(msg.Payload),
		}
		if raw := msg.Metadata.Get(metadataPublishedAt); raw != "" {
			if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				evt.Timestamp = ts
			}
		}
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}

		select {
		case out <- evt:
			msg.Ack()
		case <-ctx.Done():
			msg.Nack()
			return
		}
	}
}

// Close shuts the bus down. Subscriber channels drain and close; further
// Publish calls fail. Close is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.pubsub.Close()
}
