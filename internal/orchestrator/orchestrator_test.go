// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/aln-orchestrator/internal/config"
)

const testCatalogJSON = `{
  "kaa001": {"memoryType": "Personal", "valueRating": 3},
  "doc_b7": {"memoryType": "Business", "valueRating": 2}
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(catalogPath, []byte(testCatalogJSON), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0, // ephemeral, so cycles never collide
			ShutdownTimeout: 2 * time.Second,
		},
		VLC: config.VLCConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			Timeout:      time.Second,
			PollInterval: time.Hour, // never ticks during a test
		},
		Admin: config.AdminConfig{
			Password: "test-password",
			TokenTTL: time.Hour,
		},
		Session:      config.SessionConfig{TimeoutMs: 4 * 60 * 60 * 1000, MaxDevices: 10},
		OfflineQueue: config.OfflineQueueConfig{MaxBatchAge: 3600000, CacheSize: 100},
		Persistence:  config.PersistenceConfig{DataDir: filepath.Join(dir, "data")},
		Tokens:       config.TokensConfig{File: catalogPath},
	}
}

func TestLifecycleOrderEnforced(t *testing.T) {
	o := New(testConfig(t), "test")
	ctx := context.Background()

	if err := o.InitHandlers(ctx); !errors.Is(err, ErrWrongState) {
		t.Errorf("InitHandlers before InitServices error = %v, want ErrWrongState", err)
	}
	if err := o.Start(ctx); !errors.Is(err, ErrWrongState) {
		t.Errorf("Start before init error = %v, want ErrWrongState", err)
	}
	if err := o.Shutdown(ctx); !errors.Is(err, ErrWrongState) {
		t.Errorf("Shutdown before start error = %v, want ErrWrongState", err)
	}

	if err := o.InitServices(ctx); err != nil {
		t.Fatalf("InitServices() error = %v", err)
	}
	if err := o.InitServices(ctx); !errors.Is(err, ErrWrongState) {
		t.Errorf("double InitServices error = %v, want ErrWrongState", err)
	}
	if err := o.Start(ctx); !errors.Is(err, ErrWrongState) {
		t.Errorf("Start before InitHandlers error = %v, want ErrWrongState", err)
	}

	if err := o.InitHandlers(ctx); err != nil {
		t.Fatalf("InitHandlers() error = %v", err)
	}
	if o.State() != StateHandlersReady {
		t.Errorf("State() = %s, want HANDLERS_READY", o.State())
	}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if o.State() != StateListening {
		t.Errorf("State() = %s, want LISTENING", o.State())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if o.State() != StateUninitialized {
		t.Errorf("State() after shutdown = %s, want UNINITIALIZED", o.State())
	}
}

// Repeated start/shutdown cycles must not accumulate broadcast
// listeners: the registration count after cycle N equals the count
// after cycle 1, and shutdown drops it to zero.
func TestCyclesKeepListenerCountStable(t *testing.T) {
	cfg := testConfig(t)
	o := New(cfg, "test")
	ctx := context.Background()

	var firstCount int
	for cycle := 0; cycle < 3; cycle++ {
		if err := o.InitServices(ctx); err != nil {
			t.Fatalf("cycle %d: InitServices() error = %v", cycle, err)
		}
		if err := o.InitHandlers(ctx); err != nil {
			t.Fatalf("cycle %d: InitHandlers() error = %v", cycle, err)
		}

		count := o.ListenerCount()
		if count == 0 {
			t.Fatalf("cycle %d: ListenerCount() = 0 after InitHandlers", cycle)
		}
		if cycle == 0 {
			firstCount = count
		} else if count != firstCount {
			t.Errorf("cycle %d: ListenerCount() = %d, want %d", cycle, count, firstCount)
		}

		if err := o.Start(ctx); err != nil {
			t.Fatalf("cycle %d: Start() error = %v", cycle, err)
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := o.Shutdown(shutdownCtx); err != nil {
			cancel()
			t.Fatalf("cycle %d: Shutdown() error = %v", cycle, err)
		}
		cancel()

		if got := o.ListenerCount(); got != 0 {
			t.Errorf("cycle %d: ListenerCount() after shutdown = %d, want 0", cycle, got)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "UNINITIALIZED"},
		{StateServicesReady, "SERVICES_READY"},
		{StateHandlersReady, "HANDLERS_READY"},
		{StateListening, "LISTENING"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
