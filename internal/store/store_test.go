// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tomtom215/aln-orchestrator/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestStoreSaveLoad(t *testing.T) {
	s := newTestStore(t)

	session := models.NewSession("Friday Night Run", []string{"001", "002"})
	if err := s.Save("session:"+session.ID, session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var loaded models.Session
	if err := s.Load("session:"+session.ID, &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ID != session.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, session.ID)
	}
	if loaded.Name != "Friday Night Run" {
		t.Errorf("Name = %q, want %q", loaded.Name, "Friday Night Run")
	}
	if !reflect.DeepEqual(loaded.Teams, []string{"001", "002"}) {
		t.Errorf("Teams = %v, want [001 002]", loaded.Teams)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := newTestStore(t)

	var out models.Session
	err := s.Load("session:does-not-exist", &out)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(s.DataDir(), "sessions", "broken.json")
	if err := os.WriteFile(path, []byte(`{"id": `), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out models.Session
	err := s.Load("session:broken", &out)
	if err == nil {
		t.Fatal("Load() with corrupt file returned nil error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("Load() corrupt file reported ErrNotFound, want parse error")
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("gameState:current", map[string]int{"v": 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("gameState:current", map[string]int{"v": 2}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var out map[string]int
	if err := s.Load("gameState:current", &out); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out["v"] != 2 {
		t.Errorf("v = %d, want 2", out["v"])
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("session:current", map[string]string{"id": "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete("session:current"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var out map[string]string
	if err := s.Load("session:current", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := s.Delete("session:current"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStoreKeyValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		key  string
	}{
		{"unknown namespace", "config:foo"},
		{"empty key", ""},
		{"traversal", "session:../escape"},
		{"separator", "session:a/b"},
		{"empty id", "session:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Save(tt.key, "x"); err == nil {
				t.Errorf("Save(%q) returned nil error", tt.key)
			}
			var out any
			if err := s.Load(tt.key, &out); err == nil || errors.Is(err, ErrNotFound) {
				t.Errorf("Load(%q) error = %v, want validation error", tt.key, err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []string{"session:b-session", "session:a-session", "session:current"} {
		if err := s.Save(key, map[string]string{"k": key}); err != nil {
			t.Fatalf("Save(%q) error = %v", key, err)
		}
	}

	got, err := s.List("session:")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"session:a-session", "session:b-session", "session:current"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	if _, err := s.List("bogus:"); err == nil {
		t.Error("List(bogus:) returned nil error")
	}
}

func TestStoreBackup(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("session:current", map[string]string{"id": "s1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("gameState:current", map[string]int{"v": 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dir, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	for _, rel := range []string{
		filepath.Join("sessions", "current.json"),
		filepath.Join("gameState", "current.json"),
		"manifest.json",
	} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("backup missing %s: %v", rel, err)
		}
	}

	backups, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("ListBackups() = %v, want 1 entry", backups)
	}

	// Source files survive the backup.
	var out map[string]string
	if err := s.Load("session:current", &out); err != nil {
		t.Errorf("Load() after backup error = %v", err)
	}
}

func TestStoreBackupCollision(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Backup()
	if err != nil {
		t.Fatalf("first Backup() error = %v", err)
	}
	second, err := s.Backup()
	if err != nil {
		t.Fatalf("second Backup() error = %v", err)
	}
	if first == second {
		t.Errorf("backup directories collide: %s", first)
	}
}
