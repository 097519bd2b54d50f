// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

// Package store is the only persistent surface of the orchestrator.
//
// Values are JSON files under the data directory, addressed by namespaced
// keys:
//
//	session:<id>      -> data/sessions/<id>.json
//	session:current   -> data/sessions/current.json
//	gameState:current -> data/gameState/current.json
//
// Every write serializes to a pending file in the target directory, fsyncs,
// then renames over the target. A crash mid-write leaves the previous file
// intact; readers observe either the old or the new value, never a torn one.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/tomtom215/aln-orchestrator/internal/logging"
)

// ErrNotFound is returned by Load when the key has no stored value.
var ErrNotFound = errors.New("store: key not found")

const (
	sessionsDir  = "sessions"
	gameStateDir = "gameState"
	backupsDir   = "backups"

	sessionPrefix   = "session:"
	gameStatePrefix = "gameState:"
)

// Well-known keys.
const (
	// SessionKeyPrefix namespaces per-session documents; pass it to List
	// to enumerate stored sessions.
	SessionKeyPrefix = sessionPrefix

	// CurrentSessionKey points at the live session for crash recovery.
	CurrentSessionKey = sessionPrefix + "current"

	// GameStateKey holds the last projected game state snapshot.
	GameStateKey = gameStatePrefix + "current"
)

// SessionKey returns the storage key for a session id.
func SessionKey(id string) string {
	return sessionPrefix + id
}

// idPattern restricts key identifiers to filesystem-safe characters. UUIDs
// and the literal "current" both satisfy it; path traversal cannot.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store persists keyed JSON documents with atomic writes.
type Store struct {
	dataDir string
	mu      sync.RWMutex
}

// New creates the store and its directory layout under dataDir.
func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	for _, dir := range []string{sessionsDir, gameStateDir, backupsDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0o750); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return &Store{dataDir: dataDir}, nil
}

// DataDir returns the root data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// path maps a key to its file location, rejecting keys outside the known
// namespaces and identifiers that could escape the data directory.
func (s *Store) path(key string) (string, error) {
	var dir, id string
	switch {
	case strings.HasPrefix(key, sessionPrefix):
		dir, id = sessionsDir, strings.TrimPrefix(key, sessionPrefix)
	case strings.HasPrefix(key, gameStatePrefix):
		dir, id = gameStateDir, strings.TrimPrefix(key, gameStatePrefix)
	default:
		return "", fmt.Errorf("unknown key namespace: %q", key)
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("invalid key identifier: %q", id)
	}
	return filepath.Join(s.dataDir, dir, id+".json"), nil
}

// Save atomically writes value as JSON under key.
func (s *Store) Save(key string, value any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file for %s: %w", key, err)
	}
	defer func() {
		if cleanupErr := pending.Cleanup(); cleanupErr != nil {
			logging.Debug().Err(cleanupErr).Str("key", key).Msg("Cleanup pending store file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", key, err)
	}
	return nil
}

// Load reads the value stored under key into out. Missing keys return
// ErrNotFound; a file that exists but fails to parse is an error (corrupt
// state must surface, not silently reset).
func (s *Store) Load(key string, out any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from a validated key
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Deleting a missing key is not
// an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns the stored keys matching prefix in sorted order. A prefix of
// "session:" includes "session:current" when present; callers filter it.
func (s *Store) List(prefix string) ([]string, error) {
	var dir, keyPrefix string
	switch prefix {
	case sessionPrefix:
		dir, keyPrefix = sessionsDir, sessionPrefix
	case gameStatePrefix:
		dir, keyPrefix = gameStateDir, gameStatePrefix
	default:
		return nil, fmt.Errorf("unknown list prefix: %q", prefix)
	}

	s.mu.RLock()
	entries, err := os.ReadDir(filepath.Join(s.dataDir, dir))
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, keyPrefix+strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}
