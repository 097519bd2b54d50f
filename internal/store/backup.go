// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// backupTimestampFormat is filesystem-safe and sorts chronologically.
const backupTimestampFormat = "20060102-150405"

// BackupManifest records what a backup snapshot contains.
type BackupManifest struct {
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files"`
}

// Backup copies every stored JSON document into a timestamped directory
// under data/backups and writes a manifest alongside. It runs under the
// writer lock so the snapshot is consistent with respect to Save and
// Delete. Returns the backup directory path.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Now().UTC().Format(backupTimestampFormat)
	backupDir := filepath.Join(s.dataDir, backupsDir, stamp)

	// A second backup within the same second lands in the same directory;
	// suffix until the name is free.
	for i := 1; ; i++ {
		if _, err := os.Stat(backupDir); os.IsNotExist(err) {
			break
		}
		backupDir = filepath.Join(s.dataDir, backupsDir, fmt.Sprintf("%s-%d", stamp, i))
	}

	var files []string
	for _, dir := range []string{sessionsDir, gameStateDir} {
		copied, err := s.copyDir(filepath.Join(s.dataDir, dir), filepath.Join(backupDir, dir), dir)
		if err != nil {
			return "", err
		}
		files = append(files, copied...)
	}
	sort.Strings(files)

	manifest := BackupManifest{
		Timestamp: time.Now().UTC(),
		Files:     files,
	}
	if err := writeManifest(filepath.Join(backupDir, "manifest.json"), manifest); err != nil {
		return "", err
	}

	return backupDir, nil
}

// ListBackups returns existing backup directory names, oldest first.
func (s *Store) ListBackups() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.dataDir, backupsDir))
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) copyDir(src, dst, rel string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", src, err)
	}

	if err := os.MkdirAll(dst, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory %s: %w", dst, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return nil, err
		}
		files = append(files, filepath.Join(rel, name))
	}
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: paths stay inside the data directory
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // G304: paths stay inside the data directory
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // already failing
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

func writeManifest(path string, manifest BackupManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending manifest: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after CloseAtomicallyReplace

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace manifest: %w", err)
	}
	return nil
}
