// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package tokens

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tomtom215/aln-orchestrator/internal/models"
)

const testCatalogJSON = `{
	"kaa001": {
		"memoryType": "Personal",
		"valueRating": 3,
		"mediaAssets": {"image": "kaa001.jpg", "audio": "kaa001.mp3"}
	},
	"clue_a": {
		"memoryType": "Business",
		"valueRating": 2,
		"group": "clue (x2)"
	},
	"clue_b": {
		"memoryType": "Business",
		"valueRating": 1,
		"group": "clue (x2)"
	},
	"v1": {
		"memoryType": "Technical",
		"valueRating": 4,
		"mediaAssets": {"video": "v1.mp4"}
	}
}`

func TestLoadFromReader(t *testing.T) {
	catalog, err := LoadFromReader(strings.NewReader(testCatalogJSON))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if got := catalog.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}

	token, ok := catalog.Get("kaa001")
	if !ok {
		t.Fatal("Get(kaa001) not found")
	}
	if token.ID != "kaa001" {
		t.Errorf("ID = %q, want %q", token.ID, "kaa001")
	}
	if token.MemoryType != models.MemoryTypePersonal {
		t.Errorf("MemoryType = %q, want %q", token.MemoryType, models.MemoryTypePersonal)
	}
	if got := token.Value(); got != 1000 {
		t.Errorf("Value() = %d, want 1000", got)
	}
	if token.MediaAssets == nil || token.MediaAssets.Image != "kaa001.jpg" {
		t.Errorf("MediaAssets.Image = %v, want kaa001.jpg", token.MediaAssets)
	}

	if _, ok := catalog.Get("missing"); ok {
		t.Error("Get(missing) = found, want not found")
	}
}

func TestLoadFromReaderInvalidJSON(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader(`{"kaa001": `)); err == nil {
		t.Fatal("LoadFromReader() with truncated JSON returned nil error")
	}
}

func TestLoadFromReaderInvalidID(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"id with space", `{"bad id": {"memoryType": "Personal", "valueRating": 1}}`},
		{"id with hyphen", `{"bad-id": {"memoryType": "Personal", "valueRating": 1}}`},
		{"empty id", `{"": {"memoryType": "Personal", "valueRating": 1}}`},
		{"null entry", `{"kaa001": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFromReader(strings.NewReader(tt.json)); err == nil {
				t.Error("LoadFromReader() returned nil error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(path, []byte(testCatalogJSON), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	catalog, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if got := catalog.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("LoadFromFile() with missing file returned nil error")
	}
}

func TestCatalogAllStableOrder(t *testing.T) {
	catalog, err := LoadFromReader(strings.NewReader(testCatalogJSON))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	want := []string{"clue_a", "clue_b", "kaa001", "v1"}
	for run := 0; run < 3; run++ {
		all := catalog.All()
		got := make([]string, len(all))
		for i, token := range all {
			got[i] = token.ID
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: All() order = %v, want %v", run, got, want)
		}
	}

	if got := catalog.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestCatalogGroupMembers(t *testing.T) {
	catalog, err := LoadFromReader(strings.NewReader(testCatalogJSON))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	got := catalog.GroupMembers("clue")
	want := []string{"clue_a", "clue_b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupMembers(clue) = %v, want %v", got, want)
	}

	if got := catalog.GroupMembers("nope"); got != nil {
		t.Errorf("GroupMembers(nope) = %v, want nil", got)
	}

	if got := catalog.GroupNames(); !reflect.DeepEqual(got, []string{"clue"}) {
		t.Errorf("GroupNames() = %v, want [clue]", got)
	}
}

func TestCatalogGroupSizeMismatchStillLoads(t *testing.T) {
	json := `{
		"a1": {"memoryType": "Personal", "valueRating": 1, "group": "pair (x3)"},
		"a2": {"memoryType": "Personal", "valueRating": 1, "group": "pair (x3)"}
	}`

	catalog, err := LoadFromReader(strings.NewReader(json))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if got := catalog.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if got := catalog.GroupMembers("pair"); len(got) != 2 {
		t.Errorf("GroupMembers(pair) = %v, want 2 members", got)
	}
}
