// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRU_BasicOperations(t *testing.T) {
	cache := NewLRU(3, time.Minute)

	cache.Add("a", 1)
	cache.Add("b", 2)
	cache.Add("c", 3)

	got, found := cache.Get("b")
	if !found {
		t.Fatal("Expected to find key 'b'")
	}
	if got.(int) != 2 {
		t.Errorf("Get(b) = %v, want 2", got)
	}

	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cache.Len())
	}

	if _, found := cache.Get("missing"); found {
		t.Error("Expected 'missing' to be absent")
	}
}

func TestLRU_UpdateExistingKey(t *testing.T) {
	cache := NewLRU(3, time.Minute)

	cache.Add("a", "first")
	cache.Add("a", "second")

	got, found := cache.Get("a")
	if !found {
		t.Fatal("Expected to find key 'a'")
	}
	if got.(string) != "second" {
		t.Errorf("Get(a) = %v, want second", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	cache := NewLRU(3, time.Minute)

	cache.Add("a", 1)
	cache.Add("b", 2)
	cache.Add("c", 3)

	// Touch 'a' so 'b' becomes least recently used.
	cache.Get("a")

	cache.Add("d", 4)

	if _, found := cache.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := cache.Get(key); !found {
			t.Errorf("Expected %q to be present", key)
		}
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	cache := NewLRU(10, 50*time.Millisecond)

	cache.Add("a", 1)

	if _, found := cache.Get("a"); !found {
		t.Error("Expected to find key 'a' immediately")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := cache.Get("a"); found {
		t.Error("Expected 'a' to be expired")
	}
	if cache.Contains("a") {
		t.Error("Contains(a) = true after expiry")
	}
}

func TestLRU_RemoveAndClear(t *testing.T) {
	cache := NewLRU(10, time.Minute)

	cache.Add("a", 1)
	cache.Add("b", 2)

	if !cache.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if cache.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", cache.Len())
	}

	// Cache stays usable after Clear.
	cache.Add("c", 3)
	if _, found := cache.Get("c"); !found {
		t.Error("Expected to find key 'c' after Clear")
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	cache := NewLRU(10, 30*time.Millisecond)

	cache.Add("a", 1)
	cache.Add("b", 2)

	time.Sleep(40 * time.Millisecond)
	cache.Add("c", 3)

	removed := cache.CleanupExpired()
	if removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestLRU_Stats(t *testing.T) {
	cache := NewLRU(10, time.Minute)

	cache.Add("a", 1)
	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	hits, misses, size := cache.Stats()
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	cache := NewLRU(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("w%d-%d", worker, j%20)
				cache.Add(key, j)
				cache.Get(key)
				cache.Contains(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() > 100 {
		t.Errorf("Len() = %d, want <= capacity 100", cache.Len())
	}
}

func TestLRU_DefaultsApplied(t *testing.T) {
	cache := NewLRU(0, 0)

	cache.Add("a", 1)
	if _, found := cache.Get("a"); !found {
		t.Error("Expected defaults to produce a working cache")
	}
}
