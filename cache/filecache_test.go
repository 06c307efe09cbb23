package cache

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	fc, err := NewFileCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, found := fc.Get("missing"); found {
		t.Error("unexpected hit for absent key")
	}

	if err := fc.Set("artifact", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	data, found := fc.Get("artifact")
	if !found {
		t.Fatal("expected hit after set")
	}
	if string(data) != "payload" {
		t.Errorf("data = %q, want payload", data)
	}

	m := fc.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.Sets != 1 {
		t.Errorf("metrics = %+v, want 1 hit, 1 miss, 1 set", m)
	}
	if m.HitRatio != 0.5 {
		t.Errorf("hit ratio = %v, want 0.5", m.HitRatio)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	fc, err := NewFileCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	fc.maxAge = 10 * time.Millisecond

	if err := fc.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, found := fc.Get("k"); found {
		t.Error("expected miss after expiry window")
	}
}

func TestFileCacheEviction(t *testing.T) {
	dir := t.TempDir()
	fc, err := NewFileCache(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	fc.maxSize = 100 // force eviction with tiny payloads

	payload := make([]byte, 40)
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("artifact-%d", i)
		if err := fc.Set(key, payload); err != nil {
			t.Fatal(err)
		}
		// Spread modification times so eviction order is stable.
		past := time.Now().Add(time.Duration(i-10) * time.Minute)
		if err := os.Chtimes(fc.path(key), past, past); err != nil {
			t.Fatal(err)
		}
	}
	if err := fc.Set("artifact-5", payload); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, e := range entries {
		info, _ := e.Info()
		total += info.Size()
	}
	if total > 100 {
		t.Errorf("cache still over budget: %d bytes", total)
	}

	// Newest entry must survive the sweep.
	if _, found := fc.Get("artifact-5"); !found {
		t.Error("latest entry evicted")
	}
}

func TestFileCacheDelete(t *testing.T) {
	fc, err := NewFileCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := fc.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := fc.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, found := fc.Get("k"); found {
		t.Error("entry survived delete")
	}
	// Deleting a missing key is not an error.
	if err := fc.Delete("k"); err != nil {
		t.Errorf("delete of absent key: %v", err)
	}
}
