package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	payload := bytes.Repeat([]byte("pcm audio "), 500)
	if err := dc.Put("abc123", payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := dc.Get("abc123")
	if !ok {
		t.Fatal("entry missing after Put")
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload corrupted through compression round trip")
	}

	if _, ok := dc.Get("nope"); ok {
		t.Error("hit for unknown key")
	}
}

func TestDiskCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if err := dc.Put("persistent", []byte("still here")); err != nil {
		t.Fatal(err)
	}

	dc2, err := NewDiskCache(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := dc2.Get("persistent")
	if !ok || string(got) != "still here" {
		t.Errorf("entry lost across reopen: %q, %v", got, ok)
	}
	if dc2.Size() <= 0 {
		t.Error("size not rebuilt from directory scan")
	}
}

func TestDiskCacheCorruptEntryDropped(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "bad"+diskExt)
	if err := os.WriteFile(path, []byte("not zstd at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := dc.Get("bad"); ok {
		t.Error("corrupt entry returned as a hit")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry not removed")
	}
}

func TestDiskCacheEvictsOldest(t *testing.T) {
	dir := t.TempDir()
	// Random payloads do not compress, so sizes stay predictable.
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i*7 + i/13)
	}

	dc, err := NewDiskCache(dir, 3*4096)
	if err != nil {
		t.Fatal(err)
	}

	for i, key := range []string{"aa", "bb", "cc"} {
		if err := dc.Put(key, payload); err != nil {
			t.Fatal(err)
		}
		// Distinct mtimes so eviction order is deterministic.
		mod := time.Now().Add(time.Duration(i-10) * time.Minute)
		os.Chtimes(filepath.Join(dir, key+diskExt), mod, mod)
	}

	// This Put pushes the tier over budget and evicts the oldest
	// entry.
	if err := dc.Put("dd", payload); err != nil {
		t.Fatal(err)
	}
	if _, ok := dc.Get("dd"); !ok {
		t.Error("newest entry evicted")
	}
	if _, ok := dc.Get("aa"); ok {
		t.Error("oldest entry survived eviction")
	}
	if dc.Size() > 3*4096+1024 {
		t.Errorf("size %d still over capacity", dc.Size())
	}
}

func TestDiskCacheClear(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	dc.Put("one", []byte("1"))
	dc.Put("two", []byte("2"))

	if err := dc.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if dc.Size() != 0 {
		t.Errorf("size after Clear = %d", dc.Size())
	}
	if _, ok := dc.Get("one"); ok {
		t.Error("entry survived Clear")
	}
}
