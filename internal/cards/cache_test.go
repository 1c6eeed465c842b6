package cards

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCache_CreatesCardsDir(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cards")); err != nil {
		t.Errorf("expected cards subdirectory to exist: %v", err)
	}
	if c.dir != filepath.Join(dir, "cards") {
		t.Errorf("unexpected cache dir: %s", c.dir)
	}
}

func TestCache_WriteAtomicAndGet(t *testing.T) {
	c, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := "abc_tag_v1.jpg"
	data := []byte("fake artifact bytes")

	if err := c.WriteAtomic(key, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected artifact to be present after write")
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}

	entries, _ := os.ReadDir(c.dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("expected no leftover temp file, found %s", e.Name())
		}
	}
}

func TestCache_GetMissing(t *testing.T) {
	c, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("nope.jpg"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCache_Evict(t *testing.T) {
	c, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := "abc_tag_v1.jpg"
	if err := c.WriteAtomic(key, []byte("x")); err != nil {
		t.Fatal(err)
	}
	c.Evict(key)
	if _, ok := c.Get(key); ok {
		t.Error("expected artifact to be gone after evict")
	}
}

func TestCache_SweepOrphans_RemovesOrphanedTempFiles(t *testing.T) {
	c, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, ".tmp-deadbeef"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteAtomic("real_tag_v1.jpg", []byte("y")); err != nil {
		t.Fatal(err)
	}

	removed, err := c.SweepOrphans()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 orphan removed, got %d", removed)
	}
	if _, ok := c.Get("real_tag_v1.jpg"); !ok {
		t.Error("sweep must not remove a well-formed artifact")
	}
}

func TestHashSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := HashSource(path)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashSource(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("expected deterministic hash for identical content")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex sha256, got %d chars", len(h1))
	}
}

func TestKey_VariesWithSpec(t *testing.T) {
	spec1 := TransformSpec{AspectRatio: "2:3", LongSide: 1536, Format: "avif", Quality: 80, Speed: 4}
	spec2 := TransformSpec{AspectRatio: "2:3", LongSide: 1024, Format: "avif", Quality: 80, Speed: 4}

	k1 := Key("deadbeef", spec1)
	k2 := Key("deadbeef", spec2)
	if k1 == k2 {
		t.Error("expected different long side to change the cache key")
	}
	if !strings.HasPrefix(k1, "deadbeef_") {
		t.Errorf("expected key to start with source hash, got %s", k1)
	}
}
