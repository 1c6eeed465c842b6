package cards

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_AddAssignsStableIDs(t *testing.T) {
	reg := newRegistry()
	reg.add(Card{SourcePath: "a.jpg"})
	reg.add(Card{SourcePath: "b.jpg"})

	if reg.Len() != 2 {
		t.Fatalf("expected 2 cards, got %d", reg.Len())
	}
	ids := reg.IDs()
	if ids[0] != "c0" || ids[1] != "c1" {
		t.Errorf("expected sequential ids c0,c1, got %v", ids)
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := newRegistry()
	reg.add(Card{SourcePath: "a.jpg", MIME: "image/jpeg"})

	c, ok := reg.Get("c0")
	if !ok {
		t.Fatal("expected card c0 to exist")
	}
	if c.SourcePath != "a.jpg" {
		t.Errorf("unexpected source path %s", c.SourcePath)
	}

	if _, ok := reg.Get("does-not-exist"); ok {
		t.Error("expected lookup miss for unknown id")
	}
}

func TestRegistry_Bytes(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "art.jpg")
	if err := os.WriteFile(artifact, []byte("card bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := newRegistry()
	reg.add(Card{ArtifactPath: artifact, MIME: "image/jpeg"})

	data, mime, err := reg.Bytes("c0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "card bytes" {
		t.Errorf("unexpected bytes %q", data)
	}
	if mime != "image/jpeg" {
		t.Errorf("unexpected mime %q", mime)
	}
}

func TestRegistry_BytesUnknownID(t *testing.T) {
	reg := newRegistry()
	if _, _, err := reg.Bytes("nope"); err == nil {
		t.Error("expected error for unknown card id")
	}
}

func TestRegistry_ImplementsRegistrar(t *testing.T) {
	var _ Registrar = (*Registry)(nil)
}
