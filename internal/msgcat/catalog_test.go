package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedRelayErrors(t *testing.T) {
	c := MustDefault()
	for key, want := range map[string]string{
		"relay.error.room_not_found": "Sala não encontrada",
		"relay.error.room_full":      "Sala cheia",
	} {
		got, err := c.Render(key, nil)
		if err != nil {
			t.Fatalf("Render %s: %v", key, err)
		}
		if got != want {
			t.Fatalf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestRenderMissingFieldIsError(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("client.room_created", map[string]any{}); err == nil {
		t.Fatalf("expected missingkey error")
	}
	got := c.Text("client.room_created", map[string]any{"Code": "ABC123"})
	if !strings.Contains(got, "ABC123") {
		t.Fatalf("unexpected text %q", got)
	}
	if c.Text("nope.nothing", nil) != "nope.nothing" {
		t.Fatalf("unknown key should fall back to itself")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("relay:\n  banner: \"oi\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("relay.banner", nil); got != "oi" {
		t.Fatalf("override not applied: %q", got)
	}
	if !c.Has("relay.error.room_full") {
		t.Fatalf("defaults lost after override")
	}
}

func TestOverrideDirDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("relay:\n  banner: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}
