package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := store.Put(context.Background(), "feedback", []byte(`[1]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(context.Background(), "feedback", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, err := store.Get(context.Background(), "feedback")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("unexpected document %s", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "feedback.json" {
		t.Fatalf("expected only feedback.json, got %v", entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "feedback.json")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	store, _ := New(t.TempDir())
	_, err := store.Get(context.Background(), "blocklist")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectsPathKeys(t *testing.T) {
	store, _ := New(t.TempDir())
	if err := store.Put(context.Background(), "../escape", []byte("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
