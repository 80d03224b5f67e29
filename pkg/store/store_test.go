package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	if _, err := s.Get(ctx, "apiKey"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "apiKey", "abc"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(ctx, "apiKey")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("value = %q, want %q", got, "abc")
	}

	if err := s.Set(ctx, "apiKey", "def"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if got, _ := s.Get(ctx, "apiKey"); got != "def" {
		t.Fatalf("value after overwrite = %q, want %q", got, "def")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "data", "pagelens.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.Get(ctx, "selectedModel"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "selectedModel", "gemini-2.5-flash_v1"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(ctx, "selectedModel")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "gemini-2.5-flash_v1" {
		t.Fatalf("value = %q, want %q", got, "gemini-2.5-flash_v1")
	}

	if err := s.Set(ctx, "selectedModel", "gemini-2.5-pro_v1"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if got, _ := s.Get(ctx, "selectedModel"); got != "gemini-2.5-pro_v1" {
		t.Fatalf("value after upsert = %q, want %q", got, "gemini-2.5-pro_v1")
	}
}
