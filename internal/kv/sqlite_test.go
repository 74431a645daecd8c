package kv

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/avdeev/notevault/internal/apperr"
)

func tempStore(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "notevault-kv-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("value = %q, want v1", got)
	}
}

func TestSetReplaces(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v1"))
	if err := s.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ := s.Get(ctx, "k")
	if string(got) != "v2" {
		t.Errorf("value = %q, want v2", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := tempStore(t)
	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"))
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is a no-op.
	if err := s.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}
