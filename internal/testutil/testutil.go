// Package testutil provides shared test helpers for setting up key-value
// stores and preference stores.
package testutil

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/avdeev/notevault/internal/kv"
	"github.com/avdeev/notevault/internal/prefs"
)

// TestKV creates a temporary SQLite key-value store that is automatically
// cleaned up.
func TestKV(t *testing.T) *kv.SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "notevault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	store, err := kv.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestPrefs creates a preference store over a temporary key-value store.
func TestPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	return prefs.NewStore(TestKV(t), time.Second, slog.Default())
}
