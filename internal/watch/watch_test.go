package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu          sync.Mutex
	events      []string
	invalidated int
}

func (r *recorder) invalidate() {
	r.mu.Lock()
	r.invalidated++
	r.mu.Unlock()
}

func (r *recorder) handle(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *recorder) invalidations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalidated
}

func startWatch(t *testing.T) (string, *recorder) {
	t.Helper()
	root := t.TempDir()
	rec := &recorder{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Watch(ctx, root, logger, rec.invalidate, rec.handle)

	time.Sleep(100 * time.Millisecond)
	return root, rec
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatchReportsNewNote(t *testing.T) {
	root, rec := startWatch(t)

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:new.md")
	}, "expected created:new.md notification")

	if rec.invalidations() == 0 {
		t.Error("cache should have been invalidated")
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	root, rec := startWatch(t)

	_ = os.WriteFile(filepath.Join(root, "image.png"), []byte("x"), 0o644)

	time.Sleep(300 * time.Millisecond)
	if n := rec.invalidations(); n != 0 {
		t.Errorf("non-note file triggered %d invalidations", n)
	}
}

func TestWatchReportsDelete(t *testing.T) {
	root, rec := startWatch(t)

	path := filepath.Join(root, "del.md")
	_ = os.WriteFile(path, []byte("# Delete Me"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:del.md")
	}, "precondition: create not observed")

	_ = os.Remove(path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:del.md")
	}, "expected deleted:del.md notification")
}

func TestWatchNewDirIsWatched(t *testing.T) {
	root, rec := startWatch(t)

	subDir := filepath.Join(root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)

	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:" + filepath.Join("subdir", "deep.md"))
	}, "note in new subdir not observed")
}

func TestSuperviseFollowsDirectoryChange(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	rec := &recorder{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	var mu sync.Mutex
	active := dirA
	resolve := func() (string, bool) {
		mu.Lock()
		defer mu.Unlock()
		return active, true
	}
	changed := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Supervise(ctx, resolve, changed, logger, rec.invalidate, rec.handle)

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dirA, "first.md"), []byte("# A"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:first.md")
	}, "note in the initial directory not observed")

	mu.Lock()
	active = dirB
	mu.Unlock()
	changed <- struct{}{}

	// The restarted watcher must observe the new directory...
	time.Sleep(200 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dirB, "second.md"), []byte("# B"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:second.md")
	}, "note in the switched-to directory not observed")

	// ...and must no longer observe the old one.
	_ = os.WriteFile(filepath.Join(dirA, "stale.md"), []byte("# Stale"), 0o644)
	time.Sleep(400 * time.Millisecond)
	if rec.has("created:stale.md") {
		t.Error("old directory still watched after the switch")
	}
}

func TestWatchRenameEmitsRefresh(t *testing.T) {
	root, rec := startWatch(t)

	old := filepath.Join(root, "old.md")
	_ = os.WriteFile(old, []byte("# Rename"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:old.md")
	}, "precondition: create not observed")

	_ = os.Rename(old, filepath.Join(root, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:old.md") && rec.has("refresh:")
	}, "rename should report old path deleted and a refresh")
}
