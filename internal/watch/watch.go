// Package watch observes the active storage directory for changes made
// outside the service (another app writing into a granted folder, a file
// manager, a sync client) and turns them into cache invalidations and
// change notifications.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives watcher-driven change notifications.
// kind is one of "created", "updated", "deleted", "refresh"; path is
// relative to the watched root ("" for refresh).
type Handler func(kind, path string)

// settleDelay coalesces the event burst a rename or bulk copy produces
// into one refresh notification.
const settleDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on root and processes file change
// events until ctx is cancelled. Before every notification it calls
// invalidate (if non-nil) so stale cached listings can never outlive the
// on-disk change, then calls h (if non-nil).
//
// New directories created at runtime are added to the watch list, and any
// note files already inside them are reported as created. Rename events
// arrive on the old path only; the old path is reported deleted and a
// debounced "refresh" follows so consumers can re-list for the new name.
func Watch(ctx context.Context, root string, logger *slog.Logger, invalidate func(), h Handler) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if invalidate != nil {
			invalidate()
		}
		if h != nil {
			h(kind, path)
		}
	}

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleRefresh := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			logger.Debug("watcher: refresh after rename burst")
			notify("refresh", "")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					reportExistingNotes(root, absPath, logger, notify)
					continue
				}
			}

			// Only note files matter from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				logger.Debug("watcher: created", slog.String("path", rel))
				notify("created", rel)

			case ev.Op&fsnotify.Write != 0:
				logger.Debug("watcher: updated", slog.String("path", rel))
				notify("updated", rel)

			case ev.Op&fsnotify.Remove != 0:
				logger.Debug("watcher: deleted", slog.String("path", rel))
				notify("deleted", rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new path
				// arrives as a separate Create event if it stays inside a
				// watched dir; the debounced refresh covers the case where
				// it does not.
				logger.Debug("watcher: rename old path gone", slog.String("path", rel))
				notify("deleted", rel)
				scheduleRefresh()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// Supervise runs Watch on whatever directory resolve reports and restarts
// it on every changed signal, so a runtime backend switch moves the
// watcher to the new active directory. When resolve reports no watchable
// directory the supervisor idles until the next signal.
func Supervise(ctx context.Context, resolve func() (dir string, ok bool), changed <-chan struct{}, logger *slog.Logger, invalidate func(), h Handler) error {
	for {
		dir, ok := resolve()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
			}
			continue
		}

		wCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := Watch(wCtx, dir, logger, invalidate, h); err != nil {
				logger.Warn("watcher: failed",
					slog.String("root", dir), slog.String("error", err.Error()))
			}
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case <-changed:
			logger.Info("watcher: active directory changed, restarting")
			cancel()
			<-done
		}
	}
}

// reportExistingNotes reports note files already present in a newly
// created directory, which fsnotify never saw individually.
func reportExistingNotes(root, dirPath string, logger *slog.Logger, notify func(kind, path string)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		logger.Debug("watcher: found note in new dir", slog.String("path", rel))
		notify("created", rel)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
