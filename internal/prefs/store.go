// Package prefs persists the two process settings: the chosen external
// directory handle and the user display preferences.
//
// Every underlying persistence call is raced against a timer; if the timer
// fires first the call fails with apperr.ErrTimeout instead of hanging the
// caller. Load failures are absorbed: the caller always gets a usable
// value (empty handle, default preferences) and the failure is logged.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/kv"
	"github.com/avdeev/notevault/internal/models"
)

// Persisted keys.
const (
	keyDirectory = "storage.directory"
	keyUserPrefs = "user.prefs"
)

// DefaultTimeout bounds every underlying persistence call.
const DefaultTimeout = 5 * time.Second

// Store wraps a kv.Store with deadlines and caches the directory
// preference after its first load.
type Store struct {
	kv      kv.Store
	timeout time.Duration
	logger  *slog.Logger

	// Directory preference cache. Guarded by mu; once loaded is set the
	// value is served from memory for the life of the process, and the
	// only transitions are direct updates via SetDirectory/ClearDirectory.
	mu        sync.Mutex
	loaded    bool
	directory string
}

// NewStore creates a preference store. A timeout <= 0 selects
// DefaultTimeout.
func NewStore(store kv.Store, timeout time.Duration, logger *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: store, timeout: timeout, logger: logger}
}

// Get reads key from the underlying store under the deadline.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return guard(ctx, s.timeout, func(ctx context.Context) ([]byte, error) {
		return s.kv.Get(ctx, key)
	})
}

// Set writes key under the deadline.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := guard(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.kv.Set(ctx, key, value)
	})
	return err
}

// Remove deletes key under the deadline.
func (s *Store) Remove(ctx context.Context, key string) error {
	_, err := guard(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.kv.Delete(ctx, key)
	})
	return err
}

// Directory returns the persisted external-directory handle, or "" when
// the default app storage is active.
//
// The preference is loaded at most once per process; concurrent callers
// during the first load block until it resolves instead of issuing
// duplicate loads. Load failures resolve to "" with a warning; the only
// way back to an unloaded state is process restart.
func (s *Store) Directory(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.directory
	}

	value, err := s.Get(ctx, keyDirectory)
	switch {
	case err == nil:
		s.directory = string(value)
	case errors.Is(err, apperr.ErrNotFound):
		// No preference stored: default app storage.
	default:
		s.logger.Warn("prefs: directory load failed, using default storage",
			slog.String("error", err.Error()))
	}
	s.loaded = true
	return s.directory
}

// SetDirectory persists handle as the directory preference and updates the
// resolved value directly.
func (s *Store) SetDirectory(ctx context.Context, handle string) error {
	if err := s.Set(ctx, keyDirectory, []byte(handle)); err != nil {
		return fmt.Errorf("prefs: set directory: %w", err)
	}
	s.mu.Lock()
	s.directory = handle
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// ClearDirectory removes the directory preference, reverting to the
// default app storage.
func (s *Store) ClearDirectory(ctx context.Context) error {
	if err := s.Remove(ctx, keyDirectory); err != nil {
		return fmt.Errorf("prefs: clear directory: %w", err)
	}
	s.mu.Lock()
	s.directory = ""
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// UserPreferences loads the display preferences, merging the persisted
// payload over the defaults so absent fields degrade gracefully. Failures
// are absorbed into the defaults.
func (s *Store) UserPreferences(ctx context.Context) models.UserPreferences {
	defaults := models.DefaultUserPreferences()

	value, err := s.Get(ctx, keyUserPrefs)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("prefs: user preferences load failed, using defaults",
				slog.String("error", err.Error()))
		}
		return defaults
	}

	merged, err := mergeUserPreferences(defaults, value)
	if err != nil {
		s.logger.Warn("prefs: user preferences unparseable, using defaults",
			slog.String("error", err.Error()))
		return defaults
	}
	return merged
}

// SaveUserPreferences persists the full preference record.
func (s *Store) SaveUserPreferences(ctx context.Context, p models.UserPreferences) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode user preferences: %w", err)
	}
	if err := s.Set(ctx, keyUserPrefs, payload); err != nil {
		return fmt.Errorf("prefs: save user preferences: %w", err)
	}
	return nil
}

// mergeUserPreferences applies the fields present in payload over base.
// Fields absent from the payload keep their defaults, so records written
// by older versions remain loadable.
func mergeUserPreferences(base models.UserPreferences, payload []byte) (models.UserPreferences, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return base, fmt.Errorf("%w: %s", apperr.ErrMalformed, err)
	}
	if raw, ok := fields["show_timestamps"]; ok {
		if err := json.Unmarshal(raw, &base.ShowTimestamps); err != nil {
			return base, fmt.Errorf("%w: show_timestamps: %s", apperr.ErrMalformed, err)
		}
	}
	if raw, ok := fields["welcome_completed"]; ok {
		if err := json.Unmarshal(raw, &base.WelcomeCompleted); err != nil {
			return base, fmt.Errorf("%w: welcome_completed: %s", apperr.ErrMalformed, err)
		}
	}
	return base, nil
}

// guard runs fn with a deadline and maps the deadline firing to
// apperr.ErrTimeout. fn keeps running in its goroutine after a timeout;
// its result is discarded.
func guard[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		return zero, apperr.ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
