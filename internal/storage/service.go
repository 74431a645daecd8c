package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/kv"
	"github.com/avdeev/notevault/internal/models"
	"github.com/avdeev/notevault/internal/prefs"
)

// Storage modes. ModeFlat pins the flat key-value backend regardless of
// the directory preference; ModeFiles selects between the app tree and a
// granted external directory.
const (
	ModeFiles = "files"
	ModeFlat  = "flat"
)

const labelFlatStorage = "Key-Value Storage"

// Options configures a Service.
type Options struct {
	Mode     string
	AppRoot  string
	Mounts   *MountTable
	Prefs    *prefs.Store
	KV       kv.Store
	Picker   Picker
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Service is the single process-wide storage abstraction: it selects the
// backend for each call, consults the cache on reads, and invalidates the
// whole cache on every mutation or backend switch.
//
// Construction follows a fixed order: the directory preference is loaded
// first, the matching backend is resolved, and only then is the service
// ready for callers.
type Service struct {
	mode   string
	app    *AppFS
	flat   *FlatKV
	mounts *MountTable
	prefs  *prefs.Store
	cache  *Cache
	picker Picker
	logger *slog.Logger

	// backendChanged carries one coalesced signal per backend switch for
	// the watcher supervisor.
	backendChanged chan struct{}

	mu     sync.Mutex
	custom *DocFS // non-nil while an external directory is active
}

// NewService builds the service and resolves the persisted backend.
func NewService(ctx context.Context, o Options) (*Service, error) {
	if o.Prefs == nil {
		return nil, fmt.Errorf("storage: preference store is required")
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		mode:           o.Mode,
		mounts:         o.Mounts,
		prefs:          o.Prefs,
		cache:          NewCache(o.CacheTTL),
		picker:         o.Picker,
		logger:         logger,
		backendChanged: make(chan struct{}, 1),
	}

	switch o.Mode {
	case ModeFlat:
		if o.KV == nil {
			return nil, fmt.Errorf("storage: flat mode requires a key-value store")
		}
		s.flat = NewFlatKV(o.KV, logger)
	case ModeFiles:
		app, err := NewAppFS(o.AppRoot, logger)
		if err != nil {
			return nil, err
		}
		s.app = app
		if handle := o.Prefs.Directory(ctx); handle != "" {
			if o.Mounts == nil {
				logger.Warn("storage: directory preference set but no mounts granted, using app storage",
					slog.String("handle", handle))
			} else {
				s.custom = NewDocFS(o.Mounts, handle, logger)
			}
		}
	default:
		return nil, fmt.Errorf("storage: unknown mode %q", o.Mode)
	}

	return s, nil
}

// Backend resolves the active backend for the current call: flat mode
// always wins, then a non-empty directory preference, then app storage.
func (s *Service) Backend() Backend {
	if s.mode == ModeFlat {
		return s.flat
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.custom != nil {
		return s.custom
	}
	return s.app
}

// ListDirectory returns one level of the hierarchy, served from cache
// while the validity window is open.
func (s *Service) ListDirectory(ctx context.Context, dirPath string) (*models.DirectoryContents, error) {
	b := s.Backend()
	key := dirPath
	if key == "" {
		key = b.Root()
	}
	if dc, ok := s.cache.Listing(key); ok {
		return dc, nil
	}
	dc, err := b.ListDirectory(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	s.cache.PutListing(key, dc)
	return dc, nil
}

// ListFolders returns only the navigable subdirectories of dirPath, for
// folder-chooser surfaces that need no note previews. Served through the
// same listing cache.
func (s *Service) ListFolders(ctx context.Context, dirPath string) ([]models.FolderItem, error) {
	dc, err := s.ListDirectory(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	return dc.Folders, nil
}

// OpenDirectory navigates into a directory locator.
func (s *Service) OpenDirectory(ctx context.Context, dirPath string) (*models.DirectoryContents, error) {
	return s.ListDirectory(ctx, dirPath)
}

// OpenParent navigates one level up from current; at the root it stays at
// the root.
func (s *Service) OpenParent(ctx context.Context, current string) (*models.DirectoryContents, error) {
	b := s.Backend()
	parent, ok := ParentPath(current, b.Root())
	if !ok {
		return s.ListDirectory(ctx, "")
	}
	return s.ListDirectory(ctx, parent)
}

// OpenRoot navigates to the backend root.
func (s *Service) OpenRoot(ctx context.Context) (*models.DirectoryContents, error) {
	return s.ListDirectory(ctx, "")
}

// ReadNote loads a note, served from cache while the validity window is
// open.
func (s *Service) ReadNote(ctx context.Context, filename, folderPath string) (*models.Note, error) {
	b := s.Backend()
	folder := folderPath
	if folder == "" {
		folder = b.Root()
	}
	if n, ok := s.cache.Note(filename, folder); ok {
		return n, nil
	}
	n, err := b.ReadNote(ctx, filename, folderPath)
	if err != nil {
		return nil, err
	}
	s.cache.PutNote(filename, folder, n)
	return n, nil
}

// WriteNote persists a note and clears the cache before returning, so no
// later read can observe pre-mutation data. A non-empty ifMatch checksum
// must equal the current content's checksum or the write fails with
// apperr.ErrConflict. The persisted note is read back and returned.
func (s *Service) WriteNote(ctx context.Context, note models.Note, previousFilename, folderPath, ifMatch string) (*models.Note, error) {
	b := s.Backend()

	if ifMatch != "" {
		existingName := note.Filename
		if previousFilename != "" {
			existingName = previousFilename
		}
		existing, err := b.ReadNote(ctx, existingName, folderPath)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			// Nothing to conflict with.
		case err != nil:
			return nil, err
		case existing.Checksum != ifMatch:
			return nil, fmt.Errorf("storage: write %s: %w", note.Filename, apperr.ErrConflict)
		}
	}

	if err := b.WriteNote(ctx, note, previousFilename, folderPath); err != nil {
		return nil, err
	}
	s.cache.InvalidateAll()
	return b.ReadNote(ctx, note.Filename, folderPath)
}

// DeleteNote removes a note and clears the cache before returning.
func (s *Service) DeleteNote(ctx context.Context, filename, folderPath string) error {
	if err := s.Backend().DeleteNote(ctx, filename, folderPath); err != nil {
		return err
	}
	s.cache.InvalidateAll()
	return nil
}

// StorageInfo describes the active backend for display.
func (s *Service) StorageInfo() models.StorageInfo {
	b := s.Backend()
	info := models.StorageInfo{Backend: string(b.Kind()), Root: b.Root()}
	if b.Kind() == KindFlat {
		info.Location = labelFlatStorage
	} else {
		info.Location = HumanReadableLocation(b.Root())
	}
	return info
}

// SetCustomDirectory persists handle as the active external directory and
// switches the backend to it. The cache is cleared as part of the switch.
func (s *Service) SetCustomDirectory(ctx context.Context, handle string) error {
	if s.mode == ModeFlat {
		return fmt.Errorf("storage: flat mode has no directory preference")
	}
	if s.mounts == nil {
		return fmt.Errorf("storage: no mounts granted: %w", apperr.ErrPermissionDenied)
	}
	if _, err := s.mounts.Resolve(handle); err != nil {
		return err
	}
	if err := s.prefs.SetDirectory(ctx, handle); err != nil {
		return err
	}
	s.mu.Lock()
	s.custom = NewDocFS(s.mounts, handle, s.logger)
	s.mu.Unlock()
	s.cache.InvalidateAll()
	s.notifyBackendChanged()
	return nil
}

// ResetToDefault clears the directory preference and reverts to the
// app-private storage.
func (s *Service) ResetToDefault(ctx context.Context) error {
	if s.mode == ModeFlat {
		return nil
	}
	if err := s.prefs.ClearDirectory(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.custom = nil
	s.mu.Unlock()
	s.cache.InvalidateAll()
	s.notifyBackendChanged()
	return nil
}

// PickExternalDirectory invokes the folder picker. Cancellation and picker
// failures leave the previous preference untouched and report picked=false;
// "no folder selected" is not an error.
func (s *Service) PickExternalDirectory(ctx context.Context, request string) (picked bool, err error) {
	if s.picker == nil {
		return false, nil
	}
	handle, ok, err := s.picker.Pick(ctx, request)
	if err != nil {
		s.logger.Warn("storage: folder picker failed", slog.String("error", err.Error()))
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if err := s.SetCustomDirectory(ctx, handle); err != nil {
		return false, err
	}
	return true, nil
}

// UserPreferences loads the display preferences (defaults on failure).
func (s *Service) UserPreferences(ctx context.Context) models.UserPreferences {
	return s.prefs.UserPreferences(ctx)
}

// SetShowTimestamps updates the show-timestamps preference.
func (s *Service) SetShowTimestamps(ctx context.Context, show bool) error {
	p := s.prefs.UserPreferences(ctx)
	p.ShowTimestamps = show
	return s.prefs.SaveUserPreferences(ctx, p)
}

// SetWelcomeCompleted updates the onboarding preference.
func (s *Service) SetWelcomeCompleted(ctx context.Context, done bool) error {
	p := s.prefs.UserPreferences(ctx)
	p.WelcomeCompleted = done
	return s.prefs.SaveUserPreferences(ctx, p)
}

// BackendChanged signals after every backend switch. Signals are
// coalesced: a receiver that missed several switches sees one.
func (s *Service) BackendChanged() <-chan struct{} {
	return s.backendChanged
}

func (s *Service) notifyBackendChanged() {
	select {
	case s.backendChanged <- struct{}{}:
	default:
	}
}

// InvalidateCache clears every cached listing and note body. The watcher
// calls this when the backing directory changes underneath the service.
func (s *Service) InvalidateCache() {
	s.cache.InvalidateAll()
}

// ActiveDir resolves the local directory behind the active backend, for
// the external-change watcher. ok is false in flat mode or when the
// granted handle cannot be resolved.
func (s *Service) ActiveDir() (dir string, ok bool) {
	b := s.Backend()
	switch b.Kind() {
	case KindFlat:
		return "", false
	case KindCustom:
		abs, err := s.mounts.Resolve(b.Root())
		if err != nil {
			s.logger.Warn("storage: active handle unresolvable",
				slog.String("error", err.Error()))
			return "", false
		}
		return abs, true
	default:
		return b.Root(), true
	}
}
