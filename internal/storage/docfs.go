package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/models"
)

// MountTable holds the directory grants the process may reach through
// permission-scoped handles: one authority and a set of named storage
// volumes mapped to local directories. Handles addressing anything outside
// the table fail with apperr.ErrPermissionDenied.
type MountTable struct {
	authority string
	mounts    map[string]string // storage volume name -> absolute directory
}

// NewMountTable builds a grant table. Mount targets are made absolute.
func NewMountTable(authority string, mounts map[string]string) (*MountTable, error) {
	if authority == "" {
		return nil, fmt.Errorf("storage: mount table requires an authority")
	}
	resolved := make(map[string]string, len(mounts))
	for name, dir := range mounts {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("storage: resolve mount %s: %w", name, err)
		}
		resolved[name] = abs
	}
	return &MountTable{authority: authority, mounts: resolved}, nil
}

// Resolve maps a handle to the local directory it addresses.
func (m *MountTable) Resolve(handle string) (string, error) {
	authority, segment, subdirs, ok := handleParts(handle)
	if !ok {
		return "", fmt.Errorf("storage: handle %q: %w", handle, apperr.ErrMalformed)
	}
	if authority != m.authority {
		return "", fmt.Errorf("storage: authority %q not granted: %w", authority, apperr.ErrPermissionDenied)
	}
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("storage: handle %q: %w", handle, apperr.ErrMalformed)
	}
	volume, rel, _ := strings.Cut(decoded, ":")
	mount, granted := m.mounts[volume]
	if !granted {
		return "", fmt.Errorf("storage: volume %q not granted: %w", volume, apperr.ErrPermissionDenied)
	}

	abs := filepath.Join(mount, filepath.FromSlash(rel))
	for _, sub := range subdirs {
		name, subErr := url.PathUnescape(sub)
		if subErr != nil {
			return "", fmt.Errorf("storage: handle %q: %w", handle, apperr.ErrMalformed)
		}
		abs = filepath.Join(abs, name)
	}
	// Joined segments may not climb back out of the granted mount.
	if abs != mount && !strings.HasPrefix(abs, mount+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: handle escapes grant %q: %w", volume, apperr.ErrPermissionDenied)
	}
	return abs, nil
}

// HandleFor mints the tree handle for a local directory, if it lies under
// one of the granted mounts.
func (m *MountTable) HandleFor(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for volume, mount := range m.mounts {
		var rel string
		switch {
		case abs == mount:
			rel = ""
		case strings.HasPrefix(abs, mount+string(os.PathSeparator)):
			rel = filepath.ToSlash(strings.TrimPrefix(abs, mount+string(os.PathSeparator)))
		default:
			continue
		}
		segment := url.PathEscape(volume + ":" + rel)
		return handleScheme + m.authority + "/tree/" + segment, true
	}
	return "", false
}

// DocFS serves notes from a user-granted external directory addressed by
// permission-scoped handles. Unlike the app backend, target directories
// must already exist: nothing is implicitly created under a granted tree.
type DocFS struct {
	mounts *MountTable
	root   string // root tree handle
	logger *slog.Logger
}

// NewDocFS creates the custom backend for the granted root handle. The
// handle is not resolved here; a revoked or ungranted handle surfaces as
// apperr.ErrPermissionDenied on the first operation.
func NewDocFS(mounts *MountTable, rootHandle string, logger *slog.Logger) *DocFS {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocFS{mounts: mounts, root: rootHandle, logger: logger}
}

func (d *DocFS) Kind() Kind   { return KindCustom }
func (d *DocFS) Root() string { return d.root }

// dirHandle normalises a folder locator: empty means the root handle.
func (d *DocFS) dirHandle(folderPath string) string {
	if folderPath == "" {
		return d.root
	}
	return folderPath
}

// ListDirectory enumerates one level below the handle.
func (d *DocFS) ListDirectory(ctx context.Context, dirPath string) (*models.DirectoryContents, error) {
	handle := d.dirHandle(dirPath)
	abs, err := d.mounts.Resolve(handle)
	if err != nil {
		return nil, err
	}
	folders, notes, err := collectDir(ctx, abs, d.logger, func(name string) string {
		return childHandle(handle, name)
	})
	if err != nil {
		return nil, err
	}
	dc := &models.DirectoryContents{
		Folders:     folders,
		Notes:       notes,
		CurrentPath: handle,
	}
	if parent, ok := ParentPath(handle, d.root); ok {
		dc.ParentPath = &parent
	}
	return dc, nil
}

// ListFolders returns the navigable subdirectories below the handle.
func (d *DocFS) ListFolders(ctx context.Context, dirPath string) ([]models.FolderItem, error) {
	dc, err := d.ListDirectory(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	return dc.Folders, nil
}

// ReadNote loads filename from the handle-addressed directory.
func (d *DocFS) ReadNote(_ context.Context, filename, folderPath string) (*models.Note, error) {
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	handle := d.dirHandle(folderPath)
	abs, err := d.mounts.Resolve(handle)
	if err != nil {
		return nil, err
	}
	note, err := readNoteFile(filepath.Join(abs, filename+NoteExt), filename)
	if err != nil {
		return nil, err
	}
	note.FilePath = childHandle(handle, filename+NoteExt)
	return note, nil
}

// WriteNote persists note content under the handle-addressed directory,
// which must already exist.
func (d *DocFS) WriteNote(_ context.Context, note models.Note, previousFilename, folderPath string) error {
	if err := checkFilename(note.Filename); err != nil {
		return err
	}
	if previousFilename != "" {
		if err := checkFilename(previousFilename); err != nil {
			return err
		}
	}
	abs, err := d.mounts.Resolve(d.dirHandle(folderPath))
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: directory %s: %w", folderPath, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: stat %s: %w", folderPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: %s is not a directory", folderPath)
	}

	if previousFilename != "" && previousFilename != note.Filename {
		old := filepath.Join(abs, previousFilename+NoteExt)
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("storage: rename could not delete old note",
				slog.String("path", old), slog.String("error", err.Error()))
		}
	}
	return writeFileAtomic(filepath.Join(abs, note.Filename+NoteExt), []byte(note.Content))
}

// DeleteNote removes filename from the handle-addressed directory.
func (d *DocFS) DeleteNote(_ context.Context, filename, folderPath string) error {
	if err := checkFilename(filename); err != nil {
		return err
	}
	abs, err := d.mounts.Resolve(d.dirHandle(folderPath))
	if err != nil {
		return err
	}
	target := filepath.Join(abs, filename+NoteExt)
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", filename, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", filename, err)
	}
	return nil
}
