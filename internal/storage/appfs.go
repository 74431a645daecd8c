package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/models"
)

// listConcurrency bounds the fan-out of per-entry reads during a listing.
const listConcurrency = 8

// AppFS serves notes from the app-private directory tree. Locators are
// absolute filesystem paths under the root.
type AppFS struct {
	root   string
	logger *slog.Logger
}

// NewAppFS creates the app backend rooted at dir, creating the root on
// first use if absent.
func NewAppFS(dir string, logger *slog.Logger) (*AppFS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve app root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create app root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AppFS{root: abs, logger: logger}, nil
}

func (a *AppFS) Kind() Kind   { return KindApp }
func (a *AppFS) Root() string { return a.root }

// safePath resolves a locator against the root and rejects any result
// that escapes it.
func (a *AppFS) safePath(locator string) (string, error) {
	if locator == "" {
		return a.root, nil
	}
	cleaned := filepath.Clean(locator)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(a.root, cleaned)
	}
	if cleaned != a.root && !strings.HasPrefix(cleaned, a.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes app root: %s: %w", locator, apperr.ErrPermissionDenied)
	}
	return cleaned, nil
}

// ListDirectory enumerates one level of dirPath.
func (a *AppFS) ListDirectory(ctx context.Context, dirPath string) (*models.DirectoryContents, error) {
	abs, err := a.safePath(dirPath)
	if err != nil {
		return nil, err
	}
	folders, notes, err := collectDir(ctx, abs, a.logger, func(name string) string {
		return filepath.Join(abs, name)
	})
	if err != nil {
		return nil, err
	}
	dc := &models.DirectoryContents{
		Folders:     folders,
		Notes:       notes,
		CurrentPath: abs,
	}
	if parent, ok := ParentPath(abs, a.root); ok {
		dc.ParentPath = &parent
	}
	return dc, nil
}

// ListFolders returns the navigable subdirectories of dirPath.
func (a *AppFS) ListFolders(ctx context.Context, dirPath string) ([]models.FolderItem, error) {
	dc, err := a.ListDirectory(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	return dc.Folders, nil
}

// ReadNote loads filename from folderPath (root when empty).
func (a *AppFS) ReadNote(_ context.Context, filename, folderPath string) (*models.Note, error) {
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	dir, err := a.safePath(folderPath)
	if err != nil {
		return nil, err
	}
	return readNoteFile(filepath.Join(dir, filename+NoteExt), filename)
}

// WriteNote persists note content, deleting the previous entry first when
// the note was renamed.
func (a *AppFS) WriteNote(_ context.Context, note models.Note, previousFilename, folderPath string) error {
	if err := checkFilename(note.Filename); err != nil {
		return err
	}
	if previousFilename != "" {
		if err := checkFilename(previousFilename); err != nil {
			return err
		}
	}
	dir, err := a.safePath(folderPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if previousFilename != "" && previousFilename != note.Filename {
		old := filepath.Join(dir, previousFilename+NoteExt)
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			// The rename is not atomic: the new content must still land
			// even when the old entry cannot be removed.
			a.logger.Warn("storage: rename could not delete old note",
				slog.String("path", old), slog.String("error", err.Error()))
		}
	}
	return writeFileAtomic(filepath.Join(dir, note.Filename+NoteExt), []byte(note.Content))
}

// DeleteNote removes filename from folderPath.
func (a *AppFS) DeleteNote(_ context.Context, filename, folderPath string) error {
	if err := checkFilename(filename); err != nil {
		return err
	}
	dir, err := a.safePath(folderPath)
	if err != nil {
		return err
	}
	target := filepath.Join(dir, filename+NoteExt)
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", filename, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", filename, err)
	}
	return nil
}

// collectDir partitions one directory level into folders and note
// previews. Per-entry reads fan out concurrently and entries that
// individually fail are dropped from the result rather than aborting the
// listing.
func collectDir(ctx context.Context, absDir string, logger *slog.Logger, locatorFor func(name string) string) ([]models.FolderItem, []models.NotePreview, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("storage: list %s: %w", absDir, apperr.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("storage: list %s: %w", absDir, err)
	}

	folders := make([]models.FolderItem, 0)
	var mdNames []string
	for _, e := range entries {
		if e.IsDir() {
			info, infoErr := e.Info()
			if infoErr != nil {
				logger.Warn("storage: listing dropped folder",
					slog.String("name", e.Name()), slog.String("error", infoErr.Error()))
				continue
			}
			folders = append(folders, models.FolderItem{
				Name:      e.Name(),
				Path:      locatorFor(e.Name()),
				CreatedAt: info.ModTime(),
				UpdatedAt: info.ModTime(),
			})
			continue
		}
		if strings.HasSuffix(e.Name(), NoteExt) {
			mdNames = append(mdNames, e.Name())
		}
	}

	// Fan-out/fan-in: the listing latency is bounded by the slowest
	// single file, and one bad entry never cancels its siblings.
	results := make([]*models.NotePreview, len(mdNames))
	var g errgroup.Group
	g.SetLimit(listConcurrency)
	for i, name := range mdNames {
		g.Go(func() error {
			filename := strings.TrimSuffix(name, NoteExt)
			note, readErr := readNoteFile(filepath.Join(absDir, name), filename)
			if readErr != nil {
				logger.Warn("storage: listing dropped note",
					slog.String("name", name), slog.String("error", readErr.Error()))
				return nil
			}
			note.FilePath = locatorFor(name)
			p := note.Preview()
			results[i] = &p
			return nil
		})
	}
	_ = g.Wait()

	notes := make([]models.NotePreview, 0, len(results))
	for _, p := range results {
		if p != nil {
			notes = append(notes, *p)
		}
	}

	sortListing(folders, notes)
	return folders, notes, nil
}

// sortListing applies the fixed listing order: folders by case-insensitive
// name ascending, notes by modification time descending.
func sortListing(folders []models.FolderItem, notes []models.NotePreview) {
	sort.Slice(folders, func(i, j int) bool {
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
}

// readNoteFile loads a single note from disk.
func readNoteFile(absPath, filename string) (*models.Note, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", filename, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", filename, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", filename, err)
	}
	// Creation time is not portable across filesystems; the modification
	// stamp stands in for both.
	return &models.Note{
		Filename:  filename,
		Content:   string(data),
		Checksum:  checksum(data),
		CreatedAt: info.ModTime(),
		UpdatedAt: info.ModTime(),
		FilePath:  absPath,
	}, nil
}

// writeFileAtomic writes content via tmp file → fsync → rename.
func writeFileAtomic(absPath string, content []byte) error {
	dir := filepath.Dir(absPath)
	tmp, err := os.CreateTemp(dir, ".notevault-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
