// Package storage makes heterogeneous note backends (an app-private file
// tree, permission-scoped external directory handles and a flat key-value
// blob) look like one uniform hierarchical note store.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/models"
)

// NoteExt is the suffix every backing note entry carries; directory
// entries without it are treated as subdirectories, not notes.
const NoteExt = ".md"

// Kind identifies a backend variant.
type Kind string

const (
	KindApp    Kind = "app"
	KindCustom Kind = "custom"
	KindFlat   Kind = "flat"
)

// Backend is the per-variant operator surface. folderPath arguments are
// backend-specific locators; the empty string addresses the backend root.
// Listings are one level deep and tolerate partial failure: entries that
// individually fail to read are dropped, not fatal.
type Backend interface {
	Kind() Kind
	// Root returns the locator of the backend's root directory.
	Root() string
	// ListDirectory enumerates one level: folders sorted by name
	// (case-insensitive) and markdown notes sorted by UpdatedAt descending.
	ListDirectory(ctx context.Context, dirPath string) (*models.DirectoryContents, error)
	// ListFolders returns only the navigable subdirectories of dirPath.
	ListFolders(ctx context.Context, dirPath string) ([]models.FolderItem, error)
	// ReadNote loads the full note or fails with apperr.ErrNotFound.
	ReadNote(ctx context.Context, filename, folderPath string) (*models.Note, error)
	// WriteNote persists note content. A previousFilename differing from
	// the new one deletes the old entry first; failure to delete it is
	// logged but the new content is still persisted.
	WriteNote(ctx context.Context, note models.Note, previousFilename, folderPath string) error
	// DeleteNote removes the backing entry or fails with apperr.ErrNotFound.
	DeleteNote(ctx context.Context, filename, folderPath string) error
}

// checkFilename rejects note filenames that address anything other than a
// direct child of their folder. Root-escape validation runs on the folder
// locator only, so a separator or dot segment smuggled into the filename
// would climb past it.
func checkFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("storage: invalid note filename %q: %w", name, apperr.ErrPermissionDenied)
	}
	return nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
