package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/kv"
	"github.com/avdeev/notevault/internal/models"
)

// flatNotesKey is the single key the flat backend persists all notes under.
const flatNotesKey = "notes"

// flatNote is the persisted shape of one entry in the flat collection.
type flatNote struct {
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlatKV stores every note in one serialized array under a single key.
// There is no directory concept: folder locators are ignored, listings
// report an empty, non-navigable folder set, and the root locator is the
// empty string.
type FlatKV struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewFlatKV creates the flat backend over store.
func NewFlatKV(store kv.Store, logger *slog.Logger) *FlatKV {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlatKV{kv: store, logger: logger}
}

func (f *FlatKV) Kind() Kind   { return KindFlat }
func (f *FlatKV) Root() string { return "" }

// ListDirectory returns the whole flat collection. An unreadable blob
// degrades to an empty listing with a warning rather than failing.
func (f *FlatKV) ListDirectory(ctx context.Context, _ string) (*models.DirectoryContents, error) {
	entries, err := f.load(ctx)
	if err != nil {
		f.logger.Warn("storage: flat collection unreadable, listing empty",
			slog.String("error", err.Error()))
		entries = nil
	}
	notes := make([]models.NotePreview, 0, len(entries))
	for _, e := range entries {
		notes = append(notes, e.toNote().Preview())
	}
	dc := &models.DirectoryContents{
		Folders:     []models.FolderItem{},
		Notes:       notes,
		CurrentPath: "",
		ParentPath:  nil,
	}
	sortListing(dc.Folders, dc.Notes)
	return dc, nil
}

// ListFolders always returns an empty set: the flat backend is not
// navigable.
func (f *FlatKV) ListFolders(context.Context, string) ([]models.FolderItem, error) {
	return []models.FolderItem{}, nil
}

// ReadNote finds filename in the flat collection.
func (f *FlatKV) ReadNote(ctx context.Context, filename, _ string) (*models.Note, error) {
	entries, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Filename == filename {
			n := e.toNote()
			return &n, nil
		}
	}
	return nil, fmt.Errorf("storage: read %s: %w", filename, apperr.ErrNotFound)
}

// WriteNote upserts filename into the collection, preserving the original
// creation stamp across overwrites. A rename removes the old entry in the
// same persisted write.
func (f *FlatKV) WriteNote(ctx context.Context, note models.Note, previousFilename, _ string) error {
	// Keys cannot traverse anywhere, but a filename accepted here would
	// escape the root after a switch back to a filesystem backend.
	if err := checkFilename(note.Filename); err != nil {
		return err
	}
	entries, err := f.load(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	renamed := previousFilename != "" && previousFilename != note.Filename

	createdAt := now
	out := make([]flatNote, 0, len(entries)+1)
	for _, e := range entries {
		switch e.Filename {
		case note.Filename:
			createdAt = e.CreatedAt
		case previousFilename:
			if renamed {
				continue
			}
			out = append(out, e)
			continue
		default:
			out = append(out, e)
		}
	}
	out = append(out, flatNote{
		Filename:  note.Filename,
		Content:   note.Content,
		CreatedAt: createdAt,
		UpdatedAt: now,
	})
	return f.save(ctx, out)
}

// DeleteNote removes filename from the collection.
func (f *FlatKV) DeleteNote(ctx context.Context, filename, _ string) error {
	entries, err := f.load(ctx)
	if err != nil {
		return err
	}
	out := entries[:0]
	found := false
	for _, e := range entries {
		if e.Filename == filename {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		return fmt.Errorf("storage: delete %s: %w", filename, apperr.ErrNotFound)
	}
	return f.save(ctx, out)
}

func (f *FlatKV) load(ctx context.Context) ([]flatNote, error) {
	payload, err := f.kv.Get(ctx, flatNotesKey)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load flat collection: %w", err)
	}
	var entries []flatNote
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("storage: flat collection: %w: %s", apperr.ErrMalformed, err)
	}
	return entries, nil
}

func (f *FlatKV) save(ctx context.Context, entries []flatNote) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("storage: encode flat collection: %w", err)
	}
	if err := f.kv.Set(ctx, flatNotesKey, payload); err != nil {
		return fmt.Errorf("storage: save flat collection: %w", err)
	}
	return nil
}

func (e flatNote) toNote() models.Note {
	return models.Note{
		Filename:  e.Filename,
		Content:   e.Content,
		Checksum:  checksum([]byte(e.Content)),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		FilePath:  e.Filename + NoteExt,
	}
}
