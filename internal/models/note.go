// Package models defines the domain types for notevault.
package models

import "time"

// PreviewLength is the number of leading characters of note content
// carried by a NotePreview.
const PreviewLength = 200

// Note is a full note loaded from a backend.
//
// Identity is the pair (directory, filename); the filename carries no
// extension, the backing entry is always "<filename>.md". FilePath is a
// backend-specific locator and must be treated as opaque by callers.
type Note struct {
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	FilePath  string    `json:"file_path"`
}

// Preview derives the listing projection of the note.
func (n Note) Preview() NotePreview {
	return NotePreview{
		Filename:  n.Filename,
		Preview:   previewSlice(n.Content),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		FilePath:  n.FilePath,
	}
}

// NotePreview is a lightweight projection of a Note used in listings.
// It is never persisted independently; the preview text is always derived
// from the raw content at read time.
type NotePreview struct {
	Filename  string    `json:"filename"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	FilePath  string    `json:"file_path"`
}

// FolderItem is a navigable subdirectory. Purely structural, no content.
type FolderItem struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DirectoryContents is one level of the note hierarchy.
//
// Folders are sorted by name (case-insensitive, ascending) and Notes by
// UpdatedAt descending. ParentPath is nil exactly when CurrentPath is the
// resolved root of the active backend.
type DirectoryContents struct {
	Folders     []FolderItem  `json:"folders"`
	Notes       []NotePreview `json:"notes"`
	CurrentPath string        `json:"current_path"`
	ParentPath  *string       `json:"parent_path"`
}

// UserPreferences are the persisted display settings.
type UserPreferences struct {
	ShowTimestamps   bool `json:"show_timestamps"`
	WelcomeCompleted bool `json:"welcome_completed"`
}

// DefaultUserPreferences returns the defaults merged under any persisted
// payload: timestamps shown, onboarding not completed.
func DefaultUserPreferences() UserPreferences {
	return UserPreferences{ShowTimestamps: true, WelcomeCompleted: false}
}

// StorageInfo describes the active backend for display purposes.
type StorageInfo struct {
	Backend  string `json:"backend"` // "app", "custom" or "flat"
	Location string `json:"location"`
	Root     string `json:"root"`
}

// previewSlice returns the first PreviewLength characters of raw content.
// No markdown stripping; runes are respected so multibyte text is not cut
// mid-character.
func previewSlice(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength])
}
