package api

import (
	"github.com/avdeev/notevault/internal/models"
)

// WriteNoteRequest is the request body for creating or updating a note.
// PreviousFilename renames the note as part of the write; Folder addresses
// the containing directory ("" for the backend root).
type WriteNoteRequest struct {
	Content          string `json:"content" example:"# Hello\nWorld" validate:"required"`
	PreviousFilename string `json:"previous_filename,omitempty" example:"old name"`
	Folder           string `json:"folder,omitempty"`
}

// PreferencesRequest is the request body for updating display settings.
type PreferencesRequest struct {
	ShowTimestamps   bool `json:"show_timestamps" validate:"required"`
	WelcomeCompleted bool `json:"welcome_completed" validate:"required"`
}

// PickStorageRequest asks the folder picker to resolve a directory.
type PickStorageRequest struct {
	Request string `json:"request" example:"/mnt/shared/Documents"`
}

// PickStorageResponse reports the outcome of a pick. Picked is false when
// the selection was cancelled or lay outside every grant.
type PickStorageResponse struct {
	Picked  bool               `json:"picked" validate:"required"`
	Storage models.StorageInfo `json:"storage"`
}

// SetStorageRequest switches the active backend to a granted handle.
type SetStorageRequest struct {
	Handle string `json:"handle" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = models.Note

// DirectoryResponse is one level of the hierarchy (aliased from the domain layer).
type DirectoryResponse = models.DirectoryContents

// FolderItem is a single navigable subdirectory (aliased from the domain layer).
type FolderItem = models.FolderItem

// StorageResponse describes the active backend (aliased from the domain layer).
type StorageResponse = models.StorageInfo

// PreferencesResponse mirrors the persisted display settings.
type PreferencesResponse = models.UserPreferences
