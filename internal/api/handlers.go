package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/models"
	"github.com/avdeev/notevault/internal/sse"
	"github.com/avdeev/notevault/internal/storage"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *storage.Service
	events *sse.Broker // nil when SSE is disabled
}

// NewHandler creates a new Handler.
func NewHandler(svc *storage.Service, events *sse.Broker) *Handler {
	return &Handler{svc: svc, events: events}
}

// noteFilename extracts the filename from the URL. Supports encoded
// characters from OpenAPI clients (e.g. meeting%20notes).
func noteFilename(r *http.Request) string {
	raw := chi.URLParam(r, "filename")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "checksum mismatch")
	case errors.Is(err, apperr.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "storage timeout")
	case errors.Is(err, apperr.ErrMalformed):
		writeError(w, http.StatusBadRequest, "malformed locator")
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) publishChange(kind, path string) {
	if h.events != nil {
		h.events.PublishChange(kind, path)
	}
}

// GetDirectory handles GET /api/directory.
//
//	@Summary		List one level of the note hierarchy
//	@Tags			directory
//	@Produce		json
//	@Param			dir	query		string	false	"Directory locator (empty for root)"
//	@Success		200	{object}	DirectoryResponse
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/directory [get]
func (h *Handler) GetDirectory(w http.ResponseWriter, r *http.Request) {
	dc, err := h.svc.ListDirectory(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		respondError(w, "list directory", err)
		return
	}
	writeJSON(w, http.StatusOK, dc)
}

// GetParent handles GET /api/directory/parent.
//
//	@Summary		Navigate one level up (the root is its own parent)
//	@Tags			directory
//	@Produce		json
//	@Param			current	query		string	true	"Current directory locator"
//	@Success		200		{object}	DirectoryResponse
//	@Security		BearerAuth
//	@Router			/directory/parent [get]
func (h *Handler) GetParent(w http.ResponseWriter, r *http.Request) {
	dc, err := h.svc.OpenParent(r.Context(), r.URL.Query().Get("current"))
	if err != nil {
		respondError(w, "open parent", err)
		return
	}
	writeJSON(w, http.StatusOK, dc)
}

// GetFolders handles GET /api/directory/folders.
//
//	@Summary		List only the navigable subdirectories
//	@Tags			directory
//	@Produce		json
//	@Param			dir	query		string	false	"Directory locator (empty for root)"
//	@Success		200	{array}		models.FolderItem
//	@Security		BearerAuth
//	@Router			/directory/folders [get]
func (h *Handler) GetFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.ListFolders(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		respondError(w, "list folders", err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

// GetNote handles GET /api/notes/{filename}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			filename	path		string	true	"Note filename without extension"
//	@Param			folder		query		string	false	"Directory locator (empty for root)"
//	@Success		200			{object}	NoteDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{filename} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	filename := noteFilename(r)
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	note, err := h.svc.ReadNote(r.Context(), filename, r.URL.Query().Get("folder"))
	if err != nil {
		respondError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// PutNote handles PUT /api/notes/{filename}.
//
// The write is an upsert: a missing note is created, an existing one is
// overwritten. previous_filename in the body renames as part of the write.
//
//	@Summary		Create or update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			filename	path		string				true	"Note filename without extension"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		WriteNoteRequest	true	"Note content"
//	@Success		200			{object}	NoteDetail
//	@Success		201			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{filename} [put]
func (h *Handler) PutNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	filename := noteFilename(r)
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	var req WriteNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	existed := true
	checkName := filename
	if req.PreviousFilename != "" {
		checkName = req.PreviousFilename
	}
	if _, err := h.svc.ReadNote(r.Context(), checkName, req.Folder); errors.Is(err, apperr.ErrNotFound) {
		existed = false
	}

	note, err := h.svc.WriteNote(r.Context(), models.Note{Filename: filename, Content: req.Content},
		req.PreviousFilename, req.Folder, ifMatch)
	if err != nil {
		respondError(w, "write note", err)
		return
	}

	kind := "created"
	status := http.StatusCreated
	if existed {
		kind = "updated"
		status = http.StatusOK
	}
	h.publishChange(kind, note.FilePath)
	writeJSON(w, status, note)
}

// DeleteNote handles DELETE /api/notes/{filename}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			filename	path	string	true	"Note filename without extension"
//	@Param			folder		query	string	false	"Directory locator (empty for root)"
//	@Success		204			"Note deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{filename} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	filename := noteFilename(r)
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	folder := r.URL.Query().Get("folder")
	if err := h.svc.DeleteNote(r.Context(), filename, folder); err != nil {
		respondError(w, "delete note", err)
		return
	}
	h.publishChange("deleted", filename)
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /api/preferences.
//
//	@Summary		Get the display preferences
//	@Tags			preferences
//	@Produce		json
//	@Success		200	{object}	PreferencesResponse
//	@Security		BearerAuth
//	@Router			/preferences [get]
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.UserPreferences(r.Context()))
}

// PutPreferences handles PUT /api/preferences.
//
//	@Summary		Update the display preferences
//	@Tags			preferences
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PreferencesRequest	true	"New preference values"
//	@Success		200		{object}	PreferencesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preferences [put]
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.SetShowTimestamps(r.Context(), req.ShowTimestamps); err != nil {
		respondError(w, "update preferences", err)
		return
	}
	if err := h.svc.SetWelcomeCompleted(r.Context(), req.WelcomeCompleted); err != nil {
		respondError(w, "update preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.UserPreferences(r.Context()))
}

// GetStorage handles GET /api/storage.
//
//	@Summary		Describe the active storage backend
//	@Tags			storage
//	@Produce		json
//	@Success		200	{object}	StorageResponse
//	@Security		BearerAuth
//	@Router			/storage [get]
func (h *Handler) GetStorage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.StorageInfo())
}

// PutStorage handles PUT /api/storage.
//
//	@Summary		Switch to a granted external directory
//	@Tags			storage
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetStorageRequest	true	"Granted directory handle"
//	@Success		200		{object}	StorageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storage [put]
func (h *Handler) PutStorage(w http.ResponseWriter, r *http.Request) {
	var req SetStorageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}
	if err := h.svc.SetCustomDirectory(r.Context(), req.Handle); err != nil {
		respondError(w, "set storage", err)
		return
	}
	info := h.svc.StorageInfo()
	h.publishStorageChanged(info)
	writeJSON(w, http.StatusOK, info)
}

// PickStorage handles POST /api/storage/pick.
//
//	@Summary		Pick an external directory through the folder picker
//	@Tags			storage
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PickStorageRequest	true	"Requested directory"
//	@Success		200		{object}	PickStorageResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storage/pick [post]
func (h *Handler) PickStorage(w http.ResponseWriter, r *http.Request) {
	var req PickStorageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	picked, err := h.svc.PickExternalDirectory(r.Context(), req.Request)
	if err != nil {
		respondError(w, "pick storage", err)
		return
	}
	info := h.svc.StorageInfo()
	if picked {
		h.publishStorageChanged(info)
	}
	writeJSON(w, http.StatusOK, PickStorageResponse{Picked: picked, Storage: info})
}

// ResetStorage handles DELETE /api/storage.
//
//	@Summary		Revert to the app-private storage
//	@Tags			storage
//	@Produce		json
//	@Success		200	{object}	StorageResponse
//	@Security		BearerAuth
//	@Router			/storage [delete]
func (h *Handler) ResetStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetToDefault(r.Context()); err != nil {
		respondError(w, "reset storage", err)
		return
	}
	info := h.svc.StorageInfo()
	h.publishStorageChanged(info)
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) publishStorageChanged(info models.StorageInfo) {
	if h.events != nil {
		h.events.PublishStorageChanged(info.Backend, info.Location)
	}
}
