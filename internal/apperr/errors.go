// Package apperr defines the sentinel errors shared across the storage
// layer and its callers.
package apperr

import "errors"

var (
	// ErrNotFound marks a read or delete whose target entry is absent.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied marks an invalid or revoked directory handle.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTimeout marks a preference-store call that exceeded its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrMalformed marks unparseable persisted payloads or handle strings.
	ErrMalformed = errors.New("malformed")
	// ErrConflict marks a write whose If-Match checksum no longer matches.
	ErrConflict = errors.New("conflict")
)
