package storage

import (
	"context"
	"fmt"
	"os"
)

// Picker is the external folder-picker collaborator. Pick resolves a
// user-supplied request to a permission-scoped handle; ok is false when
// nothing was selected (cancellation, or the request is outside every
// grant).
type Picker interface {
	Pick(ctx context.Context, request string) (handle string, ok bool, err error)
}

// MountPicker mints handles for existing directories under the granted
// mounts. It stands in for the OS directory picker dialog: the request is
// the directory the user chose, and the result is the scoped handle the
// grant system would return for it.
type MountPicker struct {
	mounts *MountTable
}

// NewMountPicker creates a picker over the grant table.
func NewMountPicker(mounts *MountTable) *MountPicker {
	return &MountPicker{mounts: mounts}
}

// Pick validates the requested directory and returns its handle. An empty
// request or a directory outside every grant is a cancelled selection, not
// an error.
func (p *MountPicker) Pick(_ context.Context, request string) (string, bool, error) {
	if request == "" {
		return "", false, nil
	}
	info, err := os.Stat(request)
	if err != nil {
		return "", false, fmt.Errorf("storage: pick %s: %w", request, err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("storage: pick %s: not a directory", request)
	}
	handle, ok := p.mounts.HandleFor(request)
	if !ok {
		return "", false, nil
	}
	return handle, true, nil
}
