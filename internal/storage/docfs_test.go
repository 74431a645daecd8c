package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/avdeev/notevault/internal/apperr"
	"github.com/avdeev/notevault/internal/models"
)

const testAuthority = "io.notevault.documents"

// grantedTree sets up a mount table with one granted volume rooted at a
// temp dir, and returns the table, the root handle, and the local dir.
func grantedTree(t *testing.T) (*MountTable, string, string) {
	t.Helper()
	dir := t.TempDir()
	mounts, err := NewMountTable(testAuthority, map[string]string{"primary": dir})
	if err != nil {
		t.Fatalf("NewMountTable: %v", err)
	}
	handle, ok := mounts.HandleFor(dir)
	if !ok {
		t.Fatal("HandleFor should mint a handle for the granted mount")
	}
	return mounts, handle, dir
}

func TestMountTableResolveRoundTrip(t *testing.T) {
	mounts, handle, dir := grantedTree(t)
	got, err := mounts.Resolve(handle)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != dir {
		t.Errorf("Resolve = %q, want %q", got, dir)
	}
}

func TestMountTableDeniesUngranted(t *testing.T) {
	mounts, _, _ := grantedTree(t)

	cases := []string{
		"content://other.authority/tree/primary%3A",
		"content://" + testAuthority + "/tree/usb%3A",
	}
	for _, h := range cases {
		if _, err := mounts.Resolve(h); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("Resolve(%q) err = %v, want ErrPermissionDenied", h, err)
		}
	}
}

func TestMountTableMalformedHandle(t *testing.T) {
	mounts, _, _ := grantedTree(t)
	for _, h := range []string{"/plain/path", "content://auth/nope", "content://auth/tree/"} {
		if _, err := mounts.Resolve(h); !errors.Is(err, apperr.ErrMalformed) {
			t.Errorf("Resolve(%q) err = %v, want ErrMalformed", h, err)
		}
	}
}

func TestMountTableEscapeBlocked(t *testing.T) {
	mounts, handle, _ := grantedTree(t)
	if _, err := mounts.Resolve(handle + "/.."); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("escaping handle err = %v, want ErrPermissionDenied", err)
	}
}

func TestDocFSWriteReadDelete(t *testing.T) {
	mounts, handle, _ := grantedTree(t)
	d := NewDocFS(mounts, handle, nil)
	ctx := context.Background()

	if err := d.WriteNote(ctx, models.Note{Filename: "idea", Content: "spark"}, "", ""); err != nil {
		t.Fatalf("WriteNote: %v", err)
	}
	got, err := d.ReadNote(ctx, "idea", "")
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if got.Content != "spark" {
		t.Errorf("content = %q", got.Content)
	}
	if !IsHandle(got.FilePath) {
		t.Errorf("file path should stay in handle space: %q", got.FilePath)
	}
	if err := d.DeleteNote(ctx, "idea", ""); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := d.ReadNote(ctx, "idea", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestDocFSFilenameTraversalBlocked(t *testing.T) {
	mounts, handle, dir := grantedTree(t)
	d := NewDocFS(mounts, handle, nil)
	ctx := context.Background()

	for _, name := range []string{"../evil", "..", "a/b"} {
		err := d.WriteNote(ctx, models.Note{Filename: name, Content: "boom"}, "", "")
		if !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("WriteNote(%q) err = %v, want ErrPermissionDenied", name, err)
		}
		if _, err := d.ReadNote(ctx, name, ""); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("ReadNote(%q) err = %v, want ErrPermissionDenied", name, err)
		}
		if err := d.DeleteNote(ctx, name, ""); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Errorf("DeleteNote(%q) err = %v, want ErrPermissionDenied", name, err)
		}
	}
	if _, statErr := os.Stat(filepath.Join(dir, "..", "evil.md")); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("file escaped the granted mount: stat err = %v", statErr)
	}
}

func TestDocFSRequiresExistingDirectory(t *testing.T) {
	mounts, handle, _ := grantedTree(t)
	d := NewDocFS(mounts, handle, nil)

	missing := childHandle(handle, "ghost")
	err := d.WriteNote(context.Background(), models.Note{Filename: "n", Content: "x"}, "", missing)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("write into missing dir err = %v, want ErrNotFound", err)
	}
}

func TestDocFSListNavigation(t *testing.T) {
	mounts, handle, dir := grantedTree(t)
	d := NewDocFS(mounts, handle, nil)
	ctx := context.Background()

	sub := filepath.Join(dir, "projects")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "plan.md"), []byte("tbd"), 0o644); err != nil {
		t.Fatal(err)
	}

	root, err := d.ListDirectory(ctx, "")
	if err != nil {
		t.Fatalf("ListDirectory root: %v", err)
	}
	if root.ParentPath != nil {
		t.Error("root should have nil parent")
	}
	if len(root.Folders) != 1 || root.Folders[0].Name != "projects" {
		t.Fatalf("folders = %+v", root.Folders)
	}

	child, err := d.ListDirectory(ctx, root.Folders[0].Path)
	if err != nil {
		t.Fatalf("ListDirectory child: %v", err)
	}
	if child.ParentPath == nil || *child.ParentPath != handle {
		t.Errorf("child parent = %v, want root handle", child.ParentPath)
	}
	if len(child.Notes) != 1 || child.Notes[0].Filename != "plan" {
		t.Errorf("child notes = %+v", child.Notes)
	}
}

func TestDocFSRenameLeavesSingleEntry(t *testing.T) {
	mounts, handle, _ := grantedTree(t)
	d := NewDocFS(mounts, handle, nil)
	ctx := context.Background()

	_ = d.WriteNote(ctx, models.Note{Filename: "draft", Content: "v1"}, "", "")
	if err := d.WriteNote(ctx, models.Note{Filename: "final", Content: "v2"}, "draft", ""); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := d.ReadNote(ctx, "draft", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("old entry should be removed")
	}
	dc, _ := d.ListDirectory(ctx, "")
	if len(dc.Notes) != 1 || dc.Notes[0].Filename != "final" {
		t.Errorf("notes = %+v, want exactly one entry named final", dc.Notes)
	}
}

func TestHandleForOutsideMounts(t *testing.T) {
	mounts, _, _ := grantedTree(t)
	if _, ok := mounts.HandleFor("/definitely/not/granted"); ok {
		t.Error("paths outside the mounts must not yield handles")
	}
}
