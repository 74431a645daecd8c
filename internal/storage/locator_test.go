package storage

import "testing"

func TestHumanReadableLocation(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		want   string
	}{
		{"plain path unmodified", "/home/user/notes", "/home/user/notes"},
		{"primary with path", "content://auth/tree/primary%3ADocuments", "Documents"},
		{"primary unencoded colon", "content://auth/tree/primary:Documents", "Documents"},
		{"primary empty", "content://auth/tree/primary%3A", "Internal Storage"},
		{"sd volume", "content://auth/tree/sdcard%3ANotes", "SD Card/Notes"},
		{"external volume", "content://auth/tree/external-1234%3ABackup%2FNotes", "SD Card/Backup/Notes"},
		{"sd volume no path", "content://auth/tree/sdcard%3A", "SD Card"},
		{"unknown volume falls back to decoded", "content://auth/tree/ABCD-1234%3ANotes", "ABCD-1234:Notes"},
		{"missing tree segment unmodified", "content://auth/nothing", "content://auth/nothing"},
		{"bad escape degrades to label", "content://auth/tree/%zz", "Custom Folder"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HumanReadableLocation(tc.in); got != tc.want {
				t.Errorf("HumanReadableLocation(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParentPathPlain(t *testing.T) {
	root := "/data/notes"

	if _, ok := ParentPath(root, root); ok {
		t.Error("parent of root should not exist")
	}
	if p, ok := ParentPath("/data/notes/work", root); !ok || p != root {
		t.Errorf("one level below root: parent = %q ok=%v, want root", p, ok)
	}
	if p, ok := ParentPath("/data/notes/work/deep", root); !ok || p != "/data/notes/work" {
		t.Errorf("two levels: parent = %q ok=%v", p, ok)
	}
	if _, ok := ParentPath("/data", root); ok {
		t.Error("paths above root should have no parent")
	}
}

func TestParentPathHandles(t *testing.T) {
	root := "content://auth/tree/primary%3ADocs"

	if _, ok := ParentPath(root, root); ok {
		t.Error("parent of root handle should not exist")
	}
	child := root + "/Work"
	if p, ok := ParentPath(child, root); !ok || p != root {
		t.Errorf("parent of %q = %q ok=%v, want root", child, p, ok)
	}
	deep := root + "/Work/Archive"
	if p, ok := ParentPath(deep, root); !ok || p != child {
		t.Errorf("parent of %q = %q ok=%v, want %q", deep, p, ok, child)
	}
	// A bare tree handle that is not the root still resolves to the root.
	other := "content://auth/tree/other%3A"
	if p, ok := ParentPath(other, root); !ok || p != root {
		t.Errorf("parent of shallow handle = %q ok=%v, want root", p, ok)
	}
}

func TestIsHandle(t *testing.T) {
	if !IsHandle("content://auth/tree/x") {
		t.Error("content URI should be a handle")
	}
	if IsHandle("/plain/path") {
		t.Error("plain path should not be a handle")
	}
}
