package storage

import (
	"net/url"
	"strings"
)

// Locator labels shown when a handle cannot be rendered more precisely.
const (
	labelInternalStorage = "Internal Storage"
	labelSDCard          = "SD Card"
	labelCustomFolder    = "Custom Folder"
)

const handleScheme = "content://"

// primaryPrefix marks the built-in storage volume inside a tree segment.
const primaryPrefix = "primary:"

// IsHandle reports whether locator is a permission-scoped handle rather
// than a plain filesystem path.
func IsHandle(locator string) bool {
	return strings.HasPrefix(locator, handleScheme)
}

// HumanReadableLocation renders a directory locator for display.
//
// Plain paths and malformed handles are returned unmodified; recognised
// handles are reduced to the decoded tree segment with the storage volume
// translated ("primary:Documents" → "Documents", sd/external volumes →
// "SD Card/<rel>"). Parse failures degrade to a generic label, never to an
// error.
func HumanReadableLocation(locator string) string {
	if !IsHandle(locator) {
		return locator
	}
	segment, ok := treeSegment(locator)
	if !ok {
		return locator
	}
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return labelCustomFolder
	}

	if rest, found := strings.CutPrefix(decoded, primaryPrefix); found {
		if rest == "" {
			return labelInternalStorage
		}
		return rest
	}

	if volume, rel, found := strings.Cut(decoded, ":"); found {
		lower := strings.ToLower(volume)
		if strings.Contains(lower, "sd") || strings.Contains(lower, "external") {
			if rel == "" {
				return labelSDCard
			}
			return labelSDCard + "/" + rel
		}
	}

	if decoded == "" {
		return labelCustomFolder
	}
	return decoded
}

// ParentPath computes the parent locator of current, in the same
// addressing scheme. ok is false when current is the root (or would climb
// past it).
func ParentPath(current, root string) (parent string, ok bool) {
	if current == "" || current == root {
		return "", false
	}

	if IsHandle(current) {
		parts := strings.Split(current, "/")
		// content: + "" + authority + "tree" + segment; anything not
		// nested past those five parts sits at the tree root.
		if len(parts) <= 5 {
			return root, true
		}
		return strings.Join(parts[:len(parts)-1], "/"), true
	}

	trimmed := strings.TrimSuffix(current, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "", false
	}
	parent = trimmed[:idx]
	rootTrimmed := strings.TrimSuffix(root, "/")
	if len(parent) < len(rootTrimmed) {
		return "", false
	}
	if parent == rootTrimmed {
		return root, true
	}
	return parent, true
}

// treeSegment extracts the raw (still escaped) tree segment of a handle.
func treeSegment(handle string) (string, bool) {
	rest := strings.TrimPrefix(handle, handleScheme)
	parts := strings.Split(rest, "/")
	if len(parts) < 3 || parts[1] != "tree" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// handleParts splits a handle into authority, escaped tree segment and any
// escaped subdirectory segments appended below the tree root.
func handleParts(handle string) (authority, segment string, subdirs []string, ok bool) {
	if !IsHandle(handle) {
		return "", "", nil, false
	}
	rest := strings.TrimPrefix(handle, handleScheme)
	parts := strings.Split(rest, "/")
	if len(parts) < 3 || parts[1] != "tree" || parts[0] == "" || parts[2] == "" {
		return "", "", nil, false
	}
	return parts[0], parts[2], parts[3:], true
}

// childHandle appends one entry name below a handle-based directory path.
func childHandle(dir, name string) string {
	return dir + "/" + url.PathEscape(name)
}
