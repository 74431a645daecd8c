package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/avdeev/notevault/internal/storage"
	"github.com/avdeev/notevault/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	svc, err := storage.NewService(context.Background(), storage.Options{
		Mode:    storage.ModeFiles,
		AppRoot: t.TempDir(),
		Prefs:   testutil.TestPrefs(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we invoke
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_directory":
		result, err = srv.listDirectory(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "write_note":
		result, err = srv.writeNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "storage_info":
		result, err = srv.storageInfo(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestWriteAndReadNote(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "write_note", map[string]interface{}{
		"filename": "test",
		"content":  "# Test\nHello",
	})
	if r.IsError {
		t.Fatalf("write failed: %s", resultText(r))
	}
	if !strings.HasPrefix(resultText(r), "written: test") {
		t.Errorf("write result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{
		"filename": "test",
	})
	text := resultText(r)
	if !strings.Contains(text, `"content": "# Test\nHello"`) {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"filename": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListDirectory(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_note", map[string]interface{}{"filename": "a", "content": "a"})
	_ = callTool(t, srv, "write_note", map[string]interface{}{"filename": "b", "content": "b"})

	r := callTool(t, srv, "list_directory", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"filename": "a"`) || !strings.Contains(text, `"filename": "b"`) {
		t.Errorf("listing = %q", text)
	}
}

func TestDeleteNote(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_note", map[string]interface{}{"filename": "gone", "content": "x"})

	r := callTool(t, srv, "delete_note", map[string]interface{}{"filename": "gone"})
	if resultText(r) != "deleted: gone" {
		t.Errorf("delete result = %q", resultText(r))
	}

	r = callTool(t, srv, "delete_note", map[string]interface{}{"filename": "gone"})
	if !r.IsError {
		t.Error("expected error deleting a missing note")
	}
}

func TestWriteNoteRejectsTraversalFilename(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "write_note", map[string]interface{}{
		"filename": "../evil",
		"content":  "boom",
	})
	if !r.IsError {
		t.Error("expected error for a filename with a path separator")
	}
}

func TestWriteNoteConflict(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_note", map[string]interface{}{"filename": "doc", "content": "v1"})

	r := callTool(t, srv, "write_note", map[string]interface{}{
		"filename": "doc",
		"content":  "v2",
		"if_match": "bogus-checksum",
	})
	if !r.IsError {
		t.Error("expected conflict for a stale checksum")
	}
}

func TestStorageInfo(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "storage_info", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"backend": "app"`) {
		t.Errorf("storage info = %q", text)
	}
}

func TestGetNoteContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_note_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Note Format Contract") {
		t.Error("contract text missing")
	}
}
