// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notevault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/notevault/internal/models"
	"github.com/avdeev/notevault/internal/storage"
)

// Server wraps the MCP server with notevault tools.
type Server struct {
	mcp *server.MCPServer
	svc *storage.Service
}

// New creates a new MCP server with all notevault tools registered.
func New(svc *storage.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Notevault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List one level of the note hierarchy: subfolders and note previews."),
		mcp.WithString("dir", mcp.Description("Directory locator from a previous listing (empty for the storage root)")),
	), s.listDirectory)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Note filename without extension")),
		mcp.WithString("folder", mcp.Description("Directory locator (empty for the storage root)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("write_note",
		mcp.WithDescription("Create or overwrite a note. Content MUST follow the canonical "+
			"note format. Read the contract first via the get_note_contract tool or the "+
			"notevault://note-format resource. Pass previous_filename to rename, and the "+
			"checksum from a prior read_note as if_match to detect concurrent edits."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Note filename without extension")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the notevault note format contract")),
		mcp.WithString("folder", mcp.Description("Directory locator (empty for the storage root)")),
		mcp.WithString("previous_filename", mcp.Description("Old filename when renaming")),
		mcp.WithString("if_match", mcp.Description("Checksum for optimistic concurrency")),
	), s.writeNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Note filename without extension")),
		mcp.WithString("folder", mcp.Description("Directory locator (empty for the storage root)")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("storage_info",
		mcp.WithDescription("Describe the active storage backend and its human-readable location."),
	), s.storageInfo)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical notevault note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("notevault://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("dir", "")
	dc, err := s.svc.ListDirectory(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(dc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := req.GetString("folder", "")
	note, err := s.svc.ReadNote(ctx, filename, folder)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) writeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := req.GetString("folder", "")
	previous := req.GetString("previous_filename", "")
	ifMatch := req.GetString("if_match", "")

	note, err := s.svc.WriteNote(ctx, models.Note{Filename: filename, Content: content},
		previous, folder, ifMatch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("written: %s (checksum %s)", note.Filename, note.Checksum)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := req.GetString("folder", "")
	if err := s.svc.DeleteNote(ctx, filename, folder); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", filename)), nil
}

func (s *Server) storageInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.StorageInfo(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "notevault://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
