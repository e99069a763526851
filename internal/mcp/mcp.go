// Package mcp exposes the note and SOP workflow as MCP tools over stdio,
// backed by the same HTTP client the CLI commands use.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkazmer/sopdesk/internal/client"
	"github.com/mkazmer/sopdesk/internal/notes"
)

// Backend is the slice of the HTTP client the MCP tools need.
type Backend interface {
	ListNotes(ctx context.Context) ([]notes.Note, error)
	CreateNote(ctx context.Context, title, content string) (notes.Note, error)
	ListSOPs(ctx context.Context) ([]notes.SOP, error)
	GenerateSOP(ctx context.Context, noteID string) (notes.SOP, error)
	Search(ctx context.Context, query string) ([]notes.SearchResult, error)
}

var _ Backend = (*client.Client)(nil)

// NewServer creates an MCP server with the note and SOP tools registered.
func NewServer(backend Backend, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sopdesk",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("sopdesk — turn meeting notes into Standard Operating Procedure drafts."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Store a meeting note in the backend."),
			mcp.WithString("title", mcp.Description("Note title, ideally '<context> – <date> – <topic>'"), mcp.Required()),
			mcp.WithString("content", mcp.Description("The note text"), mcp.Required()),
		),
		toolAddNote(backend),
	)

	s.AddTool(
		mcp.NewTool("list_notes",
			mcp.WithDescription("List all stored meeting notes."),
		),
		toolListNotes(backend),
	)

	s.AddTool(
		mcp.NewTool("search_notes",
			mcp.WithDescription("Search meeting notes and return scored matches."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		toolSearchNotes(backend),
	)

	s.AddTool(
		mcp.NewTool("list_sops",
			mcp.WithDescription("List all approved SOP drafts."),
		),
		toolListSOPs(backend),
	)

	s.AddTool(
		mcp.NewTool("generate_sop",
			mcp.WithDescription("Generate (or regenerate) the SOP draft for a note."),
			mcp.WithString("note_id", mcp.Description("ID of the note to draft an SOP from"), mcp.Required()),
		),
		toolGenerateSOP(backend),
	)

	return s
}

func toolAddNote(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		n, err := backend.CreateNote(ctx, title, content)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create note: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored note %s", n.ID)), nil
	}
}

func toolListNotes(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ns, err := backend.ListNotes(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list notes: %v", err)), nil
		}
		return mcpJSON(ns)
	}
}

func toolSearchNotes(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		if strings.TrimSpace(query) == "" {
			return mcpError("query must not be blank"), nil
		}

		results, err := backend.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(results)
	}
}

func toolListSOPs(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sops, err := backend.ListSOPs(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list SOP drafts: %v", err)), nil
		}
		return mcpJSON(sops)
	}
}

func toolGenerateSOP(backend Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		noteID, err := req.RequireString("note_id")
		if err != nil {
			return mcpError("note_id is required"), nil
		}

		sop, err := backend.GenerateSOP(ctx, noteID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to generate SOP: %v", err)), nil
		}
		return mcpText(sop.SOPDraft), nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
