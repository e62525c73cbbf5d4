package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/neron/internal/notes"
	"github.com/kalambet/neron/internal/search"
)

// NotesReader abstracts the note repository for the MCP layer.
type NotesReader interface {
	NotesForDay(ctx context.Context, day time.Time) ([]notes.Note, error)
	AllNotes(ctx context.Context) ([]notes.Note, error)
}

// NoteSearcher abstracts semantic search for the MCP layer.
type NoteSearcher interface {
	Search(ctx context.Context, text string, topK int) ([]search.Result, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Name     string
	Notes    NotesReader
	Searcher NoteSearcher
}

// NewMCPServer creates an MCP server with the note retrieval tools
// registered. Tool failures are reported as content, never as transport
// errors.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		deps.Name,
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("neron: private notes store with per-day retrieval and semantic search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_notes_per_day",
			mcp.WithDescription("Retrieve all notes for a specific day"),
			mcp.WithString("day", mcp.Description("Date in YYYY-MM-DD format"), mcp.Required()),
		),
		mcpGetNotesPerDay(deps),
	)

	s.AddTool(
		mcp.NewTool("get_all_notes",
			mcp.WithDescription("Retrieve all notes from the database"),
		),
		mcpGetAllNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Semantic search using embeddings"),
			mcp.WithString("text", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("top_k", mcp.Description("Number of results (default: 5)")),
		),
		mcpSearch(deps),
	)

	return s
}

func mcpGetNotesPerDay(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dayStr, err := req.RequireString("day")
		if err != nil {
			return mcpError("day is required"), nil
		}

		day, err := time.Parse("2006-01-02", dayStr)
		if err != nil {
			return mcpError(fmt.Sprintf("Invalid date format: %s", dayStr)), nil
		}

		found, err := deps.Notes.NotesForDay(ctx, day)
		if err != nil {
			slog.Error("get_notes_per_day failed", "day", dayStr, "error", err)
			return mcpError(fmt.Sprintf("Error retrieving notes: %v", err)), nil
		}

		if len(found) == 0 {
			return mcpText(fmt.Sprintf("No notes found for %s", dayStr)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d note(s) for %s:\n", len(found), dayStr)
		for i, n := range found {
			fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, n.Timestamp.Format("15:04:05"), n.Text)
		}
		return mcpText(b.String()), nil
	}
}

func mcpGetAllNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		found, err := deps.Notes.AllNotes(ctx)
		if err != nil {
			slog.Error("get_all_notes failed", "error", err)
			return mcpError(fmt.Sprintf("Error retrieving notes: %v", err)), nil
		}

		if len(found) == 0 {
			return mcpText("No notes found"), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d note(s):\n", len(found))
		for i, n := range found {
			fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, n.Timestamp.Format("2006-01-02 15:04"), n.Text)
		}
		return mcpText(b.String()), nil
	}
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		topK := req.GetInt("top_k", 5)
		if topK <= 0 {
			return mcpError("top_k must be positive"), nil
		}

		results, err := deps.Searcher.Search(ctx, text, topK)
		if err != nil {
			slog.Error("search failed", "query", text, "error", err)
			return mcpError(fmt.Sprintf("Error performing search: %v", err)), nil
		}

		if len(results) == 0 {
			return mcpText(fmt.Sprintf("No results for: '%s'", text)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d result(s) for '%s':\n", len(results), text)
		for i, r := range results {
			fmt.Fprintf(&b, "\n%d. [%.1f%%] %s\n   %s", i+1, r.Similarity*100, r.Timestamp.Format("2006-01-02"), r.Text)
		}
		return mcpText(b.String()), nil
	}
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
