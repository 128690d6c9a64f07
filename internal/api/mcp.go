package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ipfsnut/everd/internal/evermark"
	"github.com/ipfsnut/everd/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *evermark.Service
}

// NewMCPServer creates an MCP server exposing the archive to assistants.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"everd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("everd is a permanent content archive with IPFS-backed metadata and on-chain references."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("save_url",
			mcp.WithDescription("Preserve a URL in the permanent archive. Extracts metadata, pins it to IPFS, and queues an on-chain mint."),
			mcp.WithString("url", mcp.Description("The URL to preserve"), mcp.Required()),
			mcp.WithNumber("fid", mcp.Description("Optional Farcaster id of the saving user")),
		),
		mcpSaveURL(deps),
	)

	s.AddTool(
		mcp.NewTool("search_archive",
			mcp.WithDescription("Search preserved content by title, description, or tag."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchArchive(deps),
	)

	s.AddTool(
		mcp.NewTool("recent_saves",
			mcp.WithDescription("List the most recently preserved items."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpRecentSaves(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"evermark://recent",
			"Recent Evermarks",
			mcp.WithResourceDescription("Last 10 preserved items (titles and source URLs)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSaveURL(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		fid := int64(req.GetInt("fid", 0))

		res, err := deps.Service.Create(ctx, url, fid)
		if err != nil {
			return mcpError(fmt.Sprintf("save failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved %q as token %d (status %s)", res.Metadata.Title, res.TokenID, res.Status)), nil
	}
}

func mcpSearchArchive(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		items, err := deps.Service.Search(query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(items) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(mcpSummaries(items))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecentSaves(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		items, _, err := deps.Service.Recent(1, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing failed: %v", err)), nil
		}
		if len(items) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(mcpSummaries(items))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type evermarkSummary struct {
	TokenID     int64  `json:"token_id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	SourceURL   string `json:"source_url"`
	IPFSHash    string `json:"ipfs_hash,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func mcpSummaries(items []storage.Evermark) []evermarkSummary {
	out := make([]evermarkSummary, len(items))
	for i, e := range items {
		title := e.Title
		if utf8.RuneCountInString(title) > 200 {
			runes := []rune(title)
			title = string(runes[:200]) + "..."
		}
		out[i] = evermarkSummary{
			TokenID:     e.TokenID,
			Title:       title,
			ContentType: e.ContentType,
			SourceURL:   e.SourceURL,
			IPFSHash:    e.IPFSHash,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items, _, err := deps.Service.Recent(1, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent evermarks: %w", err)
		}

		b, err := json.Marshal(mcpSummaries(items))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal evermarks: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
