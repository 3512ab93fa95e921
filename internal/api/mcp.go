package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/shuttle/internal/attachment"
)

// MCPDeps holds dependencies for the MCP server. It reuses the HTTP
// surface's Deps: both are thin adapters over the same session.
type MCPDeps struct {
	Deps
}

// NewMCPServer creates an MCP server exposing the sharing session and
// inbox state as agent tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"shuttle",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("shuttle — hand links, text, and files to the host application's inbox."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("share_content",
			mcp.WithDescription("Share a link and/or text with the host application. The content lands in its inbox and is imported on the next wake."),
			mcp.WithString("caption", mcp.Description("Optional caption; becomes the title when present")),
			mcp.WithString("url", mcp.Description("Absolute URL to share")),
			mcp.WithString("text", mcp.Description("Free-form text to share")),
		),
		mcpShareContent(deps),
	)

	s.AddTool(
		mcp.NewTool("list_inbox",
			mcp.WithDescription("List inbox entries not yet imported by the host application."),
		),
		mcpListInbox(deps),
	)

	s.AddTool(
		mcp.NewTool("list_items",
			mcp.WithDescription("List items already imported into the host application."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListItems(deps),
	)

	return s
}

func mcpShareContent(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caption := req.GetString("caption", "")
		rawURL := req.GetString("url", "")
		text := req.GetString("text", "")
		if caption == "" && rawURL == "" && text == "" {
			return mcpError("one of caption, url, or text is required"), nil
		}

		var items []attachment.Provider
		if rawURL != "" {
			items = append(items, &attachment.LinkItem{Raw: rawURL})
		}
		if text != "" {
			items = append(items, &attachment.TextItem{Text: text})
		}
		res := deps.Session.Run(ctx, caption, items, nil)
		if res.EntryID == "" {
			return mcpError("content could not be persisted to the inbox"), nil
		}
		return mcpText(fmt.Sprintf("Shared %q as inbox entry %s", res.Record.Title, res.EntryID)), nil
	}
}

func mcpListInbox(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Inbox == nil {
			return mcpError("shared container unavailable"), nil
		}
		entries, err := deps.Inbox.List()
		if err != nil {
			return mcpError(fmt.Sprintf("listing inbox failed: %v", err)), nil
		}
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		out, err := json.Marshal(ids)
		if err != nil {
			return mcpError(fmt.Sprintf("encoding results failed: %v", err)), nil
		}
		return mcpText(string(out)), nil
	}
}

func mcpListItems(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		items, err := deps.Store.ListItems(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("listing items failed: %v", err)), nil
		}

		resp := make([]itemResponse, 0, len(items))
		for _, i := range items {
			resp = append(resp, itemResponse{
				ID:        i.ID,
				Title:     i.Title,
				Subtitle:  i.Subtitle,
				Text:      i.Text,
				URL:       i.URL,
				ImagePath: i.ImagePath,
				CreatedAt: i.CreatedAt.Format(time.RFC3339),
			})
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("encoding results failed: %v", err)), nil
		}
		return mcpText(string(out)), nil
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
