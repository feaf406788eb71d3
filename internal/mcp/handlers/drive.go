package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/scout/internal/drive"
	"github.com/btouchard/scout/internal/notify"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// DriveClient is the part of the drive client the tools use.
type DriveClient interface {
	State() drive.State
	IsAuthenticated() bool
	ExpiresAt() time.Time
	ListFiles(ctx context.Context, query string) *drive.ListFilesResponse
	GetFile(ctx context.Context, id string) *drive.GetFileResponse
}

const driveDisabled = "Drive is not configured. Set drive.enabled and drive.client_id in the config."

// ListFiles returns a handler that lists drive files whose title contains
// the given term. n may be nil.
func ListFiles(client DriveClient, n notify.Notifier) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if client == nil {
			return mcp.NewToolResultError(driveDisabled), nil
		}
		if !client.IsAuthenticated() {
			return mcp.NewToolResultError("Drive is not connected. Run `scout connect` first."), nil
		}

		args := req.GetArguments()
		term, _ := args["query"].(string)
		term = strings.TrimSpace(term)

		limit := defaultListLimit
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = min(int(l), maxListLimit)
		}

		var q string
		if term != "" {
			q = drive.TitleQuery(term)
		}

		files, err := client.ListFiles(ctx, q).Collect(ctx)
		truncated := errors.Is(err, drive.ErrPageLimit)
		if err != nil && !truncated {
			return mcp.NewToolResultError(fmt.Sprintf("Listing failed: %s", err)), nil
		}
		if truncated && n != nil {
			ev := notify.Event{
				Type:    notify.DriveListTruncated,
				Query:   q,
				Count:   len(files),
				Message: "listing stopped at the page limit",
			}
			if sess := server.ClientSessionFromContext(ctx); sess != nil {
				ev.MCPSessionID = sess.SessionID()
			}
			n.Notify(ev)
		}

		if len(files) == 0 {
			return mcp.NewToolResultText("No files found."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "📁 %d files", len(files))
		if len(files) > limit {
			fmt.Fprintf(&b, " (showing %d)", limit)
			files = files[:limit]
		}
		b.WriteString("\n\n")
		for _, f := range files {
			fmt.Fprintf(&b, "- **%s** (%s)", f.Title, f.ID)
			if !f.ModifiedDate.IsZero() {
				fmt.Fprintf(&b, " modified %s", f.ModifiedDate.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
		if truncated {
			b.WriteString("\n⚠️ Listing stopped at the page limit; results are incomplete.\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// GetFile returns a handler that shows one file's metadata.
func GetFile(client DriveClient) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if client == nil {
			return mcp.NewToolResultError(driveDisabled), nil
		}

		args := req.GetArguments()
		id, _ := args["file_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("file_id is required"), nil
		}

		resp := client.GetFile(ctx, id)
		if err := resp.Wait(ctx); err != nil {
			switch {
			case errors.Is(err, drive.ErrNotFound):
				return mcp.NewToolResultError(fmt.Sprintf("File not found: %s", id)), nil
			case errors.Is(err, drive.ErrNotAuthenticated):
				return mcp.NewToolResultError("Drive is not connected. Run `scout connect` first."), nil
			default:
				return mcp.NewToolResultError(fmt.Sprintf("Cannot get file: %s", err)), nil
			}
		}

		f := resp.File()
		var b strings.Builder
		fmt.Fprintf(&b, "📄 %s\n\n", f.Title)
		fmt.Fprintf(&b, "- ID: %s\n", f.ID)
		if f.Size > 0 {
			fmt.Fprintf(&b, "- Size: %d bytes\n", f.Size)
		}
		if f.ETag != "" {
			fmt.Fprintf(&b, "- ETag: %s\n", f.ETag)
		}
		if !f.CreatedDate.IsZero() {
			fmt.Fprintf(&b, "- Created: %s\n", f.CreatedDate.Format(time.RFC3339))
		}
		if !f.ModifiedDate.IsZero() {
			fmt.Fprintf(&b, "- Modified: %s\n", f.ModifiedDate.Format(time.RFC3339))
		}
		if f.DownloadURL != "" {
			fmt.Fprintf(&b, "- Download: %s\n", f.DownloadURL)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// DriveStatus returns a handler that reports the connection state.
func DriveStatus(client DriveClient) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if client == nil {
			return mcp.NewToolResultText(driveDisabled), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Drive: %s\n", client.State())
		if client.IsAuthenticated() {
			if exp := client.ExpiresAt(); !exp.IsZero() {
				fmt.Fprintf(&b, "Access token expires in %s\n", time.Until(exp).Round(time.Second))
			}
		} else {
			b.WriteString("Run `scout connect` to authenticate.\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}
