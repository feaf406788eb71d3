package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/scout/internal/search"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// Searcher runs a query across every provider.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) (*search.Response, error)
}

// Search returns a handler that runs a global search. Providers still
// running after timeout are reported as pending.
func Search(engine Searcher, timeout time.Duration) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		opts := search.Options{Limit: defaultSearchLimit}
		if l, ok := args["limit"].(float64); ok && l > 0 {
			opts.Limit = min(int(l), maxSearchLimit)
		}
		if sess := server.ClientSessionFromContext(ctx); sess != nil {
			opts.SessionID = sess.SessionID()
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := engine.Search(ctx, query, opts)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return mcp.NewToolResultError(fmt.Sprintf("Search failed: %s", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResponse(resp)), nil
	}
}

func formatSearchResponse(resp *search.Response) string {
	if len(resp.Tokens) == 0 {
		return "Nothing to search for: the query has no usable terms."
	}

	var b strings.Builder
	if len(resp.Results) == 0 {
		fmt.Fprintf(&b, "No results for %q.\n", resp.Query)
	} else {
		fmt.Fprintf(&b, "🔎 %d results for %q", len(resp.Results), resp.Query)
		if resp.Cached {
			b.WriteString(" (cached)")
		}
		b.WriteString("\n\n")
		for i, r := range resp.Results {
			fmt.Fprintf(&b, "%d. [%s] **%s** (score %d)\n", i+1, r.Provider, r.Title, r.Score)
			if r.Subtitle != "" {
				fmt.Fprintf(&b, "   %s\n", r.Subtitle)
			}
			if r.URL != "" {
				fmt.Fprintf(&b, "   %s\n", r.URL)
			}
			fmt.Fprintf(&b, "   id: %s\n", r.ID)
		}
	}

	if len(resp.Pending) > 0 {
		fmt.Fprintf(&b, "\n⏳ Still searching: %s\n", strings.Join(resp.Pending, ", "))
	}
	return b.String()
}
