package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/scout/internal/search"
)

func makeReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	return r.Content[0].(mcp.TextContent).Text
}

type searcherFunc func(ctx context.Context, query string, opts search.Options) (*search.Response, error)

func (f searcherFunc) Search(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	return f(ctx, query, opts)
}

func TestSearch_WhenMissingQuery_ReturnsError(t *testing.T) {
	t.Parallel()

	handler := Search(searcherFunc(func(context.Context, string, search.Options) (*search.Response, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}), time.Second)

	result, err := handler(context.Background(), makeReq(map[string]any{"query": "   "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "query is required")
}

func TestSearch_FormatsResults(t *testing.T) {
	t.Parallel()

	var gotOpts search.Options
	handler := Search(searcherFunc(func(_ context.Context, q string, opts search.Options) (*search.Response, error) {
		gotOpts = opts
		return &search.Response{
			Query:  q,
			Tokens: []string{"budget"},
			Results: []search.Result{
				{Provider: "drive", ID: "f1", Title: "Budget 2024", Subtitle: "2.0 KiB", URL: "https://x/f1", Score: 2},
				{Provider: "catalog", ID: "d1", Title: "budget notes", Score: 1},
			},
		}, nil
	}), time.Second)

	result, err := handler(context.Background(), makeReq(map[string]any{"query": "budget", "limit": float64(500)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, `2 results for "budget"`)
	assert.Contains(t, text, "1. [drive] **Budget 2024** (score 2)")
	assert.Contains(t, text, "https://x/f1")
	assert.Contains(t, text, "2. [catalog] **budget notes**")
	assert.Equal(t, maxSearchLimit, gotOpts.Limit)
}

func TestSearch_TimeoutReportsPendingProviders(t *testing.T) {
	t.Parallel()

	handler := Search(searcherFunc(func(ctx context.Context, q string, _ search.Options) (*search.Response, error) {
		<-ctx.Done()
		return &search.Response{
			Query:   q,
			Tokens:  []string{q},
			Results: []search.Result{{Provider: "notes", ID: "n", Title: "partial", Score: 1}},
			Pending: []string{"drive"},
		}, ctx.Err()
	}), 10*time.Millisecond)

	result, err := handler(context.Background(), makeReq(map[string]any{"query": "slow"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "partial")
	assert.Contains(t, text, "Still searching: drive")
}

func TestSearch_EngineErrorIsReported(t *testing.T) {
	t.Parallel()

	handler := Search(searcherFunc(func(context.Context, string, search.Options) (*search.Response, error) {
		return nil, errors.New("boom")
	}), 0)

	result, err := handler(context.Background(), makeReq(map[string]any{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "boom")
}

func TestSearch_NoUsableTerms(t *testing.T) {
	t.Parallel()

	handler := Search(searcherFunc(func(_ context.Context, q string, _ search.Options) (*search.Response, error) {
		return &search.Response{Query: q}, nil
	}), 0)

	result, err := handler(context.Background(), makeReq(map[string]any{"query": `""`}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "no usable terms")
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()

	handler := Search(searcherFunc(func(_ context.Context, q string, _ search.Options) (*search.Response, error) {
		return &search.Response{Query: q, Tokens: []string{q}}, nil
	}), 0)

	result, err := handler(context.Background(), makeReq(map[string]any{"query": "zzz"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `No results for "zzz"`)
}
