package drive

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/btouchard/scout/internal/metrics"
)

type listState int

const (
	listRequesting listState = iota
	listAwaitingPage
	listExhausted
)

// ListFiles lists every file matching query, following continuation tokens
// until the listing is exhausted. An empty query lists everything.
func (c *Client) ListFiles(ctx context.Context, query string) *ListFilesResponse {
	resp := newListFilesResponse(query, 4)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		resp.finishList(c.listFiles(ctx, resp))
	}()
	return resp
}

func (c *Client) listFiles(ctx context.Context, resp *ListFilesResponse) error {
	var (
		state     = listRequesting
		pageToken string
		endpoint  string
		pages     int
	)

	for state != listExhausted {
		switch state {
		case listRequesting:
			endpoint = c.listURL(resp.query, pageToken)
			// The token is consumed by exactly one request.
			pageToken = ""
			state = listAwaitingPage

		case listAwaitingPage:
			var page listPage
			if err := c.getJSON(ctx, "list", endpoint, &page); err != nil {
				return err
			}
			pages++
			metrics.DrivePage()

			files := decodeItems(page.Items)
			select {
			case resp.files <- files:
			case <-ctx.Done():
				return ctx.Err()
			}

			switch {
			case page.NextPageToken == "":
				state = listExhausted
			case c.cfg.MaxPages > 0 && pages >= c.cfg.MaxPages:
				slog.Warn("drive listing stopped at page limit",
					"query", resp.query,
					"pages", pages)
				return ErrPageLimit
			default:
				pageToken = page.NextPageToken
				state = listRequesting
			}
		}
	}

	slog.Debug("drive listing exhausted", "query", resp.query, "pages", pages)
	return nil
}

func (c *Client) listURL(query, pageToken string) string {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	params.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return strings.TrimRight(c.cfg.APIURL, "/") + "/files?" + params.Encode()
}

// GetFile fetches the metadata of a single file.
func (c *Client) GetFile(ctx context.Context, id string) *GetFileResponse {
	resp := &GetFileResponse{response: newResponse(), fileID: id}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		f, err := c.getFile(ctx, id)
		resp.file = f
		resp.finish(err)
	}()
	return resp
}

func (c *Client) getFile(ctx context.Context, id string) (File, error) {
	if id == "" {
		return File{}, ErrNotFound
	}
	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + "/files/" + url.PathEscape(id)

	var raw json.RawMessage
	if err := c.getJSON(ctx, "get", endpoint, &raw); err != nil {
		return File{}, err
	}
	return decodeFile(raw)
}

// TitleQuery builds a query matching files whose title contains term.
func TitleQuery(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(term)
	return "title contains '" + escaped + "'"
}
