package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/scout/internal/drive"
	"github.com/btouchard/scout/internal/notify"
)

func newDriveClient(t *testing.T, pages int, connect bool) *drive.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "expires_in": 3600})
	})
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			_, _ = fmt.Sscanf(tok, "p%d", &idx)
		}
		resp := map[string]any{"items": []map[string]any{
			{"id": fmt.Sprintf("f%d", idx), "title": fmt.Sprintf("File %d", idx), "modifiedDate": "2024-06-01T00:00:00Z"},
		}}
		if idx+1 < pages {
			resp["nextPageToken"] = fmt.Sprintf("p%d", idx+1)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "known" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "known", "title": "Known.pdf", "fileSize": "99", "downloadUrl": "https://dl/known",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := drive.NewClient(drive.Config{
		APIURL:   srv.URL,
		TokenURL: srv.URL + "/token",
		ClientID: "id",
		PageSize: 1,
		MaxPages: 3,
	}, srv.Client(), nil)
	if connect {
		require.NoError(t, c.Connect(context.Background(), "rt").Wait(context.Background()))
	}
	return c
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureNotifier) Notify(e notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestListFiles_WhenDriveDisabled_ReturnsError(t *testing.T) {
	t.Parallel()

	result, err := ListFiles(nil, nil)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not configured")
}

func TestListFiles_WhenNotConnected_ReturnsError(t *testing.T) {
	t.Parallel()

	result, err := ListFiles(newDriveClient(t, 1, false), nil)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not connected")
}

func TestListFiles_CollectsAllPages(t *testing.T) {
	t.Parallel()

	result, err := ListFiles(newDriveClient(t, 2, true), nil)(context.Background(), makeReq(map[string]any{"query": "file"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "2 files")
	assert.Contains(t, text, "**File 0** (f0) modified 2024-06-01")
	assert.Contains(t, text, "**File 1** (f1)")
	assert.NotContains(t, text, "incomplete")
}

func TestListFiles_AppliesLimit(t *testing.T) {
	t.Parallel()

	result, err := ListFiles(newDriveClient(t, 3, true), nil)(context.Background(), makeReq(map[string]any{"limit": float64(1)}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "3 files (showing 1)")
	assert.NotContains(t, text, "File 2")
}

func TestListFiles_PageLimitIsReportedAndNotified(t *testing.T) {
	t.Parallel()

	n := &captureNotifier{}
	result, err := ListFiles(newDriveClient(t, 10, true), n)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "3 files")
	assert.Contains(t, text, "incomplete")

	require.Len(t, n.events, 1)
	assert.Equal(t, notify.DriveListTruncated, n.events[0].Type)
	assert.Equal(t, 3, n.events[0].Count)
}

func TestGetFile(t *testing.T) {
	t.Parallel()

	c := newDriveClient(t, 1, true)

	tests := []struct {
		name    string
		args    map[string]any
		isError bool
		want    string
	}{
		{"missing id", map[string]any{}, true, "file_id is required"},
		{"not found", map[string]any{"file_id": "nope"}, true, "File not found: nope"},
		{"found", map[string]any{"file_id": "known"}, false, "Known.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := GetFile(c)(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestGetFile_ShowsMetadata(t *testing.T) {
	t.Parallel()

	result, err := GetFile(newDriveClient(t, 1, true))(context.Background(), makeReq(map[string]any{"file_id": "known"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "- Size: 99 bytes")
	assert.Contains(t, text, "- Download: https://dl/known")
}

func TestDriveStatus(t *testing.T) {
	t.Parallel()

	result, err := DriveStatus(nil)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "not configured")

	result, err = DriveStatus(newDriveClient(t, 1, false))(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Drive: unauthenticated")
	assert.Contains(t, resultText(t, result), "scout connect")

	result, err = DriveStatus(newDriveClient(t, 1, true))(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Drive: authenticated")
	assert.Contains(t, resultText(t, result), "expires in")
}
