package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/scout/internal/search"
	"github.com/btouchard/scout/internal/store"
)

func seededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for _, d := range []store.Document{
		{ID: "1", Title: "Blue Monday", Body: "synth classic", URL: "https://example.com/1"},
		{ID: "2", Title: "Monday notes", Body: "blue ink everywhere"},
		{ID: "3", Title: "Unrelated", Body: "nothing"},
	} {
		require.NoError(t, s.UpsertDocument(ctx, &d))
	}
	return s
}

func TestSearcher_ScoresTitleAboveBody(t *testing.T) {
	t.Parallel()

	s := NewSearcher(seededStore(t), 10)
	results := s.Search(context.Background(), 1, "blue monday")

	require.Len(t, results, 2)
	byID := map[string]search.Result{}
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.Equal(t, 4, byID["1"].Score)
	assert.Equal(t, 3, byID["2"].Score)
	assert.Equal(t, "https://example.com/1", byID["1"].URL)
	assert.Equal(t, "synth classic", byID["1"].Subtitle)
}

func TestSearcher_EmptyQuery(t *testing.T) {
	t.Parallel()

	s := NewSearcher(seededStore(t), 10)
	assert.Empty(t, s.Search(context.Background(), 1, `""`))
}

type failingDocs struct{}

func (failingDocs) SearchDocuments(context.Context, []string, int) ([]store.Document, error) {
	return nil, errors.New("disk on fire")
}

func TestSearcher_StoreErrorYieldsNoResults(t *testing.T) {
	t.Parallel()

	s := NewSearcher(failingDocs{}, 10)
	assert.Empty(t, s.Search(context.Background(), 1, "anything"))
}

func TestProvider_EmitsThroughRunner(t *testing.T) {
	t.Parallel()

	runner := search.NewRunner(context.Background(), 2, time.Second)
	p := New(seededStore(t), runner, 10, 8)
	assert.Equal(t, Name, p.Name())

	p.SearchAsync(9, "synth")

	var events []search.Event
	timeout := time.After(5 * time.Second)
	for len(events) < 2 {
		select {
		case ev := <-p.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}

	assert.Equal(t, search.ResultsAvailable, events[0].Type)
	require.Len(t, events[0].Results, 1)
	assert.Equal(t, Name, events[0].Results[0].Provider)
	assert.Equal(t, search.SearchFinished, events[1].Type)
	assert.Equal(t, 9, events[1].ID)
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", snippet("short", 10))
	long := strings.Repeat("é", 12)
	assert.Equal(t, strings.Repeat("é", 10)+"…", snippet(long, 10))
}

func TestSearcher_BestMatchSurvivesLimit(t *testing.T) {
	t.Parallel()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		require.NoError(t, st.UpsertDocument(ctx, &store.Document{ID: fmt.Sprintf("a-%02d", i), Title: fmt.Sprintf("a blue %02d", i)}))
	}
	require.NoError(t, st.UpsertDocument(ctx, &store.Document{ID: "best", Title: "zz blue monday report"}))

	results := NewSearcher(st, 50).Search(ctx, 1, "blue monday report")

	require.Len(t, results, 50)
	assert.Equal(t, "best", results[0].ID)
	assert.Equal(t, 6, results[0].Score)
}
