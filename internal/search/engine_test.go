package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers from a fixed table on its own goroutine.
type fakeProvider struct {
	*Base
	results []Result
	delay   time.Duration
	calls   atomic.Int32
}

func newFakeProvider(name string, delay time.Duration, results ...Result) *fakeProvider {
	return &fakeProvider{
		Base:    NewBase(name, "", 16),
		results: results,
		delay:   delay,
	}
}

func (f *fakeProvider) SearchAsync(id int, query string) {
	f.calls.Add(1)
	go func() {
		time.Sleep(f.delay)
		tokens := Tokenize(query)
		var matched []Result
		for _, r := range f.results {
			if score := TokenMatches(tokens, r.Title); score > 0 {
				r.Score = score
				matched = append(matched, r)
			}
		}
		if len(matched) > 0 {
			f.EmitResults(id, matched)
		}
		f.EmitFinished(id)
	}()
}

func startEngine(t *testing.T, cfg EngineConfig, providers ...Provider) *Engine {
	t.Helper()

	e, err := NewEngine(cfg, providers...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func TestEngine_Search_MergesAndRanksAcrossProviders(t *testing.T) {
	t.Parallel()

	a := newFakeProvider("alpha", time.Millisecond,
		Result{ID: "a1", Title: "blue monday"},
		Result{ID: "a2", Title: "red sky"},
	)
	b := newFakeProvider("beta", 5*time.Millisecond,
		Result{ID: "b1", Title: "Blue Monday remix"},
		Result{ID: "b2", Title: "monday blues"},
	)
	e := startEngine(t, EngineConfig{}, a, b)

	resp, err := e.Search(context.Background(), "blue monday", Options{})
	require.NoError(t, err)

	require.Len(t, resp.Results, 3)
	assert.Equal(t, []string{"blue", "monday"}, resp.Tokens)
	assert.Empty(t, resp.Pending)
	for _, r := range resp.Results {
		assert.Equal(t, 2, r.Score)
	}
	assert.Equal(t, "alpha", resp.Results[0].Provider)
	assert.Equal(t, "beta", resp.Results[1].Provider)
	assert.Equal(t, "Blue Monday remix", resp.Results[1].Title)
}

func TestEngine_Search_EmptyQueryDoesNotDispatch(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("alpha", 0)
	e := startEngine(t, EngineConfig{}, p)

	resp, err := e.Search(context.Background(), `  "" ()  `, Options{})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.ID)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestEngine_Search_NoProvidersReturnsImmediately(t *testing.T) {
	t.Parallel()

	e := startEngine(t, EngineConfig{})

	resp, err := e.Search(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestEngine_Search_TimeoutReturnsPartialResults(t *testing.T) {
	t.Parallel()

	fast := newFakeProvider("fast", 0, Result{ID: "f", Title: "needle"})
	slow := newFakeProvider("slow", 2*time.Second, Result{ID: "s", Title: "needle"})
	e := startEngine(t, EngineConfig{}, fast, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	resp, err := e.Search(ctx, "needle", Options{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []string{"slow"}, resp.Pending)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "fast", resp.Results[0].Provider)
}

func TestEngine_Search_UsesCacheForRepeatedQueries(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("alpha", 0, Result{ID: "1", Title: "needle"})
	e := startEngine(t, EngineConfig{CacheSize: 8, CacheTTL: time.Minute}, p)

	first, err := e.Search(context.Background(), "needle", Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := e.Search(context.Background(), `title:"NEEDLE"`, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestEngine_PurgeCache_RedispatchesRepeatedQuery(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("alpha", 0, Result{ID: "1", Title: "needle"})
	e := startEngine(t, EngineConfig{CacheSize: 8, CacheTTL: time.Minute}, p)

	_, err := e.Search(context.Background(), "needle", Options{})
	require.NoError(t, err)

	e.PurgeCache()

	again, err := e.Search(context.Background(), "needle", Options{})
	require.NoError(t, err)
	assert.False(t, again.Cached)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestEngine_PurgeCache_DuringSearchSkipsCaching(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("slow", 200*time.Millisecond, Result{ID: "1", Title: "needle"})
	e := startEngine(t, EngineConfig{CacheSize: 8, CacheTTL: time.Minute}, p)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Search(context.Background(), "needle", Options{})
	}()
	time.Sleep(50 * time.Millisecond)
	e.PurgeCache()
	<-done

	again, err := e.Search(context.Background(), "needle", Options{})
	require.NoError(t, err)
	assert.False(t, again.Cached)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestEngine_Search_AppliesLimit(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("alpha", 0,
		Result{ID: "1", Title: "x one"},
		Result{ID: "2", Title: "x two"},
		Result{ID: "3", Title: "x three"},
	)
	e := startEngine(t, EngineConfig{MaxResults: 10}, p)

	resp, err := e.Search(context.Background(), "x", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestEngine_Search_ConcurrentRequestsDoNotCrossTalk(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("alpha", 2*time.Millisecond,
		Result{ID: "apple", Title: "apple"},
		Result{ID: "banana", Title: "banana"},
		Result{ID: "cherry", Title: "cherry"},
	)
	e := startEngine(t, EngineConfig{}, p)

	queries := []string{"apple", "banana", "cherry"}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		q := queries[i%len(queries)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Search(context.Background(), q, Options{})
			if !assert.NoError(t, err) {
				return
			}
			if assert.Len(t, resp.Results, 1) {
				assert.Equal(t, q, resp.Results[0].ID)
			}
		}()
	}
	wg.Wait()
}

func TestEngine_Search_EmitsNotifications(t *testing.T) {
	t.Parallel()

	p := newFakeProvider("alpha", 0, Result{ID: "1", Title: "needle"})
	e, err := NewEngine(EngineConfig{}, p)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []Notification
	e.SetNotifyFunc(func(n Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	resp, err := e.Search(context.Background(), "needle", Options{SessionID: "sess-1"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "search.results", got[0].Type)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, "search.finished", got[1].Type)
	assert.Equal(t, resp.ID, got[1].RequestID)
	assert.Equal(t, "sess-1", got[1].SessionID)
	assert.Equal(t, "alpha", got[1].Provider)
}

func TestNewEngine_RejectsDuplicateProviderNames(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(EngineConfig{}, newFakeProvider("dup", 0), newFakeProvider("dup", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestEngine_WithBlockingProvider(t *testing.T) {
	t.Parallel()

	r := NewRunner(context.Background(), 2, 0)
	p := NewBlockingProvider(NewBase("blocking", "", 8), echoSearcher(time.Millisecond), r)
	e := startEngine(t, EngineConfig{}, p)

	resp, err := e.Search(context.Background(), "hello world", Options{})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "blocking", resp.Results[0].Provider)
	assert.Equal(t, "hello world", resp.Results[0].Title)
}
