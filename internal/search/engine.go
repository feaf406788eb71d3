package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/btouchard/scout/internal/metrics"
)

// Notification reports engine progress for one request.
type Notification struct {
	Type      string // "search.results", "search.finished"
	RequestID int
	Provider  string
	Query     string
	Count     int
	SessionID string
}

// NotifyFunc is called when a request makes progress.
type NotifyFunc func(Notification)

// EngineConfig tunes the Engine.
type EngineConfig struct {
	CacheSize  int
	CacheTTL   time.Duration
	MaxResults int
}

// Options are per-search settings.
type Options struct {
	Limit int
	// SessionID is passed through to notifications untouched.
	SessionID string
}

// Response is the merged outcome of one engine search.
type Response struct {
	ID      int
	Query   string
	Tokens  []string
	Results []Result
	// Pending lists providers that had not finished when the search returned.
	Pending []string
	Cached  bool
}

// Engine fans a query out to every registered provider and correlates the
// providers' events back to the originating request by id.
type Engine struct {
	providers []Provider
	nextID    atomic.Int64

	mu      sync.Mutex
	pending map[int]*request

	cache      *expirable.LRU[string, []Result]
	cacheGen   atomic.Uint64 // bumped by PurgeCache
	maxResults int
	onNotify   NotifyFunc
}

type request struct {
	id          int
	query       string
	sessionID   string
	outstanding map[string]struct{}
	results     []Result
	done        chan struct{}
}

// NewEngine creates an Engine over providers. Provider names must be unique.
func NewEngine(cfg EngineConfig, providers ...Provider) (*Engine, error) {
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		if _, dup := seen[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	e := &Engine{
		providers:  providers,
		pending:    make(map[int]*request),
		maxResults: cfg.MaxResults,
	}
	if cfg.CacheSize > 0 {
		e.cache = expirable.NewLRU[string, []Result](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return e, nil
}

// SetNotifyFunc sets the callback for request progress.
func (e *Engine) SetNotifyFunc(fn NotifyFunc) {
	e.onNotify = fn
}

// PurgeCache drops every cached response. Call it when a provider's backend
// becomes available so earlier answers without it are not replayed.
func (e *Engine) PurgeCache() {
	e.cacheGen.Add(1)
	if e.cache != nil {
		e.cache.Purge()
	}
}

// Providers returns the registered providers in registration order.
func (e *Engine) Providers() []Provider {
	return e.providers
}

// Run reads every provider's events until ctx is done. It must be running
// for Search to make progress.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range e.providers {
		g.Go(func() error {
			return e.dispatch(gctx, p)
		})
	}
	return g.Wait()
}

func (e *Engine) dispatch(ctx context.Context, p Provider) error {
	events := p.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			e.handle(p.Name(), ev)
		}
	}
}

func (e *Engine) handle(provider string, ev Event) {
	e.mu.Lock()
	req, ok := e.pending[ev.ID]
	if !ok {
		e.mu.Unlock()
		slog.Debug("dropping event for unknown request",
			"provider", provider,
			"request_id", ev.ID,
			"type", ev.Type.String())
		return
	}

	var n Notification
	var completed bool
	switch ev.Type {
	case ResultsAvailable:
		req.results = append(req.results, ev.Results...)
		n = Notification{Type: "search.results", Count: len(ev.Results)}
	case SearchFinished:
		delete(req.outstanding, provider)
		if len(req.outstanding) == 0 {
			delete(e.pending, req.id)
			completed = true
		}
		n = Notification{Type: "search.finished", Count: len(req.results)}
	}
	n.RequestID = req.id
	n.Provider = provider
	n.Query = req.query
	n.SessionID = req.sessionID
	e.mu.Unlock()

	e.emit(n)

	// Release the waiter only after the last notification went out.
	if completed {
		close(req.done)
	}
}

func (e *Engine) emit(n Notification) {
	if e.onNotify == nil {
		return
	}
	e.onNotify(n)
}

// Search sends query to every provider under a fresh request id and waits
// until all of them have finished or ctx is done. On ctx expiry it returns
// the partial response together with ctx.Err().
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	tokens := Tokenize(query)
	resp := &Response{Query: query, Tokens: tokens}
	if len(tokens) == 0 {
		return resp, nil
	}

	limit := opts.Limit
	if limit <= 0 || (e.maxResults > 0 && limit > e.maxResults) {
		limit = e.maxResults
	}

	key := strings.ToLower(strings.Join(tokens, " "))
	gen := e.cacheGen.Load()
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			metrics.CacheHit()
			resp.Results = truncate(slices.Clone(cached), limit)
			resp.Cached = true
			return resp, nil
		}
	}

	req := &request{
		id:          int(e.nextID.Add(1)),
		query:       query,
		sessionID:   opts.SessionID,
		outstanding: make(map[string]struct{}, len(e.providers)),
		done:        make(chan struct{}),
	}
	for _, p := range e.providers {
		req.outstanding[p.Name()] = struct{}{}
	}
	if len(req.outstanding) == 0 {
		close(req.done)
	}
	resp.ID = req.id

	e.mu.Lock()
	if len(req.outstanding) > 0 {
		e.pending[req.id] = req
	}
	e.mu.Unlock()

	slog.Debug("search dispatched",
		"request_id", req.id,
		"query", query,
		"providers", len(e.providers))

	for _, p := range e.providers {
		p.SearchAsync(req.id, query)
	}

	var waitErr error
	select {
	case <-req.done:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	e.mu.Lock()
	delete(e.pending, req.id)
	results := slices.Clone(req.results)
	for name := range req.outstanding {
		resp.Pending = append(resp.Pending, name)
	}
	e.mu.Unlock()

	sortResults(results)
	slices.Sort(resp.Pending)

	// A purge during the search means the answer may predate a backend
	// coming online.
	if waitErr == nil && e.cache != nil && e.cacheGen.Load() == gen {
		e.cache.Add(key, slices.Clone(results))
	}

	resp.Results = truncate(results, limit)
	return resp, waitErr
}

func sortResults(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Provider, b.Provider); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
