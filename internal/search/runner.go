package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/btouchard/scout/internal/metrics"
)

// Searcher is a blocking search body. It runs on a worker goroutine and must
// not touch state owned by the caller. Implementations trap their own errors
// and return an empty result set instead.
type Searcher interface {
	Search(ctx context.Context, id int, query string) []Result
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, id int, query string) []Result

func (f SearcherFunc) Search(ctx context.Context, id int, query string) []Result {
	return f(ctx, id, query)
}

// Pending tracks one submitted search from submission until its completion
// handler has consumed it. It is bound to a single worker invocation and is
// never reused.
type Pending struct {
	id      int
	query   string
	results []Result
	started time.Time
}

// ID returns the request identity captured at submission.
func (p *Pending) ID() int { return p.id }

// Query returns the query the search was submitted with.
func (p *Pending) Query() string { return p.query }

// Results returns what the search body produced.
func (p *Pending) Results() []Result { return p.results }

// Elapsed returns the time since submission.
func (p *Pending) Elapsed() time.Duration { return time.Since(p.started) }

// Runner executes blocking search bodies on a bounded set of workers.
type Runner struct {
	ctx     context.Context
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a Runner allowing at most workers concurrent bodies.
// Bodies inherit ctx; a non-zero timeout bounds each one individually.
// Cancelling ctx makes queued searches complete with no results.
func NewRunner(ctx context.Context, workers int, timeout time.Duration) *Runner {
	if workers < 1 {
		workers = 4
	}
	return &Runner{
		ctx:     ctx,
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
	}
}

// Run schedules search on a worker and returns immediately. done is called
// exactly once, from the worker goroutine, with the completed Pending.
func (r *Runner) Run(id int, query string, search Searcher, done func(*Pending)) {
	p := &Pending{
		id:      id,
		query:   query,
		started: time.Now(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		p.results = r.invoke(p, search)
		done(p)
	}()
}

// Wait blocks until every scheduled body and completion handler has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) invoke(p *Pending, search Searcher) (results []Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("search body panicked",
				"request_id", p.id,
				"panic", fmt.Sprint(rec))
			results = nil
		}
	}()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		slog.Debug("search dropped before start", "request_id", p.id, "error", err)
		return nil
	}
	defer r.sem.Release(1)

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return search.Search(ctx, p.id, p.query)
}

// BlockingProvider adapts a blocking Searcher to the Provider contract by
// running each search on a Runner.
type BlockingProvider struct {
	*Base
	searcher Searcher
	runner   *Runner
}

// NewBlockingProvider creates a provider that delegates to searcher.
func NewBlockingProvider(base *Base, searcher Searcher, runner *Runner) *BlockingProvider {
	return &BlockingProvider{
		Base:     base,
		searcher: searcher,
		runner:   runner,
	}
}

// SearchAsync submits the search and returns without waiting for it.
func (p *BlockingProvider) SearchAsync(id int, query string) {
	p.runner.Run(id, query, p.searcher, p.blockingSearchFinished)
}

func (p *BlockingProvider) blockingSearchFinished(pending *Pending) {
	metrics.ObserveSearch(p.Name(), pending.Elapsed(), len(pending.results))

	p.EmitResults(pending.ID(), pending.Results())
	p.EmitFinished(pending.ID())
}
