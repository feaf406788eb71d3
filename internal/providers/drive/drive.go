// Package drive exposes the remote drive as a native asynchronous search
// provider. It never blocks a runner worker: each search drains a ListFiles
// call on its own goroutine.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gdrive "github.com/btouchard/scout/internal/drive"
	"github.com/btouchard/scout/internal/metrics"
	"github.com/btouchard/scout/internal/search"
)

const (
	Name = "drive"
	icon = "drive.svg"
)

// Lister is the part of the drive client the provider needs.
type Lister interface {
	IsAuthenticated() bool
	ListFiles(ctx context.Context, query string) *gdrive.ListFilesResponse
}

// Provider searches file titles in the remote drive.
type Provider struct {
	*search.Base
	client  Lister
	ctx     context.Context
	timeout time.Duration
	wg      sync.WaitGroup
}

// New creates the provider. ctx bounds every search; timeout bounds each one.
func New(ctx context.Context, client Lister, timeout time.Duration, buffer int) *Provider {
	return &Provider{
		Base:    search.NewBase(Name, icon, buffer),
		client:  client,
		ctx:     ctx,
		timeout: timeout,
	}
}

// SearchAsync implements search.Provider.
func (p *Provider) SearchAsync(id int, query string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		start := time.Now()
		results := p.search(id, search.Tokenize(query))
		metrics.ObserveSearch(Name, time.Since(start), len(results))

		if len(results) > 0 {
			p.EmitResults(id, results)
		}
		p.EmitFinished(id)
	}()
}

// Wait blocks until every in-flight search has finished.
func (p *Provider) Wait() {
	p.wg.Wait()
}

func (p *Provider) search(id int, tokens []string) []search.Result {
	if len(tokens) == 0 || !p.client.IsAuthenticated() {
		return nil
	}

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	files, err := p.client.ListFiles(ctx, Query(tokens)).Collect(ctx)
	if err != nil {
		// Keep whatever pages arrived before the failure.
		slog.Warn("drive search incomplete",
			"request_id", id,
			"files", len(files),
			"error", err)
	}

	results := make([]search.Result, 0, len(files))
	for _, f := range files {
		score := search.TokenMatches(tokens, f.Title)
		if score == 0 {
			continue
		}
		results = append(results, toResult(f, score))
	}
	return results
}

// Query turns search tokens into a title query matching any token.
func Query(tokens []string) string {
	clauses := make([]string, 0, len(tokens))
	for _, t := range tokens {
		clauses = append(clauses, gdrive.TitleQuery(t))
	}
	return strings.Join(clauses, " or ")
}

func toResult(f gdrive.File, score int) search.Result {
	meta := map[string]string{}
	if f.ETag != "" {
		meta["etag"] = f.ETag
	}
	if !f.ModifiedDate.IsZero() {
		meta["modified"] = f.ModifiedDate.Format(time.RFC3339)
	}

	var subtitle string
	if f.Size > 0 {
		subtitle = humanSize(f.Size)
	}
	return search.Result{
		ID:       f.ID,
		Title:    f.Title,
		Subtitle: subtitle,
		URL:      f.DownloadURL,
		Score:    score,
		Metadata: meta,
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
