// Package notes indexes local text and markdown files in memory and serves
// them as a search provider.
package notes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/btouchard/scout/internal/search"
)

const (
	Name = "notes"
	icon = "notes.svg"

	// maxNoteSize skips files too large to be notes.
	maxNoteSize = 1 << 20
)

var extensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

type note struct {
	Path  string
	Title string
	Body  string
}

// bleveNote is the indexed form of a note.
type bleveNote struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Index is an in-memory full-text index of notes.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	notes  map[string]note
	limit  int
	closed bool
}

// NewIndex creates an empty in-memory index. Searches return at most limit
// notes.
func NewIndex(limit int) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("creating notes index: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}
	return &Index{
		index: idx,
		notes: make(map[string]note),
		limit: limit,
	}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Store = false
	doc.AddFieldMappingsAt("title", title)

	body := bleve.NewTextFieldMapping()
	body.Store = false
	doc.AddFieldMappingsAt("body", body)

	m.DefaultMapping = doc
	return m
}

// Add indexes a note under path, replacing any previous version.
func (ix *Index) Add(path, title, body string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return errors.New("notes index is closed")
	}
	if err := ix.index.Index(path, bleveNote{Title: title, Body: body}); err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}
	ix.notes[path] = note{Path: path, Title: title, Body: body}
	return nil
}

// LoadDirs walks dirs and indexes every note file found. Unreadable files
// and missing directories are logged and skipped.
func (ix *Index) LoadDirs(ctx context.Context, dirs []string) (int, error) {
	var loaded int
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("skipping notes path", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if path != dir && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !extensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			info, err := d.Info()
			if err != nil || info.Size() > maxNoteSize {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("reading note", "path", path, "error", err)
				return nil
			}

			body := string(data)
			if err := ix.Add(path, titleOf(path, body), body); err != nil {
				return err
			}
			loaded++
			return nil
		})
		if err != nil {
			return loaded, fmt.Errorf("loading notes from %s: %w", dir, err)
		}
	}
	slog.Info("notes indexed", "count", loaded, "dirs", len(dirs))
	return loaded, nil
}

// titleOf uses the first markdown heading, or the file name.
func titleOf(path, body string) string {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
		break
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Count returns the number of indexed notes.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.notes)
}

// Close releases the index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.index.Close()
}

// Search implements search.Searcher. Results keep bleve's relevance order.
func (ix *Index) Search(ctx context.Context, id int, query string) []search.Result {
	tokens := search.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil
	}

	text := strings.Join(tokens, " ")
	titleQ := bleve.NewMatchQuery(text)
	titleQ.SetField("title")
	titleQ.SetBoost(2)
	bodyQ := bleve.NewMatchQuery(text)
	bodyQ.SetField("body")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery([]bquery.Query{titleQ, bodyQ}...))
	req.Size = ix.limit

	res, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		slog.Warn("notes search failed", "request_id", id, "error", err)
		return nil
	}

	results := make([]search.Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		n, ok := ix.notes[hit.ID]
		if !ok {
			continue
		}
		score := search.TokenMatches(tokens, n.Title) + search.TokenMatches(tokens, n.Body)
		if score == 0 {
			// Matched through analysis only, still relevant.
			score = 1
		}
		results = append(results, search.Result{
			ID:       n.Path,
			Title:    n.Title,
			Subtitle: n.Path,
			URL:      "file://" + filepath.ToSlash(n.Path),
			Score:    score,
		})
	}
	return results
}

// New returns the notes provider running its searches on runner.
func New(ix *Index, runner *search.Runner, buffer int) *search.BlockingProvider {
	return search.NewBlockingProvider(search.NewBase(Name, icon, buffer), ix, runner)
}
