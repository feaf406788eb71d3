package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/btouchard/scout/internal/store"
)

type importFile struct {
	Documents []importDocument `yaml:"documents"`
}

type importDocument struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	URL   string `yaml:"url"`
}

// readDocuments decodes an import file. Every document needs an id and a
// title; ids must be unique within the file.
func readDocuments(r io.Reader) ([]store.Document, error) {
	var f importFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Documents))
	docs := make([]store.Document, 0, len(f.Documents))
	for i, d := range f.Documents {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, fmt.Errorf("document %d: id is required", i+1)
		}
		if strings.TrimSpace(d.Title) == "" {
			return nil, fmt.Errorf("document %q: title is required", id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("document %q: duplicate id", id)
		}
		seen[id] = struct{}{}
		docs = append(docs, store.Document{ID: id, Title: d.Title, Body: d.Body, URL: d.URL})
	}
	return docs, nil
}

type documentWriter interface {
	UpsertDocument(ctx context.Context, d *store.Document) error
}

func importDocuments(ctx context.Context, w documentWriter, docs []store.Document) (int, error) {
	for i := range docs {
		if err := w.UpsertDocument(ctx, &docs[i]); err != nil {
			return i, fmt.Errorf("importing %q: %w", docs[i].ID, err)
		}
	}
	return len(docs), nil
}
