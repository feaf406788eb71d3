package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for scout.
type Store interface {
	// Credentials
	LoadRefreshToken(ctx context.Context, provider string) (string, error)
	SaveRefreshToken(ctx context.Context, provider, token string) error
	DeleteRefreshToken(ctx context.Context, provider string) error

	// Documents
	UpsertDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	SearchDocuments(ctx context.Context, tokens []string, limit int) ([]Document, error)
	CountDocuments(ctx context.Context) (int, error)

	Close() error
}

// Document is an entry in the local catalog.
type Document struct {
	ID        string
	Title     string
	Body      string
	URL       string
	CreatedAt time.Time
}
