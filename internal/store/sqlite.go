package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339

const memoryPath = ":memory:"

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		// Refresh tokens live here, keep the file private.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if err := s.applyMigration(i+1, migrations[i]); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) applyMigration(version int, stmt string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration %d: %w", version, err)
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Credentials ---

// LoadRefreshToken returns the stored refresh token for provider, or "" if
// none was saved.
func (s *SQLiteStore) LoadRefreshToken(ctx context.Context, provider string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT refresh_token FROM credentials WHERE provider = ?", provider).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading refresh token: %w", err)
	}
	return token, nil
}

func (s *SQLiteStore) SaveRefreshToken(ctx context.Context, provider, token string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (provider, refresh_token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		provider, token, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRefreshToken(ctx context.Context, provider string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE provider = ?", provider); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// --- Documents ---

func (s *SQLiteStore) UpsertDocument(ctx context.Context, d *Document) error {
	if d.ID == "" {
		return errors.New("document id is required")
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (id, title, body, url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			url = excluded.url`,
		d.ID, d.Title, d.Body, d.URL, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, body, url, created_at FROM documents WHERE id = ?", id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return d, err
}

// SearchDocuments returns documents whose title or body contains any of
// tokens, case-insensitively. Documents are ranked before limit applies:
// each token found in the title counts 2, in the body 1; ties go by title.
func (s *SQLiteStore) SearchDocuments(ctx context.Context, tokens []string, limit int) ([]Document, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var terms []string
	var args []any
	for _, tok := range tokens {
		pattern := "%" + escapeLike(strings.ToLower(tok)) + "%"
		terms = append(terms,
			`(CASE WHEN LOWER(title) LIKE ? ESCAPE '\' THEN 2 ELSE 0 END)`,
			`(CASE WHEN LOWER(body) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`)
		args = append(args, pattern, pattern)
	}

	query := "SELECT id, title, body, url, created_at FROM (" +
		"SELECT id, title, body, url, created_at, " + strings.Join(terms, " + ") + " AS score FROM documents" +
		") WHERE score > 0 ORDER BY score DESC, title"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var d Document
	var createdAt string
	if err := row.Scan(&d.ID, &d.Title, &d.Body, &d.URL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
