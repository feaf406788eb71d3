package store

// migrations are applied in order; entry i brings the schema to version i+1.
// Never edit an entry once released, append a new one instead.
var migrations = []string{
	`CREATE TABLE credentials (
		provider      TEXT PRIMARY KEY,
		refresh_token TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE documents (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL DEFAULT '',
		url        TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_documents_title ON documents(title)`,
}
