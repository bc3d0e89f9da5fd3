package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLite keeps package documents in a documents table keyed by book path.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "opfkit.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		digest TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLite{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Path returns the database path.
func (s *SQLite) Path() string { return s.path }

// Document returns the text source and sink for the package document
// stored under bookPath.
func (s *SQLite) Document(bookPath string) *SQLiteDocument {
	return &SQLiteDocument{s: s, key: bookPath}
}

// Paths lists the stored book paths in order.
func (s *SQLite) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM documents ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("select paths: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SQLiteDocument is one row of the documents table.
type SQLiteDocument struct {
	s   *SQLite
	key string
}

// ReadText returns the stored body.
func (d *SQLiteDocument) ReadText(ctx context.Context) (string, error) {
	var body string
	err := d.s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE path = ?`, d.key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, d.key)
	}
	if err != nil {
		return "", fmt.Errorf("select %s: %w", d.key, err)
	}
	return body, nil
}

// WriteText upserts the body; an unchanged digest leaves the row alone.
func (d *SQLiteDocument) WriteText(ctx context.Context, text string) error {
	digest := Digest(text)
	var current string
	err := d.s.db.QueryRowContext(ctx, `SELECT digest FROM documents WHERE path = ?`, d.key).Scan(&current)
	if err == nil && current == digest {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("select %s: %w", d.key, err)
	}
	if _, err := d.s.db.ExecContext(ctx,
		`INSERT INTO documents(path,body,digest,updated_at) VALUES(?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET body=excluded.body, digest=excluded.digest, updated_at=excluded.updated_at`,
		d.key, text, digest, d.s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert %s: %w", d.key, err)
	}
	return nil
}

// UpdatedAt returns when the row last changed.
func (d *SQLiteDocument) UpdatedAt(ctx context.Context) (time.Time, error) {
	var ts string
	err := d.s.db.QueryRowContext(ctx, `SELECT updated_at FROM documents WHERE path = ?`, d.key).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, d.key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("select %s: %w", d.key, err)
	}
	return time.Parse(time.RFC3339, ts)
}
