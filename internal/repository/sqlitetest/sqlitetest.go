// Package sqlitetest opens throwaway SQLite databases carrying the bookwyrm
// schema, for tests that need a real SQL engine without a Postgres server.
package sqlitetest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Schema mirrors migrations/ in SQLite dialect.
const Schema = `
CREATE TABLE genres (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

INSERT INTO genres (code, name) VALUES
    ('fiction', 'Fiction'),
    ('non-fiction', 'Non-Fiction'),
    ('sci-fi', 'Science Fiction'),
    ('fantasy', 'Fantasy'),
    ('mystery', 'Mystery'),
    ('unknown', 'Unknown');

CREATE TABLE books (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL,
    author           TEXT NOT NULL,
    genre            TEXT,
    rating           REAL,
    book_notes       TEXT,
    to_be_read       BOOLEAN NOT NULL DEFAULT 0,
    is_read          BOOLEAN NOT NULL DEFAULT 0,
    shelved          BOOLEAN NOT NULL DEFAULT 0,
    favorite         BOOLEAN NOT NULL DEFAULT 0,
    publication_date TEXT,
    isbn             TEXT UNIQUE,
    language         TEXT,
    publisher        TEXT,
    page_count       INTEGER CHECK (page_count >= 0),
    vibes            TEXT,
    tags             TEXT,
    emoji            TEXT,
    is_deleted       BOOLEAN NOT NULL DEFAULT 0,
    deleted_at       TIMESTAMP,
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL,
    CONSTRAINT books_deleted_at_matches_flag CHECK (is_deleted = (deleted_at IS NOT NULL))
);

CREATE TABLE book_photos (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id       TEXT NOT NULL REFERENCES books (id) ON DELETE CASCADE,
    s3_key        TEXT NOT NULL,
    thumbnail_key TEXT,
    content_type  TEXT NOT NULL,
    size_bytes    INTEGER NOT NULL DEFAULT 0,
    uploaded_at   TIMESTAMP NOT NULL
);

CREATE TABLE reading_days (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    read_date  TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE job_locks (
    name        TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    acquired_at TIMESTAMP NOT NULL
);
`

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open creates a fresh database file under t.TempDir() and applies Schema.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bookwyrm.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	// one connection: transactions and plain reads share the file lock
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
