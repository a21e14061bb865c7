package share

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const defaultBusyTimeout = 5 * time.Second

// Share is one created gist.
type Share struct {
	ID        string    `db:"id" json:"id"`
	Filename  string    `db:"filename" json:"filename"`
	URL       string    `db:"url" json:"url"`
	Size      int       `db:"size" json:"size"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store records created shares in sqlite.
type Store struct {
	db *sqlx.DB
}

const createTablesSQL = `
	CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		url TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shares_created_at ON shares(created_at);
`

// OpenStore opens the sqlite file at path, creating it and its schema if
// needed. An empty path keeps everything in memory.
func OpenStore(path string) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to prepare database path: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_mode=rwc&_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
			path, int(defaultBusyTimeout/time.Millisecond))
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: serializes writes, and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(createTablesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("share schema init: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores sh, assigning its id and timestamp when unset.
func (s *Store) Record(ctx context.Context, sh *Share) error {
	if sh.ID == "" {
		sh.ID = uuid.New().String()
	}
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO shares (id, filename, url, size, created_at)
		VALUES (:id, :filename, :url, :size, :created_at)`, sh)
	return err
}

// Recent returns up to limit shares, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Share, error) {
	shares := []*Share{}
	err := s.db.SelectContext(ctx, &shares,
		`SELECT id, filename, url, size, created_at FROM shares ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	return shares, err
}
