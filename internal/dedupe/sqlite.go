package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists seen IDs in a single-file database. Suited to
// deployments that want dedup state to survive restarts without any
// external service.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenSQLiteStore opens or creates the database at path and ensures the
// schema exists.
func OpenSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ttl: ttl}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// IsNew reports whether id has not been marked. Expired rows are
// deleted lazily on read.
func (s *SQLiteStore) IsNew(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var seenAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT seen_at FROM seen_items WHERE id = ?", id).Scan(&seenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying seen_items: %w", err)
	}
	if s.ttl > 0 && time.Now().UTC().Sub(seenAt) > s.ttl {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM seen_items WHERE id = ?", id); err != nil {
			return false, fmt.Errorf("expiring seen_items row: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// MarkSeen upserts id with the current time.
func (s *SQLiteStore) MarkSeen(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO seen_items (id, seen_at) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET seen_at = excluded.seen_at",
		id,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting seen_items row: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS seen_items (
		id TEXT PRIMARY KEY,
		seen_at TIMESTAMP NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating seen_items table: %w", err)
	}
	idx := "CREATE INDEX IF NOT EXISTS seen_items_seen_at_idx ON seen_items (seen_at)"
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("creating seen_items index: %w", err)
	}
	return nil
}
