package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"flickrgallery/sqliteutil"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const sqliteSchema = `create table if not exists kv (
	key   text primary key,
	value text not null
)`

const sqliteUpsert = `insert into kv (key, value) values (?, ?)
	on conflict(key) do update set value = excluded.value`

// SQLiteStore persists entries in a single-table SQLite database. Paired
// writes share one transaction.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// OpenSQLite preflights the database at path (quarantining a damaged file)
// and opens it, creating the schema if needed.
func OpenSQLite(path string, preflightTimeout time.Duration, logger *log.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot: sqlite path is empty")
	}
	logf := log.Printf
	if logger != nil {
		logf = logger.Printf
	}
	if _, err := sqliteutil.Preflight(context.Background(), path, preflightTimeout, logf); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("pragma journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: sqlite journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", false, ErrStoreClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, "select value from kv where key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("snapshot: sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

// GetMany reads keys inside one read transaction.
func (s *SQLiteStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: sqlite begin: %w", err)
	}
	defer tx.Rollback()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		var value string
		err := tx.QueryRowContext(ctx, "select value from kv where key = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("snapshot: sqlite get %s: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, Entry{Key: key, Value: value})
}

// SetMany upserts all entries in one transaction.
func (s *SQLiteStore) SetMany(ctx context.Context, entries ...Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: sqlite begin: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, sqliteUpsert, e.Key, e.Value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("snapshot: sqlite set %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, "delete from kv where key = ?", key); err != nil {
		return fmt.Errorf("snapshot: sqlite delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
