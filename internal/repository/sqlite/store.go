// Package sqlite provides a single-node SQLite backend for users and the
// token ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dtroode/townsquare-auth/internal/repository/sqlite/migrations"
)

const defaultQueryTimeout = 5 * time.Second

// Store owns the SQLite handle shared by the user and ledger repositories.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	now          func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite database at path and applies embedded migrations.
func Open(ctx context.Context, path string, queryTimeout time.Duration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newStore(db, queryTimeout), nil
}

func newStore(db *sql.DB, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Store{db: db, queryTimeout: queryTimeout, now: time.Now}
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// uniqueViolation returns the "table.column" that violated a unique
// constraint, if any.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		default:
			return "", false
		}
	}
	message := err.Error()
	const marker = "UNIQUE constraint failed: "
	idx := strings.Index(message, marker)
	if idx < 0 {
		return "", false
	}
	column := message[idx+len(marker):]
	if end := strings.IndexAny(column, " ,)"); end >= 0 {
		column = column[:end]
	}
	return column, true
}
