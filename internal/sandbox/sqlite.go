package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/salesbot/internal/dataset"
	_ "modernc.org/sqlite"
)

// SQLiteExecutor runs queries in-process against a private in-memory copy of
// the snapshot. Writes only ever touch that copy.
type SQLiteExecutor struct {
	maxRows int
	timeout time.Duration
}

var _ Executor = (*SQLiteExecutor)(nil)

// NewSQLiteExecutor creates an in-process executor. timeout bounds each
// statement; zero disables the bound.
func NewSQLiteExecutor(maxRows int, timeout time.Duration) *SQLiteExecutor {
	return &SQLiteExecutor{maxRows: maxRows, timeout: timeout}
}

// Name implements Executor.
func (e *SQLiteExecutor) Name() string { return "sqlite" }

// Close implements Executor.
func (e *SQLiteExecutor) Close() error { return nil }

// Open implements Executor.
func (e *SQLiteExecutor) Open(ctx context.Context, table *dataset.Table) (Session, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := WriteSnapshot(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("SQLite sandbox session opened", "rows", table.Len())
	return &sqliteSession{db: db, maxRows: e.maxRows, timeout: e.timeout}, nil
}

type sqliteSession struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

func (s *sqliteSession) Execute(ctx context.Context, code string) (*Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return RunQuery(ctx, s.db, code, s.maxRows)
}

func (s *sqliteSession) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close in-memory database: %w", err)
	}
	return nil
}
