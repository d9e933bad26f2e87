// Package sandbox runs model-generated SQL against a snapshot of the sales
// table. Every Executor is a trust boundary: generated code runs with the
// permissions the executor grants and nothing else validates it.
package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/store"
)

// SnapshotTable is the name the sales snapshot is exposed under.
const SnapshotTable = "df"

// ErrEmptyCode is returned when Execute receives only whitespace or fences.
var ErrEmptyCode = errors.New("empty query")

// Executor opens isolated sessions bound to one table snapshot.
type Executor interface {
	// Name identifies the executor in logs.
	Name() string

	// Open materializes table as SnapshotTable and returns a session over it.
	Open(ctx context.Context, table *dataset.Table) (Session, error)

	// Close releases executor-wide resources such as client connections.
	Close() error
}

// Session executes code against one snapshot. Sessions are not safe for
// concurrent use.
type Session interface {
	// Execute runs code and returns the rendered result.
	Execute(ctx context.Context, code string) (*Result, error)

	// Close discards the snapshot.
	Close() error
}

// WriteSnapshot copies table into db as SnapshotTable in one transaction.
func WriteSnapshot(ctx context.Context, db *sql.DB, table *dataset.Table) error {
	if table == nil {
		return errors.New("nil table")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back snapshot", "error", rbErr)
		}
	}()

	if _, err := store.WriteTable(ctx, tx, SnapshotTable, table.Records); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// WriteSnapshotFile writes table into a new SQLite file at path.
func WriteSnapshotFile(ctx context.Context, path string, table *dataset.Table) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Warn("failed to close snapshot file", "path", path, "error", closeErr)
		}
	}()
	return WriteSnapshot(ctx, db, table)
}
