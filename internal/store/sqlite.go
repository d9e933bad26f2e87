package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ashureev/salesbot/internal/domain"
	_ "modernc.org/sqlite"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options tunes how the SQLite file is opened.
type Options struct {
	// ReadOnly opens the file with mode=ro. The file must already exist.
	ReadOnly bool
}

// Ensure SQLiteStore implements Repository.
var _ Repository = (*SQLiteStore)(nil)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, opts Options) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("database path is empty")
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func buildDSN(dbPath string, opts Options) string {
	params := []string{"_pragma=busy_timeout(5000)"}
	if opts.ReadOnly {
		params = append(params, "mode=ro")
	}
	return "file:" + dbPath + "?" + strings.Join(params, "&")
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ReplaceSales drops the sales table and writes records in one transaction.
func (s *SQLiteStore) ReplaceSales(ctx context.Context, records []domain.SalesRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back sales replace", "error", rbErr)
		}
	}()

	n, err := WriteTable(ctx, tx, domain.SalesTable, records)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sales: %w", err)
	}
	return n, nil
}

// LoadSales returns every row of the sales table.
func (s *SQLiteStore) LoadSales(ctx context.Context) ([]RawSale, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(domain.SalesColumns(), ", "), domain.SalesTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close sales rows", "error", closeErr)
		}
	}()

	var out []RawSale
	for rows.Next() {
		var r RawSale
		if err := rows.Scan(
			&r.ProductID, &r.Local, &r.Date,
			&r.PlannedQuantity, &r.ActualQuantity,
			&r.PlannedPrice, &r.ActualPrice,
			&r.PromotionType, &r.ServiceLevel, &r.FlagPrecoInvalido,
		); err != nil {
			return nil, fmt.Errorf("scan sales row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return out, nil
}

// WriteTable (re)creates table name inside tx with the sales schema and
// inserts records. Any existing table of that name is dropped first.
func WriteTable(ctx context.Context, tx *sql.Tx, name string, records []domain.SalesRecord) (int64, error) {
	if !identPattern.MatchString(name) {
		return 0, fmt.Errorf("invalid table name %q", name)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(name)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", name, err)
	}

	cols := domain.SalesColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		name, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			slog.Warn("failed to close insert statement", "error", closeErr)
		}
	}()

	var n int64
	for i := range records {
		r := &records[i]
		if _, err := stmt.ExecContext(ctx,
			r.ProductID, r.Local, nullableString(r.DateString()),
			nullableFloat(r.PlannedQuantity), nullableFloat(r.ActualQuantity),
			nullableFloat(r.PlannedPrice), nullableFloat(r.ActualPrice),
			r.PromotionType, r.ServiceLevel, r.FlagPrecoInvalido,
		); err != nil {
			return n, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		n++
	}
	return n, nil
}

func createTableSQL(name string) string {
	return fmt.Sprintf(`
	CREATE TABLE %s (
		product_id TEXT,
		local TEXT,
		date TEXT,
		planned_quantity REAL,
		actual_quantity REAL,
		planned_price REAL,
		actual_price REAL,
		promotion_type TEXT,
		service_level NUMERIC,
		flag_preco_invalido INTEGER NOT NULL
	)`, name)
}

func nullableFloat(v *float64) interface{} {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return *v
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
