// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"database/sql"

	"github.com/ashureev/salesbot/internal/domain"
)

// RawSale is one sales row as the storage engine returns it, before any
// coercion. Numeric columns come back as text so callers can re-validate
// them; the flag keeps whatever representation the driver produced.
type RawSale struct {
	ProductID         sql.NullString
	Local             sql.NullString
	Date              sql.NullString
	PlannedQuantity   sql.NullString
	ActualQuantity    sql.NullString
	PlannedPrice      sql.NullString
	ActualPrice       sql.NullString
	PromotionType     sql.NullString
	ServiceLevel      sql.NullString
	FlagPrecoInvalido any
}

// SalesWriter replaces the durable sales table.
type SalesWriter interface {
	// ReplaceSales drops any prior sales content and writes records in a
	// single transaction. It returns the number of rows written.
	ReplaceSales(ctx context.Context, records []domain.SalesRecord) (int64, error)
}

// SalesReader reads the durable sales table.
type SalesReader interface {
	// LoadSales returns every row of the sales table.
	LoadSales(ctx context.Context) ([]RawSale, error)
}

// Repository defines the interface for persisting sales data.
type Repository interface {
	SalesWriter
	SalesReader

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
