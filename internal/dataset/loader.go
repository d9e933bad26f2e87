package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/salesbot/internal/domain"
	"github.com/ashureev/salesbot/internal/shared"
	"github.com/ashureev/salesbot/internal/store"
)

// Loader reads the full sales table on every call. Nothing is cached.
type Loader struct {
	repo  store.SalesReader
	retry shared.RetryPolicy
}

// NewLoader creates a Loader reading from repo.
func NewLoader(repo store.SalesReader) *Loader {
	return &Loader{repo: repo, retry: shared.DefaultRetryPolicy()}
}

// Load materializes the current sales table, re-applying numeric and date
// coercion, the boolean cast of the invalid-price flag and the
// promotion_type default.
func (l *Loader) Load(ctx context.Context) (*Table, error) {
	raw, err := shared.RetryOnConflict(ctx, l.retry, "load_sales", l.repo.LoadSales)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	records := make([]domain.SalesRecord, len(raw))
	for i := range raw {
		records[i] = FromRaw(&raw[i])
	}

	slog.Debug("Dataset loaded", "rows", len(records))
	return NewTable(records), nil
}

// FromRaw coerces a stored row into a SalesRecord. The invalid-price flag
// is taken as stored, never recomputed.
func FromRaw(r *store.RawSale) domain.SalesRecord {
	return domain.SalesRecord{
		ProductID:         r.ProductID.String,
		Local:             r.Local.String,
		Date:              CoerceDate(r.Date.String),
		PlannedQuantity:   ParseNumber(r.PlannedQuantity.String),
		ActualQuantity:    ParseNumber(r.ActualQuantity.String),
		PlannedPrice:      ParseNumber(r.PlannedPrice.String),
		ActualPrice:       ParseNumber(r.ActualPrice.String),
		PromotionType:     FillPromotion(r.PromotionType.String, r.PromotionType.Valid),
		ServiceLevel:      r.ServiceLevel.String,
		FlagPrecoInvalido: ToBool(r.FlagPrecoInvalido),
	}
}
