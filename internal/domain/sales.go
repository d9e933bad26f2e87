// Package domain contains core domain types for the sales chatbot.
package domain

import "time"

// Column names of the sales table, in storage order.
const (
	ColProductID         = "product_id"
	ColLocal             = "local"
	ColDate              = "date"
	ColPlannedQuantity   = "planned_quantity"
	ColActualQuantity    = "actual_quantity"
	ColPlannedPrice      = "planned_price"
	ColActualPrice       = "actual_price"
	ColPromotionType     = "promotion_type"
	ColServiceLevel      = "service_level"
	ColFlagPrecoInvalido = "flag_preco_invalido"
)

// SalesTable is the name of the durable table written by ingestion.
const SalesTable = "sales"

// DateLayout is the ISO textual form dates are stored in.
const DateLayout = "2006-01-02"

// NoPromotion replaces null or blank promotion types when loading the dataset.
const NoPromotion = "sem promoção"

// SalesColumns returns the sales table columns in storage order.
func SalesColumns() []string {
	return []string{
		ColProductID, ColLocal, ColDate,
		ColPlannedQuantity, ColActualQuantity,
		ColPlannedPrice, ColActualPrice,
		ColPromotionType, ColServiceLevel, ColFlagPrecoInvalido,
	}
}

// SalesRecord is one row of the sales table.
// Nil numeric fields and a nil Date represent nulls.
type SalesRecord struct {
	ProductID         string
	Local             string
	Date              *time.Time
	PlannedQuantity   *float64
	ActualQuantity    *float64
	PlannedPrice      *float64
	ActualPrice       *float64
	PromotionType     string
	ServiceLevel      string
	FlagPrecoInvalido bool
}

// HasInvalidPrice reports whether both prices are exactly zero.
// A null price never counts as zero.
func (r *SalesRecord) HasInvalidPrice() bool {
	return r.PlannedPrice != nil && r.ActualPrice != nil &&
		*r.PlannedPrice == 0 && *r.ActualPrice == 0
}

// DateString returns the ISO date, or "" when the date is null.
func (r *SalesRecord) DateString() string {
	if r.Date == nil {
		return ""
	}
	return r.Date.Format(DateLayout)
}
