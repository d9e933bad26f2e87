// Package ingest converts raw sales files into typed records.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// ErrEmptyInput is returned when the input has no header row.
var ErrEmptyInput = errors.New("input has no header row")

var requiredColumns = []string{
	domain.ColDate,
	domain.ColPlannedQuantity,
	domain.ColActualQuantity,
	domain.ColPlannedPrice,
	domain.ColActualPrice,
}

type dateFunc func(string) (*time.Time, error)

// columnIndex maps a normalized column name to its position in the header.
type columnIndex map[string]int

// NormalizeHeader trims and lower-cases a header cell. A leading UTF-8 BOM
// is dropped.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func indexHeader(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

func (c columnIndex) get(row []string, col string) string {
	i, ok := c[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// buildRecord coerces one data row. line is the 1-based source line used in
// error messages.
func buildRecord(idx columnIndex, row []string, line int, parseDate dateFunc) (domain.SalesRecord, error) {
	date, err := parseDate(idx.get(row, domain.ColDate))
	if err != nil {
		return domain.SalesRecord{}, fmt.Errorf("line %d: %w", line, err)
	}

	r := domain.SalesRecord{
		ProductID:       idx.get(row, domain.ColProductID),
		Local:           idx.get(row, domain.ColLocal),
		Date:            date,
		PlannedQuantity: dataset.ParseNumber(idx.get(row, domain.ColPlannedQuantity)),
		ActualQuantity:  dataset.ParseNumber(idx.get(row, domain.ColActualQuantity)),
		PlannedPrice:    dataset.ParseNumber(idx.get(row, domain.ColPlannedPrice)),
		ActualPrice:     dataset.ParseNumber(idx.get(row, domain.ColActualPrice)),
		PromotionType:   idx.get(row, domain.ColPromotionType),
		ServiceLevel:    idx.get(row, domain.ColServiceLevel),
	}
	r.FlagPrecoInvalido = r.HasInvalidPrice()
	return r, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
