// Package dataset materializes the sales table in memory for analysis.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ashureev/salesbot/internal/domain"
)

// Table is an in-memory snapshot of the sales table.
type Table struct {
	Records  []domain.SalesRecord
	LoadedAt time.Time
}

// NewTable wraps records in a Table stamped with the current time.
func NewTable(records []domain.SalesRecord) *Table {
	return &Table{Records: records, LoadedAt: time.Now()}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Columns returns the column names in storage order.
func (t *Table) Columns() []string {
	return domain.SalesColumns()
}

// Row renders r as column values in storage order; nulls render as "".
func Row(r *domain.SalesRecord) []string {
	return []string{
		r.ProductID,
		r.Local,
		r.DateString(),
		formatFloat(r.PlannedQuantity),
		formatFloat(r.ActualQuantity),
		formatFloat(r.PlannedPrice),
		formatFloat(r.ActualPrice),
		r.PromotionType,
		r.ServiceLevel,
		strconv.FormatBool(r.FlagPrecoInvalido),
	}
}

// Preview renders the first n rows as an aligned text table.
func (t *Table) Preview(n int) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Columns(), "\t"))
	for i := 0; i < n && i < t.Len(); i++ {
		fmt.Fprintln(w, strings.Join(Row(&t.Records[i]), "\t"))
	}
	_ = w.Flush()
	return b.String()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
