package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

var (
	fencePattern   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	commentPattern = regexp.MustCompile(`(?s)^(\s*(--[^\n]*\n|/\*.*?\*/))*\s*`)
)

var rowKeywords = []string{"SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN"}

// Result is the outcome of one statement.
type Result struct {
	Columns []string
	// Rows holds at most the configured number of rows.
	Rows [][]string
	// Total counts every row the statement produced.
	Total        int
	RowsAffected int64
}

// HasRows reports whether the statement produced a result set.
func (r *Result) HasRows() bool {
	return len(r.Columns) > 0
}

// String renders the result as an aligned text table for the model.
func (r *Result) String() string {
	if !r.HasRows() {
		return fmt.Sprintf("OK (%d linhas afetadas)", r.RowsAffected)
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(r.Columns, "\t"))
	for _, row := range r.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()

	switch {
	case r.Total == 0:
		b.WriteString("(nenhuma linha)\n")
	case r.Total > len(r.Rows):
		fmt.Fprintf(&b, "... (mostrando %d de %d linhas)\n", len(r.Rows), r.Total)
	}
	return b.String()
}

// CleanCode strips markdown fences and surrounding whitespace from code.
func CleanCode(code string) string {
	code = strings.TrimSpace(code)
	if m := fencePattern.FindStringSubmatch(code); m != nil {
		code = m[1]
	}
	return strings.TrimSpace(code)
}

// ReturnsRows reports whether code is a statement that yields a result set.
func ReturnsRows(code string) bool {
	head := commentPattern.ReplaceAllString(code, "")
	head = strings.TrimLeft(head, "( \t\r\n")
	for _, kw := range rowKeywords {
		if len(head) >= len(kw) && strings.EqualFold(head[:len(kw)], kw) {
			return true
		}
	}
	return false
}

// RunQuery executes code on db and collects at most maxRows rows.
func RunQuery(ctx context.Context, db *sql.DB, code string, maxRows int) (*Result, error) {
	code = CleanCode(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	if !ReturnsRows(code) {
		res, err := db.ExecContext(ctx, code)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = 0
		}
		return &Result{RowsAffected: n}, nil
	}

	rows, err := db.QueryContext(ctx, code)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close query rows", "error", closeErr)
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &Result{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		out.Total++
		if maxRows > 0 && len(out.Rows) >= maxRows {
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
