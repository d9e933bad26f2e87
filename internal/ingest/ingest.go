package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/salesbot/internal/domain"
	"github.com/ashureev/salesbot/internal/store"
)

// Stage identifies which step of an ingestion failed.
type Stage string

const (
	StageRead  Stage = "read"
	StageWrite Stage = "write"
)

// Error reports an ingestion failure together with the stage it happened in.
type Error struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures a single ingestion run.
type Options struct {
	// Input is the CSV or XLSX file to read.
	Input string
	// Sheet selects the workbook sheet for XLSX input.
	Sheet string
}

// Summary describes a completed ingestion.
type Summary struct {
	Input         string
	Rows          int64
	InvalidPrices int
	MissingDates  int
}

// ReadFile reads records from path, choosing the parser by file extension.
func ReadFile(path, sheet string) ([]domain.SalesRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, sheet)
	default:
		return ReadCSV(f)
	}
}

// Run reads opts.Input and replaces the sales table with its contents.
func Run(ctx context.Context, opts Options, w store.SalesWriter) (Summary, error) {
	summary := Summary{Input: opts.Input}

	records, err := ReadFile(opts.Input, opts.Sheet)
	if err != nil {
		return summary, &Error{Stage: StageRead, Path: opts.Input, Err: err}
	}
	for i := range records {
		if records[i].FlagPrecoInvalido {
			summary.InvalidPrices++
		}
		if records[i].Date == nil {
			summary.MissingDates++
		}
	}

	n, err := w.ReplaceSales(ctx, records)
	if err != nil {
		return summary, &Error{Stage: StageWrite, Path: opts.Input, Err: err}
	}
	summary.Rows = n

	slog.Info("Sales ingested",
		"input", opts.Input,
		"rows", n,
		"invalid_prices", summary.InvalidPrices,
		"missing_dates", summary.MissingDates)
	return summary, nil
}
