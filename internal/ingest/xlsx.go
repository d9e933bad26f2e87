package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX parses a sales workbook. The named sheet is used, or the first
// sheet when sheet is empty.
func ReadXLSX(r io.Reader, sheet string) ([]domain.SalesRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyInput
		}
		sheet = sheets[0]
	}

	// Raw values keep dates as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	idx, err := indexHeader(rows[0])
	if err != nil {
		return nil, err
	}

	var records []domain.SalesRecord
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec, err := buildRecord(idx, row, i+2, parseSheetDate)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseSheetDate accepts Excel date serials as well as day-first text.
func parseSheetDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return dataset.ParseDayFirstDate(s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return nil, errors.Join(dataset.ErrInvalidDate, err)
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}
