package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
)

// Delimiter is the field separator of sales CSV files.
const Delimiter = ';'

// ReadCSV parses a semicolon-delimited sales file with a header row.
func ReadCSV(r io.Reader) ([]domain.SalesRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var records []domain.SalesRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlankRow(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rec, err := buildRecord(idx, row, line, dataset.ParseDayFirstDate)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
