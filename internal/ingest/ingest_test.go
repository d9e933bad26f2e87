package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
	"github.com/ashureev/salesbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "Product_ID ; Local;DATE;planned_quantity;actual_quantity;planned_price;actual_price;promotion_type;service_level;extra\n" +
	"P1;SP;31/01/2024;10;8;0;0;;0.95;x\n" +
	"P2;RJ;01/02/2024;abc;5;9,9;10.5;desconto;0.9;y\n" +
	"P3;MG;;7;7;0;;  ;;z\n" +
	"\n"

func TestReadCSV(t *testing.T) {
	t.Parallel()

	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	r1 := records[0]
	assert.Equal(t, "P1", r1.ProductID)
	assert.Equal(t, "2024-01-31", r1.DateString())
	assert.True(t, r1.FlagPrecoInvalido)
	assert.Equal(t, "", r1.PromotionType)
	assert.Equal(t, "0.95", r1.ServiceLevel)

	r2 := records[1]
	assert.Equal(t, "2024-02-01", r2.DateString())
	assert.Nil(t, r2.PlannedQuantity, "non-numeric quantity becomes null")
	require.NotNil(t, r2.ActualQuantity)
	assert.Equal(t, 5.0, *r2.ActualQuantity)
	assert.Nil(t, r2.PlannedPrice, "comma-bearing price becomes null")
	assert.False(t, r2.FlagPrecoInvalido)

	r3 := records[2]
	assert.Nil(t, r3.Date)
	assert.Nil(t, r3.ActualPrice)
	assert.False(t, r3.FlagPrecoInvalido, "null price never counts as zero")
}

func TestReadCSVFlagMatchesPrices(t *testing.T) {
	t.Parallel()

	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	for _, r := range records {
		want := r.PlannedPrice != nil && r.ActualPrice != nil && *r.PlannedPrice == 0 && *r.ActualPrice == 0
		assert.Equal(t, want, r.FlagPrecoInvalido, r.ProductID)
	}
}

func TestReadCSVCommaNumbersAreNull(t *testing.T) {
	t.Parallel()

	in := "date;planned_quantity;actual_quantity;planned_price;actual_price\n" +
		"31/01/2024;1,234;2;0,0;0,00\n"
	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Nil(t, r.PlannedQuantity, "thousands separator is not a decimal point")
	assert.Nil(t, r.PlannedPrice)
	assert.Nil(t, r.ActualPrice)
	assert.False(t, r.FlagPrecoInvalido, "null prices never count as zero")
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = ReadCSV(strings.NewReader("product_id;planned_quantity;actual_quantity;planned_price;actual_price\nP1;1;1;1;1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "date")

	_, err = ReadCSV(strings.NewReader("date;planned_quantity;actual_quantity;planned_price;actual_price\n31/01/2024;1;1;1;1\nontem;1;1;1;1\n"))
	assert.ErrorIs(t, err, dataset.ErrInvalidDate)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadCSVShortRows(t *testing.T) {
	t.Parallel()

	records, err := ReadCSV(strings.NewReader("date;planned_quantity;actual_quantity;planned_price;actual_price;promotion_type\n31/01/2024;1\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].ActualQuantity)
	assert.Equal(t, "", records[0].PromotionType)
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "product_id", NormalizeHeader("\ufeff Product_ID "))
	assert.Equal(t, "date", NormalizeHeader("DATE"))
}

func writeWorkbook(t *testing.T, dir, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(dir, "sales.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, t.TempDir(), "Vendas", [][]any{
		{"product_id", "local", "date", "planned_quantity", "actual_quantity", "planned_price", "actual_price", "promotion_type"},
		{"P1", "SP", 45322.0, 10, 8, 0, 0, ""},
		{"P2", "RJ", "01/02/2024", "n/a", 5, 9.5, 10, "desconto"},
	})

	records, err := ReadFile(path, "Vendas")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2024-01-31", records[0].DateString())
	assert.True(t, records[0].FlagPrecoInvalido)
	assert.Equal(t, "2024-02-01", records[1].DateString())
	assert.Nil(t, records[1].PlannedQuantity)
	assert.Equal(t, "desconto", records[1].PromotionType)
}

func TestReadXLSXUnknownSheet(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, t.TempDir(), "Sheet1", [][]any{
		{"date", "planned_quantity", "actual_quantity", "planned_price", "actual_price"},
	})
	_, err := ReadFile(path, "Nope")
	require.Error(t, err)
}

type fakeWriter struct {
	got []domain.SalesRecord
	err error
}

func (f *fakeWriter) ReplaceSales(_ context.Context, records []domain.SalesRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = records
	return int64(len(records)), nil
}

func TestRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	w := &fakeWriter{}
	summary, err := Run(context.Background(), Options{Input: path}, w)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Rows)
	assert.Equal(t, 1, summary.InvalidPrices)
	assert.Equal(t, 1, summary.MissingDates)
	assert.Len(t, w.got, 3)
}

func TestRunStages(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Options{Input: filepath.Join(t.TempDir(), "missing.csv")}, &fakeWriter{})
	var ingestErr *Error
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, StageRead, ingestErr.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))
	boom := errors.New("disk full")
	_, err = Run(context.Background(), Options{Input: path}, &fakeWriter{err: boom})
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, StageWrite, ingestErr.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestRunIntoSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(input, []byte(sampleCSV), 0o600))

	s, err := store.NewSQLite(filepath.Join(dir, "sales.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = Run(context.Background(), Options{Input: input}, s)
	require.NoError(t, err)

	table, err := dataset.NewLoader(s).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.True(t, table.Records[0].FlagPrecoInvalido)
	assert.False(t, table.Records[1].FlagPrecoInvalido)
	assert.Equal(t, "sem promoção", table.Records[0].PromotionType)
	assert.Equal(t, "desconto", table.Records[1].PromotionType)
	assert.Equal(t, "sem promoção", table.Records[2].PromotionType)
}
