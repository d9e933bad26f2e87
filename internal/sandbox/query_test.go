package sandbox

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT 1", CleanCode("  SELECT 1 \n"))
	assert.Equal(t, "SELECT 1;", CleanCode("```sql\nSELECT 1;\n```"))
	assert.Equal(t, "SELECT 2", CleanCode("```\nSELECT 2\n```"))
	assert.Equal(t, "", CleanCode("```sql\n```"))
}

func TestReturnsRows(t *testing.T) {
	t.Parallel()

	for _, q := range []string{
		"SELECT * FROM df",
		"select 1",
		"  WITH x AS (SELECT 1) SELECT * FROM x",
		"(SELECT 1)",
		"-- total\nSELECT 1",
		"/* a */ /* b */ pragma table_info(df)",
		"VALUES (1)",
		"EXPLAIN QUERY PLAN SELECT 1",
	} {
		assert.True(t, ReturnsRows(q), q)
	}
	for _, q := range []string{
		"DELETE FROM df",
		"CREATE TABLE t (x)",
		"UPDATE df SET local = 'x'",
		"-- SELECT\nDROP TABLE df",
	} {
		assert.False(t, ReturnsRows(q), q)
	}
}

func TestResultString(t *testing.T) {
	t.Parallel()

	r := &Result{Columns: []string{"local", "total"}, Rows: [][]string{{"SP", "10"}}, Total: 3}
	out := r.String()
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "SP")
	assert.Contains(t, out, "mostrando 1 de 3 linhas")

	empty := &Result{Columns: []string{"x"}}
	assert.Contains(t, empty.String(), "(nenhuma linha)")

	stmt := &Result{RowsAffected: 2}
	assert.Equal(t, "OK (2 linhas afetadas)", stmt.String())
}

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openMemory(t)
	require.NoError(t, WriteSnapshot(ctx, db, salesTable()))

	res, err := RunQuery(ctx, db, "SELECT product_id, actual_quantity, date FROM df ORDER BY product_id", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"product_id", "actual_quantity", "date"}, res.Columns)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []string{"P1", "8", "2024-01-31"}, res.Rows[0])

	res, err = RunQuery(ctx, db, "SELECT actual_quantity FROM df WHERE product_id = 'P3'", 10)
	require.NoError(t, err)
	assert.Equal(t, "NULL", res.Rows[0][0])

	res, err = RunQuery(ctx, db, "DELETE FROM df WHERE flag_preco_invalido = 1", 10)
	require.NoError(t, err)
	assert.False(t, res.HasRows())
	assert.Equal(t, int64(1), res.RowsAffected)

	_, err = RunQuery(ctx, db, "SELECT nope FROM df", 10)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "nope"))

	_, err = RunQuery(ctx, db, "   ", 10)
	assert.ErrorIs(t, err, ErrEmptyCode)
}
