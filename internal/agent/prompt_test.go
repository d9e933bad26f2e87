package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultInstructionRender(t *testing.T) {
	t.Parallel()

	out, err := DefaultInstruction().Render(testTable(), 1)
	require.NoError(t, err)

	assert.Contains(t, out, "português do Brasil")
	assert.Contains(t, out, "`df`")
	assert.Contains(t, out, "com 2 linhas")
	assert.Contains(t, out, "product_id, local, date, planned_quantity, actual_quantity, planned_price, actual_price, promotion_type, service_level, flag_preco_invalido")
	assert.Contains(t, out, "flag_preco_invalido verdadeiro")
	assert.Contains(t, out, "Mostre sempre a consulta SQL")
	assert.Contains(t, out, "P1")
	assert.NotContains(t, out, "P2", "preview is limited to one row")
}

func TestLoadInstruction(t *testing.T) {
	t.Parallel()

	inst, err := LoadInstruction("")
	require.NoError(t, err)
	require.NotNil(t, inst)

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: |\n  Tabela {{.Table}} com colunas {{join .Columns \"|\"}}.\n"), 0o600))

	inst, err = LoadInstruction(path)
	require.NoError(t, err)
	out, err := inst.Render(testTable(), 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Tabela df com colunas product_id|local|"), out)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("system: \"\"\n"), 0o600))
	_, err = LoadInstruction(empty)
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("system: \"{{.Nope\"\n"), 0o600))
	_, err = LoadInstruction(broken)
	require.Error(t, err)

	_, err = LoadInstruction(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestInstructionUnknownField(t *testing.T) {
	t.Parallel()

	inst, err := ParseInstruction("{{.Missing}}")
	require.NoError(t, err)
	_, err = inst.Render(testTable(), 0)
	require.Error(t, err)
}
