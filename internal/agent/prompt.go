package agent

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/sandbox"
	"gopkg.in/yaml.v3"
)

// DefaultSystemTemplate is the built-in instruction. It is a text/template
// rendered with the fields of instructionData.
const DefaultSystemTemplate = `Você é um assistente analítico com acesso a uma tabela SQLite chamada ` + "`{{.Table}}`" + ` com {{.Rows}} linhas.

Regras obrigatórias:
1. Sempre responda em português do Brasil.
2. As colunas disponíveis são:
   - {{join .Columns ", "}}
3. Ignore linhas com flag_preco_invalido verdadeiro (flag_preco_invalido = 1) ao calcular totais ou médias.
4. Mostre sempre a consulta SQL que você executou e depois o resultado.

Use a ferramenta ` + "`run_sql`" + ` para consultar a tabela. As datas estão no formato AAAA-MM-DD.

Primeiras linhas da tabela:
{{.Preview}}`

// instructionFile is the YAML layout of PROMPT_FILE.
type instructionFile struct {
	System string `yaml:"system"`
}

type instructionData struct {
	Table   string
	Rows    int
	Columns []string
	Preview string
}

// Instruction renders the system message for one table snapshot.
type Instruction struct {
	tmpl *template.Template
}

// DefaultInstruction returns the built-in instruction.
func DefaultInstruction() *Instruction {
	inst, err := ParseInstruction(DefaultSystemTemplate)
	if err != nil {
		panic(err)
	}
	return inst
}

// ParseInstruction compiles a system message template.
func ParseInstruction(text string) (*Instruction, error) {
	tmpl, err := template.New("system").
		Funcs(template.FuncMap{"join": strings.Join}).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse instruction: %w", err)
	}
	return &Instruction{tmpl: tmpl}, nil
}

// LoadInstruction reads an instruction override from a YAML file with a
// "system" key. An empty path returns the default.
func LoadInstruction(path string) (*Instruction, error) {
	if path == "" {
		return DefaultInstruction(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruction file: %w", err)
	}
	var f instructionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode instruction file %s: %w", path, err)
	}
	if strings.TrimSpace(f.System) == "" {
		return nil, fmt.Errorf("instruction file %s: system is empty", path)
	}
	return ParseInstruction(f.System)
}

// Render produces the system message for table, previewing up to
// previewRows rows.
func (i *Instruction) Render(table *dataset.Table, previewRows int) (string, error) {
	var b strings.Builder
	err := i.tmpl.Execute(&b, instructionData{
		Table:   sandbox.SnapshotTable,
		Rows:    table.Len(),
		Columns: table.Columns(),
		Preview: table.Preview(previewRows),
	})
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return b.String(), nil
}
