package agent

import (
	"errors"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/sandbox"
)

// ErrNilTable is returned when an agent is requested without data.
var ErrNilTable = errors.New("agent requires a table")

// Factory builds dataframe-bound agents that share one LLM client, one
// executor and one memory.
type Factory struct {
	llm         LLM
	exec        sandbox.Executor
	memory      *Memory
	instruction *Instruction
	cfg         Config
}

// NewFactory creates a Factory. A nil instruction selects the default and a
// nil memory an unbounded one.
func NewFactory(llm LLM, exec sandbox.Executor, memory *Memory, instruction *Instruction, cfg Config) *Factory {
	if instruction == nil {
		instruction = DefaultInstruction()
	}
	if memory == nil {
		memory = NewMemory(0)
	}
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.PreviewRows < 0 {
		cfg.PreviewRows = 0
	}
	return &Factory{llm: llm, exec: exec, memory: memory, instruction: instruction, cfg: cfg}
}

// New builds an agent bound to table.
func (f *Factory) New(table *dataset.Table) (*Agent, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	system, err := f.instruction.Render(table, f.cfg.PreviewRows)
	if err != nil {
		return nil, err
	}
	return &Agent{
		table:  table,
		system: system,
		memory: f.memory,
		llm:    f.llm,
		exec:   f.exec,
		cfg:    f.cfg,
	}, nil
}

// Memory returns the shared conversation memory.
func (f *Factory) Memory() *Memory {
	return f.memory
}
