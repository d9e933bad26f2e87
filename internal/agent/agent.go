package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
	"github.com/ashureev/salesbot/internal/sandbox"
)

const toolRunSQL = "run_sql"

func runSQLTool() ToolSpec {
	return ToolSpec{
		Name: toolRunSQL,
		Description: "Executa uma consulta SQL (dialeto SQLite) na tabela " + sandbox.SnapshotTable +
			" e retorna o resultado em texto.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Consulta SQL a executar.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Agent answers questions about one table snapshot. It is built per turn and
// discarded afterwards; only its Memory outlives it.
type Agent struct {
	table  *dataset.Table
	system string
	memory *Memory
	llm    LLM
	exec   sandbox.Executor
	cfg    Config
}

// Invoke runs the tool loop for input. The exchange is saved to memory when
// the loop finishes without error.
func (a *Agent) Invoke(ctx context.Context, input string) (Result, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	var session sandbox.Session
	defer func() {
		if session == nil {
			return
		}
		if err := session.Close(); err != nil {
			slog.Warn("failed to close sandbox session", "executor", a.exec.Name(), "error", err)
		}
	}()

	messages := a.buildMessages(input)
	tools := []ToolSpec{runSQLTool()}
	var steps []Step

	for i := 0; i < a.cfg.MaxIterations; i++ {
		completion, err := a.llm.Complete(ctx, messages, tools)
		if err != nil {
			return Result{Steps: steps}, err
		}
		if len(completion.ToolCalls) == 0 {
			a.memory.Save(input, completion.Content)
			return Result{Output: completion.Content, Steps: steps}, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			if session == nil && call.Name == toolRunSQL {
				session, err = a.exec.Open(ctx, a.table)
				if err != nil {
					return Result{Steps: steps}, fmt.Errorf("open %s sandbox: %w", a.exec.Name(), err)
				}
			}
			step := runTool(ctx, session, call)
			steps = append(steps, step)
			messages = append(messages, Message{Role: RoleTool, ToolCallID: call.ID, Content: step.Output})
		}
	}

	slog.Warn("Agent stopped at iteration limit", "max_iterations", a.cfg.MaxIterations, "steps", len(steps))
	a.memory.Save(input, StoppedOutput)
	return Result{Output: StoppedOutput, Steps: steps}, nil
}

func (a *Agent) buildMessages(input string) []Message {
	history := a.memory.Messages()
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: a.system})
	for _, m := range history {
		role := RoleUser
		if m.Role == domain.RoleAssistant {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: m.Content})
	}
	return append(messages, Message{Role: RoleUser, Content: input})
}

// runTool executes one call. Failures become tool output so the model can
// correct itself.
func runTool(ctx context.Context, session sandbox.Session, call ToolCall) Step {
	step := Step{Tool: call.Name, Input: call.Arguments}
	if call.Name != toolRunSQL {
		step.Failed = true
		step.Output = fmt.Sprintf("Erro: ferramenta desconhecida %q. Use %s.", call.Name, toolRunSQL)
		return step
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		step.Failed = true
		step.Output = `Erro: argumentos inválidos; envie {"query": "<consulta SQL>"}.`
		return step
	}
	step.Input = args.Query

	res, err := session.Execute(ctx, args.Query)
	if err != nil {
		slog.Debug("Agent query failed", "error", err)
		step.Failed = true
		step.Output = "Erro: " + err.Error()
		return step
	}
	step.Output = res.String()
	return step
}
