// Package chat serves the conversation endpoints and keeps the transcript.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ashureev/salesbot/internal/agent"
	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
)

// EmptyMessageResponse is returned for a missing or empty message.
const EmptyMessageResponse = "Mensagem vazia."

const errorResponsePrefix = "Erro ao processar a pergunta: "

// Loader reads a fresh table snapshot.
type Loader interface {
	Load(ctx context.Context) (*dataset.Table, error)
}

// Runner answers one question.
type Runner interface {
	Invoke(ctx context.Context, input string) (agent.Result, error)
}

// AgentFactory builds a Runner bound to a table snapshot.
type AgentFactory interface {
	New(table *dataset.Table) (Runner, error)
}

// AgentFactoryFunc adapts a function to AgentFactory.
type AgentFactoryFunc func(table *dataset.Table) (Runner, error)

// New implements AgentFactory.
func (f AgentFactoryFunc) New(table *dataset.Table) (Runner, error) {
	return f(table)
}

// MemorySizer is implemented by factories that expose their shared memory.
type MemorySizer interface {
	Memory() *agent.Memory
}

// FromFactory adapts an agent.Factory. The result also implements MemorySizer.
func FromFactory(f *agent.Factory) AgentFactory {
	return factoryAdapter{f: f}
}

type factoryAdapter struct {
	f *agent.Factory
}

func (a factoryAdapter) New(table *dataset.Table) (Runner, error) {
	ag, err := a.f.New(table)
	if err != nil {
		return nil, err
	}
	return ag, nil
}

func (a factoryAdapter) Memory() *agent.Memory {
	return a.f.Memory()
}

// Transcript is the process-wide, append-only list of turns.
type Transcript struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a turn at the end.
func (t *Transcript) Append(turn domain.Turn) {
	t.mu.Lock()
	t.turns = append(t.turns, turn)
	t.mu.Unlock()
}

// Turns returns a copy of all turns, oldest first. It never returns nil.
func (t *Transcript) Turns() []domain.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Service runs conversation turns one at a time.
type Service struct {
	loader     Loader
	factory    AgentFactory
	transcript *Transcript
	logger     *slog.Logger

	// turnMu serializes turns so memory and transcript advance together.
	turnMu sync.Mutex
}

// NewService creates a Service with an empty transcript.
func NewService(loader Loader, factory AgentFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader:     loader,
		factory:    factory,
		transcript: NewTranscript(),
		logger:     logger,
	}
}

// Chat answers message. Failures are reported inside the returned text and
// every non-empty message appends exactly one turn.
func (s *Service) Chat(ctx context.Context, message string) string {
	if message == "" {
		return EmptyMessageResponse
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	start := time.Now()
	response, err := s.answer(ctx, message)
	if err != nil {
		s.logger.Warn("Chat turn failed", "error", err, "duration", time.Since(start))
		response = errorResponsePrefix + err.Error()
	} else {
		s.logger.Info("Chat turn completed",
			"message_length", len(message),
			"response_length", len(response),
			"duration", time.Since(start),
		)
	}

	s.transcript.Append(domain.Turn{UserMessage: message, BotResponse: response})
	s.logger.Debug("Conversation state", s.stateAttrs()...)
	return response
}

func (s *Service) stateAttrs() []any {
	attrs := []any{"turns", s.transcript.Len()}
	if ms, ok := s.factory.(MemorySizer); ok {
		attrs = append(attrs, "memory_messages", ms.Memory().Len())
	}
	return attrs
}

func (s *Service) answer(ctx context.Context, message string) (response string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Chat turn panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%v", r)
		}
	}()

	table, err := s.loader.Load(ctx)
	if err != nil {
		return "", err
	}
	runner, err := s.factory.New(table)
	if err != nil {
		return "", err
	}
	result, err := runner.Invoke(ctx, message)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// History returns all turns, oldest first.
func (s *Service) History() []domain.Turn {
	return s.transcript.Turns()
}
