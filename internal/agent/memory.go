package agent

import (
	"sync"

	"github.com/ashureev/salesbot/internal/domain"
)

// Memory is the conversation history shared by every agent built for the
// process. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	messages []domain.StoredMessage
	max      int
}

// NewMemory creates a memory holding at most limit messages; limit <= 0
// keeps everything.
func NewMemory(limit int) *Memory {
	return &Memory{max: limit}
}

// Messages returns a copy of the stored history, oldest first.
func (m *Memory) Messages() []domain.StoredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoredMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Save appends one exchange.
func (m *Memory) Save(input, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages,
		domain.StoredMessage{Role: domain.RoleUser, Content: input},
		domain.StoredMessage{Role: domain.RoleAssistant, Content: output},
	)
	if m.max > 0 && len(m.messages) > m.max {
		m.messages = append([]domain.StoredMessage(nil), m.messages[len(m.messages)-m.max:]...)
	}
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
