package agent

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ashureev/salesbot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMemoryWindow(t *testing.T) {
	t.Parallel()

	m := NewMemory(4)
	for i := 0; i < 3; i++ {
		m.Save(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	got := m.Messages()
	assert.Equal(t, []domain.StoredMessage{
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
		{Role: domain.RoleAssistant, Content: "a2"},
	}, got)

	got[0].Content = "mutated"
	assert.Equal(t, "q1", m.Messages()[0].Content, "Messages must return a copy")
	assert.Equal(t, 4, m.Len())
}

func TestMemoryConcurrentSave(t *testing.T) {
	t.Parallel()

	m := NewMemory(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Save(fmt.Sprint(i), "ok")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, m.Len())

	msgs := m.Messages()
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, domain.RoleUser, msgs[i].Role)
		assert.Equal(t, domain.RoleAssistant, msgs[i+1].Role)
	}
}
