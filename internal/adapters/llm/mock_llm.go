package llm

import (
	"context"
	"fmt"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// MockLLM answers without any network call. Useful for local development.
type MockLLM struct{}

var _ domain.Completer = (*MockLLM)(nil)

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(_ context.Context, history []domain.ChatMessage) (domain.Completion, error) {
	var prompt string
	if n := len(history); n > 0 {
		prompt = history[n-1].Content
	}
	return domain.Completion{
		Content: fmt.Sprintf("Te escucho. Dijiste %q (%d mensajes en la conversacion).", prompt, len(history)),
	}, nil
}
