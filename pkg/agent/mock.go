package agent

import (
	"context"
	"sync"
)

// MockLLM is a scripted LLMClient for tests. Each call to Complete
// consumes the next response; when the script runs out it repeats the
// last entry.
type MockLLM struct {
	mu        sync.Mutex
	Responses []CompletionResponse
	Errs      []error
	Requests  []CompletionRequest
	Model     string
}

var _ LLMClient = (*MockLLM)(nil)

func (m *MockLLM) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.Requests)
	m.Requests = append(m.Requests, in)

	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return CompletionResponse{}, m.Errs[idx]
	}
	if len(m.Responses) == 0 {
		return CompletionResponse{}, nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

func (m *MockLLM) GetModelName() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// CallCount returns how many completions were requested.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
