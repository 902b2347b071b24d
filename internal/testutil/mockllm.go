package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/llm"
)

// MockLLM provides deterministic completions for testing. It matches the
// last user message against registered patterns and streams the
// corresponding response in fixed-size chunks.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	chunkSize int
	calls     []MockCall
}

type mockRule struct {
	pattern  string // substring match, case-insensitive
	response string
	err      error
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage string
	JSONOnly    bool
	Response    string
}

// NewMockLLM creates a mock with the given fallback response, returned when
// no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback, chunkSize: 8}
}

// AddResponse registers a pattern-response pair. When the last user message
// contains the pattern (case-insensitive), the response is streamed.
// Patterns are checked in registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// AddError registers a pattern that fails the call before any chunk is
// delivered.
func (m *MockLLM) AddError(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern: strings.ToLower(pattern),
		err:     err,
	})
}

// SetChunkSize controls how many runes each streamed chunk carries.
func (m *MockLLM) SetChunkSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.chunkSize = n
	}
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded calls, keeping registered responses.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// StreamCompletion implements llm.Client.
func (m *MockLLM) StreamCompletion(ctx context.Context, req llm.Request, cb llm.StreamCallback) (*llm.Response, error) {
	user := lastUserMessage(req)

	m.mu.Lock()
	response := m.fallback
	var ruleErr error
	for _, rule := range m.responses {
		if strings.Contains(strings.ToLower(user), rule.pattern) {
			response = rule.response
			ruleErr = rule.err
			break
		}
	}
	chunkSize := m.chunkSize
	m.calls = append(m.calls, MockCall{UserMessage: user, JSONOnly: req.JSONOnly, Response: response})
	m.mu.Unlock()

	if ruleErr != nil {
		return nil, ruleErr
	}

	var streamed strings.Builder
	runes := []rune(response)
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		chunk := string(runes[i:end])
		if cb != nil {
			if err := cb(ctx, chunk); err != nil {
				return &llm.Response{Content: streamed.String(), Incomplete: true}, err
			}
		}
		streamed.WriteString(chunk)
	}
	return &llm.Response{Content: response}, nil
}

func lastUserMessage(req llm.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == chat.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
