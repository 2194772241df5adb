package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a scripted Provider for tests. Responses are played back
// in FIFO order; when the queue is empty the fixed response (SetResponse)
// is repeated.
type MockProvider struct {
	mu       sync.Mutex
	queue    []mockTurn
	fixed    *ChatResponse
	requests []ChatRequest
}

type mockTurn struct {
	resp *ChatResponse
	err  error
}

// NewMockProvider creates an empty mock. With no scripted responses, Chat
// returns a plain "ok" text turn.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

// SetResponse sets the response repeated once the queue is drained.
func (m *MockProvider) SetResponse(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed = resp
}

// QueueResponse appends a response to play back in order.
func (m *MockProvider) QueueResponse(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockTurn{resp: resp})
}

// QueueToolCall appends a response that invokes a single tool.
func (m *MockProvider) QueueToolCall(name string, args map[string]interface{}) {
	m.QueueResponse(&ChatResponse{
		ToolCalls: []ToolCall{{
			ID:   fmt.Sprintf("call-%d", len(m.queue)+1),
			Name: name,
			Args: args,
		}},
		StopReason: "tool_use",
	})
}

// QueueError appends a transport failure.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockTurn{err: err})
}

// Chat records the request and plays back the next scripted turn.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.queue) > 0 {
		turn := m.queue[0]
		m.queue = m.queue[1:]
		if turn.err != nil {
			return nil, turn.err
		}
		return turn.resp, nil
	}
	if m.fixed != nil {
		return m.fixed, nil
	}
	return &ChatResponse{Content: "ok", StopReason: "end_turn"}, nil
}

// LastRequest returns the most recent request, or nil before any call.
func (m *MockProvider) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

// Requests returns a copy of all recorded requests.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.requests...)
}

// CallCount returns the number of Chat invocations.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
