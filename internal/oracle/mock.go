package oracle

import (
	"context"
	"sync"
	"sync/atomic"
)

const MockName = "mock"

// Mock is a scripted oracle client for tests. Responses are returned in
// order; the last response repeats once the script is exhausted. Every
// prompt is recorded so tests can assert on prompt construction.
type Mock struct {
	mu        sync.Mutex
	responses []string
	prompts   []string

	// Err is returned for the first FailTimes calls when set. FailTimes
	// of zero with a non-nil Err fails every call.
	Err       error
	FailTimes int

	calls atomic.Int64
}

// NewMock creates a scripted client.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

// Name returns the client identifier.
func (m *Mock) Name() string { return MockName }

// Complete records the prompt and replays the script.
func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewError(KindTransport, MockName, err)
	}
	n := m.calls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	if m.Err != nil && (m.FailTimes == 0 || n <= int64(m.FailTimes)) {
		return "", m.Err
	}

	if len(m.responses) == 0 {
		return "", NewError(KindEmpty, MockName, nil)
	}
	idx := int(n) - 1
	if m.Err != nil {
		idx -= m.FailTimes
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return m.responses[idx], nil
}

// Calls returns how many completions were attempted.
func (m *Mock) Calls() int { return int(m.calls.Load()) }

// Prompts returns a copy of every prompt seen so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

var _ Client = (*Mock)(nil)
