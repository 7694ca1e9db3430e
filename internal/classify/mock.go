package classify

import (
	"context"
	"sync"

	"github.com/ayusman/mudra/internal/feature"
)

// MockClassifier is a test implementation of the Classifier interface.
// Queued results are returned in order; once the queue is drained the default
// result (or error) is returned for every call.
type MockClassifier struct {
	mu     sync.Mutex
	queue  []response
	result *Result
	err    error
	calls  int
}

type response struct {
	result *Result
	err    error
}

// NewMockClassifier creates a MockClassifier with the given default result.
func NewMockClassifier(result *Result) *MockClassifier {
	return &MockClassifier{result: result}
}

// SetError makes every subsequent call fail with err (after the queue).
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// QueueResult appends a one-shot successful response.
func (m *MockClassifier) QueueResult(result *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, response{result: result})
}

// QueueError appends a one-shot failing response.
func (m *MockClassifier) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, response{err: err})
}

// Calls returns how many predictions have been requested.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Predict returns the next queued response or the configured default.
func (m *MockClassifier) Predict(ctx context.Context, rec feature.Record) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next.result, next.err
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
