package events

import (
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
// It is safe for concurrent use.
type MockPublisher struct {
	mu sync.Mutex

	// Spies for method calls
	PublishFunc func(event EventType, payload any) error
	DecodeFunc  func(data []byte, returnValue any) error

	// Call records
	PublishCalls []PublishCall
}

// PublishCall holds the arguments for a call to Publish.
type PublishCall struct {
	Event   EventType
	Payload any
}

// NewMock creates a new mock Publisher.
func NewMock() *MockPublisher {
	return &MockPublisher{}
}

// Reset clears all call records.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = nil
	m.PublishFunc = nil
	m.DecodeFunc = nil
}

// Publish records the call and executes the mock function if provided.
func (m *MockPublisher) Publish(event EventType, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = append(m.PublishCalls, PublishCall{Event: event, Payload: payload})
	if m.PublishFunc != nil {
		return m.PublishFunc(event, payload)
	}
	return nil
}

// Decode executes the mock function if provided.
func (m *MockPublisher) Decode(data []byte, returnValue any) error {
	if m.DecodeFunc != nil {
		return m.DecodeFunc(data, returnValue)
	}
	return nil
}

// Close is a no-op on the mock.
func (m *MockPublisher) Close() {}
