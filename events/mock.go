package events

import (
	"context"
	"sync"
)

// SentEvent is one event captured by MockSink.
type SentEvent struct {
	Type string
	Data []byte
}

// MockSink records events in memory. Set Err to make Send fail.
type MockSink struct {
	mu   sync.Mutex
	sent []SentEvent
	Err  error
}

// NewMockSink creates an empty mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Send records the event. It fails with Err when set, or like a real sink
// when ctx is already done.
func (m *MockSink) Send(ctx context.Context, eventType string, data []byte) error {
	if m.Err != nil {
		return m.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentEvent{Type: eventType, Data: append([]byte(nil), data...)})
	return nil
}

// Sent returns a copy of the recorded events.
func (m *MockSink) Sent() []SentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEvent(nil), m.sent...)
}
