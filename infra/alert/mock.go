package alert

import "sync"

// MockBroadcaster records published events for tests.
type MockBroadcaster struct {
	mu     sync.Mutex
	events map[string][]any
}

// NewMockBroadcaster creates an empty recorder.
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{events: make(map[string][]any)}
}

// Publish records the event under its channel.
func (m *MockBroadcaster) Publish(channel string, event any) {
	m.mu.Lock()
	m.events[channel] = append(m.events[channel], event)
	m.mu.Unlock()
}

// Close implements alert.Broadcaster.
func (m *MockBroadcaster) Close() error { return nil }

// Events returns the events published on the channel, in order.
func (m *MockBroadcaster) Events(channel string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.events[channel]))
	copy(out, m.events[channel])
	return out
}

// Channels returns every channel that received at least one event.
func (m *MockBroadcaster) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for ch := range m.events {
		out = append(out, ch)
	}
	return out
}
