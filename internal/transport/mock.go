package transport

import (
	"context"
	"sync"
)

// SentMessage records one delivery made through a Mock.
type SentMessage struct {
	ChatID int64
	Text   string
}

// Mock implements Transport for testing. It records every send and can
// be scripted to fail for specific chats.
type Mock struct {
	mu       sync.Mutex
	sent     []SentMessage
	failures map[int64]error
	closed   bool
}

// NewMock creates a Mock transport.
func NewMock() *Mock {
	return &Mock{failures: make(map[int64]error)}
}

// FailChat makes every subsequent Send to chatID return err.
func (m *Mock) FailChat(chatID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[chatID] = err
}

// HealChat clears a scripted failure for chatID.
func (m *Mock) HealChat(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, chatID)
}

// Send records the message, or returns the scripted failure for chatID.
func (m *Mock) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[chatID]; ok {
		return err
	}
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Text: text})
	return nil
}

// Sent returns a copy of all recorded deliveries.
func (m *Mock) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the recorded deliveries for one chat.
func (m *Mock) SentTo(chatID int64) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMessage
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Reset clears recorded deliveries and scripted failures.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.failures = make(map[int64]error)
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
