// Package messaging provides outbound message delivery for KarunaBot.
//
// The primary transport is the Meta WhatsApp Cloud API; a Twilio-backed
// transport is available as an alternative. Both implement Service.
package messaging

import (
	"context"
	"strings"
	"sync"
)

// IsGroupSender reports whether a sender identifier denotes a group
// conversation rather than an individual.
func IsGroupSender(sender string) bool {
	return strings.Contains(sender, "@g.us")
}

// Service defines a pluggable outbound message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each transport applies its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message and returns the provider message id.
	SendMessage(ctx context.Context, to string, body string) (string, error)

	// MarkRead marks an inbound message as read. Transports that do not
	// support read receipts treat this as a no-op.
	MarkRead(ctx context.Context, messageID string) error
}

// SentMessage records one outbound message captured by MockService.
type SentMessage struct {
	To   string
	Body string
}

// MockService is a Service implementation for tests. It records sent
// messages and read marks and can be configured to fail.
type MockService struct {
	mu       sync.Mutex
	Sent     []SentMessage
	ReadIDs  []string
	SendErr  error
	Validate func(recipient string) (string, error)
}

// NewMockService creates an empty mock messaging service.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if m.Validate != nil {
		return m.Validate(recipient)
	}
	return recipient, nil
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return "mock-msg-id", nil
}

func (m *MockService) MarkRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadIDs = append(m.ReadIDs, messageID)
	return nil
}

// SentMessages returns a copy of the captured outbound messages.
func (m *MockService) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// ReadMarks returns a copy of the captured read-mark message ids.
func (m *MockService) ReadMarks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ReadIDs...)
}
