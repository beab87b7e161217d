package flow

import (
	"sync"
	"time"

	"github.com/karuna-es/karunabot/internal/models"
)

// Registry holds per-sender conversation sessions. Sessions are created on
// first contact and live for the process lifetime; conversation history is
// deliberately in-memory only.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Acquire returns the session for senderID with its lock held, creating it
// if needed. Callers must call Release when done. Holding the session lock
// serializes processing of messages from the same sender while messages
// from distinct senders proceed in parallel.
func (r *Registry) Acquire(senderID string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[senderID]
	if !ok {
		s = &Session{senderID: senderID}
		r.sessions[senderID] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	return s
}

// Session is one sender's conversation state. All methods except Release
// assume the session lock is held via Registry.Acquire.
type Session struct {
	mu        sync.Mutex
	senderID  string
	history   []models.ConversationMessage
	menuShown bool
}

// Release unlocks the session.
func (s *Session) Release() {
	s.mu.Unlock()
}

// AppendTurn records one conversation turn, evicting the oldest turn once
// the history window is full.
func (s *Session) AppendTurn(role, content string) {
	s.history = append(s.history, models.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(s.history) > models.MaxHistoryMessages {
		s.history = s.history[len(s.history)-models.MaxHistoryMessages:]
	}
}

// Reset clears the conversation history and starts a fresh epoch, so the
// menu will be shown again on the next message.
func (s *Session) Reset() {
	s.history = nil
	s.menuShown = false
}

// History returns a copy of the conversation turns, oldest first.
func (s *Session) History() []models.ConversationMessage {
	out := make([]models.ConversationMessage, len(s.history))
	copy(out, s.history)
	return out
}

// MenuShown reports whether the menu has been presented this epoch.
func (s *Session) MenuShown() bool {
	return s.menuShown
}

// MarkMenuShown records that the menu was presented this epoch.
func (s *Session) MarkMenuShown() {
	s.menuShown = true
}
