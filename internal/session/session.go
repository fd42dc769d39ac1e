// Package session holds per-conversation state: chat history, recent
// fact-checks and the open vector collection.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/labkit/internal/factcheck"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/vectorstore"
)

// DefaultGreeting seeds every new history
const DefaultGreeting = "How can I help you?"

// Session is the state of one user conversation. It is safe for
// concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	history    []model.Message
	checks     *factcheck.History
	collection *vectorstore.Collection
}

// New creates a session whose history holds the assistant greeting
func New(greeting string) *Session {
	return newWithID(uuid.NewString(), greeting)
}

func newWithID(id, greeting string) *Session {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		history:   []model.Message{{Role: model.RoleAssistant, Content: greeting}},
		checks:    factcheck.NewHistory(0),
	}
}

// History returns a copy of the message history
func (s *Session) History() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.history...)
}

// Len returns the number of messages in the history
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Append adds messages to the end of the history
func (s *Session) Append(msgs ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
}

// Truncate drops every message after the first n. The seed is never dropped.
func (s *Session) Truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	if n < len(s.history) {
		s.history = s.history[:n]
	}
}

// Trim applies TrimHistory to the session history
func (s *Session) Trim() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = TrimHistory(s.history)
}

// Checks returns the session's fact-check history
func (s *Session) Checks() *factcheck.History {
	return s.checks
}

// Collection returns the cached collection handle, if any
func (s *Session) Collection() *vectorstore.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

// SetCollection caches the collection handle for later questions
func (s *Session) SetCollection(c *vectorstore.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = c
}

// TrimHistory keeps the seed message plus the last two messages once the
// history grows past three entries.
func TrimHistory(msgs []model.Message) []model.Message {
	if len(msgs) <= 3 {
		return msgs
	}
	trimmed := make([]model.Message, 0, 3)
	trimmed = append(trimmed, msgs[0])
	return append(trimmed, msgs[len(msgs)-2:]...)
}
