// Package history provides the bounded conversation memory for a session.
package history

import "sync"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnMessage is a single message in a conversation. Immutable once appended.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is an ordered, capped sequence of turn messages. The system
// prompt is never stored here; BuildRequest prepends it on every call.
type Store struct {
	mu       sync.Mutex
	messages []TurnMessage
	cap      int
}

// DefaultCap is the default number of retained messages
const DefaultCap = 10

// NewStore creates a store retaining at most cap messages.
// A cap of zero or less falls back to DefaultCap.
func NewStore(cap int) *Store {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Store{
		messages: make([]TurnMessage, 0, cap),
		cap:      cap,
	}
}

// Append inserts a message at the tail. If the store would exceed its
// cap, the oldest messages are dropped until the cap holds.
func (s *Store) Append(msg TurnMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if len(s.messages) > s.cap {
		s.messages = s.messages[len(s.messages)-s.cap:]
	}
}

// BuildRequest returns [system] + history + [new user message] without
// mutating the stored history. The new user message is only persisted
// via a separate Append by the caller.
func (s *Store) BuildRequest(systemPrompt, newUserText string) []TurnMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	request := make([]TurnMessage, 0, len(s.messages)+2)
	request = append(request, TurnMessage{Role: RoleSystem, Content: systemPrompt})
	request = append(request, s.messages...)
	request = append(request, TurnMessage{Role: RoleUser, Content: newUserText})
	return request
}

// Messages returns a copy of the stored history in order
func (s *Store) Messages() []TurnMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TurnMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Cap returns the maximum number of retained messages
func (s *Store) Cap() int {
	return s.cap
}
