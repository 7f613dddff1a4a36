package auth

import (
	"slices"
	"sync"
	"time"

	"lifeassistant/internal/core"
)

// Session is one browser's state: the login flag and the in-memory chat transcript.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	authenticated bool
	messages      []core.Message
	historyLoaded bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now}
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Authenticate marks the session as logged in and reports whether this call
// made the transition.
func (s *Session) Authenticate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated {
		return false
	}
	s.authenticated = true
	return true
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// AppendMessages adds msgs to the end of the transcript.
func (s *Session) AppendMessages(msgs ...core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// ClearMessages empties the transcript. Persisted history is untouched and is
// not reloaded for this session.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.historyLoaded = true
}

// LoadHistoryOnce runs load the first time it is called for this session and
// prepends its result to the transcript. Later calls do nothing.
func (s *Session) LoadHistoryOnce(load func() []core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyLoaded {
		return
	}
	s.historyLoaded = true
	if loaded := load(); len(loaded) > 0 {
		s.messages = append(loaded, s.messages...)
	}
}
