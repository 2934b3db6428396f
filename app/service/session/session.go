package session

import (
	"drivechat/app/service/history"
	"sync"
	"time"
)

// Session is one conversation. turnMu is held for a whole dialogue turn,
// mu guards the fields below it.
type Session struct {
	ID        string
	CreatedAt time.Time

	turnMu sync.Mutex

	mu           sync.RWMutex
	turns        []history.Turn
	lastActivity time.Time
	removed      bool
}

type Info struct {
	ID           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActivity: now,
	}
}

// History returns a deep copy of the committed turns
func (s *Session) History() []history.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return history.CloneAll(s.turns)
}

// Append commits turns at once, a reader never sees half of a dialogue turn
func (s *Session) Append(turns ...history.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, history.CloneAll(turns)...)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastActivity
}

func (s *Session) info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Info{
		ID:           s.ID,
		MessageCount: len(s.turns),
		LastActivity: s.lastActivity,
		CreatedAt:    s.CreatedAt,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = now
}

func (s *Session) markRemoved() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed = true
}

func (s *Session) isRemoved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.removed
}
