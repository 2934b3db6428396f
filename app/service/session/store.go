package session

import (
	"drivechat/app/config"
	"log/slog"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/samber/do"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTimeout   time.Duration
	sweepInterval time.Duration
	now           func() time.Time
}

func New(di *do.Injector) (*Store, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewStore(cfg.Session.IdleTimeout, cfg.Session.SweepInterval), nil
}

func NewStore(idleTimeout, sweepInterval time.Duration) *Store {
	return &Store{
		sessions:      make(map[string]*Session),
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

func (s *Store) Create() string {
	return s.create().ID
}

func (s *Store) create() *Session {
	sess := newSession(uuid.NewString(), s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	slog.Debug("Session created", slog.String("session_id", sess.ID))

	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Touch(id string) bool {
	sess, ok := s.Get(id)
	if !ok {
		return false
	}

	sess.touch(s.now())
	return true
}

// Delete removes the session immediately, a turn in flight finishes against the detached session
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}

	sess.markRemoved()
	slog.Debug("Session deleted", slog.String("session_id", id))

	return true
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Store) Info(id string) (Info, bool) {
	sess, ok := s.Get(id)
	if !ok {
		return Info{}, false
	}

	return sess.info(), true
}

// Acquire resolves id to a live session, creating a new one when id is empty or unknown,
// and locks it for one turn. release must be called exactly once.
func (s *Store) Acquire(id string) (sess *Session, release func(), created bool) {
	for {
		sess, created = s.resolve(id)

		sess.turnMu.Lock()
		if !sess.isRemoved() {
			return sess, sess.turnMu.Unlock, created
		}
		sess.turnMu.Unlock()
	}
}

func (s *Store) resolve(id string) (*Session, bool) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}

	return s.create(), true
}

// Sweep deletes sessions idle for longer than the timeout, skipping those with a turn in progress
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.RLock()
	candidates := pie.Filter(pie.Values(s.sessions), func(sess *Session) bool {
		return now.Sub(sess.LastActivity()) > s.idleTimeout
	})
	s.mu.RUnlock()

	removed := 0

	for _, sess := range candidates {
		if !sess.turnMu.TryLock() {
			continue
		}

		if s.evict(sess, now) {
			removed++
		}

		sess.turnMu.Unlock()
	}

	if removed > 0 {
		slog.Info("Expired sessions evicted",
			slog.Int("removed", removed),
			slog.Int("active", s.Count()),
		)
	}

	return removed
}

func (s *Store) evict(sess *Session, now time.Time) bool {
	if now.Sub(sess.LastActivity()) <= s.idleTimeout {
		return false
	}

	s.mu.Lock()
	current, ok := s.sessions[sess.ID]
	if ok && current == sess {
		delete(s.sessions, sess.ID)
	}
	s.mu.Unlock()

	if !ok || current != sess {
		return false
	}

	sess.markRemoved()
	return true
}
