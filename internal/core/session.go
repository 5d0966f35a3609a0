package core

// session.go keeps one State per visitor in memory.
//
// A session is created on first use and evicted by the janitor once it has
// been idle longer than the TTL. Result rows live only as long as their
// session; nothing here is persisted. Requests of one session are serialized
// by a per-session mutex so a run and an export never interleave.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is used for a non-positive TTL.
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	mu       sync.Mutex
	state    State
	lastSeen time.Time
}

// SessionStore maps session IDs to page state.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	mode     RerunMode
	now      func() time.Time
}

// NewSessionStore returns an empty store whose new sessions start in mode.
func NewSessionStore(ttl time.Duration, mode RerunMode) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		mode:     mode,
		now:      time.Now,
	}
}

// Resolve returns id when it names a live session, otherwise a new session ID.
func (s *SessionStore) Resolve(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.lastSeen = s.now()
		return id
	}
	id = uuid.NewString()
	s.sessions[id] = &session{state: NewState(s.mode), lastSeen: s.now()}
	return id
}

// Get returns a copy of the session's state. Unknown IDs yield an empty state.
func (s *SessionStore) Get(id string) State {
	sess := s.lookup(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// Update runs fn with exclusive access to the session's state and stores the
// state it returns, also when fn returns an error.
func (s *SessionStore) Update(id string, fn func(State) (State, error)) (State, error) {
	sess := s.lookup(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	next, err := fn(sess.state)
	sess.state = next
	return next, err
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle longer than the TTL and returns how many it removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	var removed int
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps every interval until ctx is cancelled. It blocks.
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("session janitor started", "interval", interval, "ttl", s.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

// lookup returns the session for id, creating it when missing.
func (s *SessionStore) lookup(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{state: NewState(s.mode)}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}
