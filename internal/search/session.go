package search

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

// SessionCookie is the cookie carrying the session ID.
const SessionCookie = "search_session"

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = time.Hour

// DefaultMaxSessions bounds the store. Each session may hold one uploaded image.
const DefaultMaxSessions = 200

// ErrTooManySessions is returned by New when the store is full and every session has
// a search in flight.
var ErrTooManySessions = errors.New("too many active sessions")

type session struct {
	form     *Form
	lastSeen time.Time
}

// Sessions keeps one Form per browser session in memory. Idle sessions expire lazily
// on access; a form with a running search never expires. At most max sessions are
// kept: a full store evicts the least recently seen idle session.
type Sessions struct {
	svc searchsvc.Service
	ttl time.Duration
	max int
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// SessionsOption configures a Sessions store.
type SessionsOption func(*Sessions)

// WithMaxSessions caps the number of stored sessions. Non-positive values keep
// DefaultMaxSessions.
func WithMaxSessions(n int) SessionsOption {
	return func(s *Sessions) {
		if n > 0 {
			s.max = n
		}
	}
}

// NewSessions creates a store whose forms search with svc. A non-positive ttl uses
// DefaultSessionTTL.
func NewSessions(svc searchsvc.Service, ttl time.Duration, opts ...SessionsOption) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Sessions{
		svc:      svc,
		ttl:      ttl,
		max:      DefaultMaxSessions,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New starts a session with an empty form. When the store is full the least recently
// seen idle session is dropped; if none is idle, New returns ErrTooManySessions.
func (s *Sessions) New() (*Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	if len(s.sessions) >= s.max && !s.evictOldestLocked() {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	form := NewForm(id, s.svc)
	s.sessions[id] = &session{form: form, lastSeen: now}
	return form, nil
}

// Get returns the form of a live session and refreshes its idle timer.
func (s *Sessions) Get(id string) (*Form, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess.form, true
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) expired(sess *session, now time.Time) bool {
	return now.Sub(sess.lastSeen) > s.ttl && !sess.form.Loading()
}

func (s *Sessions) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if sess.form.Loading() {
			continue
		}
		if oldestID == "" || sess.lastSeen.Before(oldest) {
			oldestID, oldest = id, sess.lastSeen
		}
	}
	if oldestID == "" {
		return false
	}
	delete(s.sessions, oldestID)
	return true
}

func (s *Sessions) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}
