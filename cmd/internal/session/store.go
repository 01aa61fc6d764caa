package session

import (
	"strings"
	"sync"
)

// Well-known keys for persisted UI state.
const (
	KeySelectedChat = "selected.chat"
	KeySelectedUser = "selected.user"
)

// Session is the authenticated identity.
type Session struct {
	Username string
	Email    string
	// Token is the bearer token returned by sign-in, when the backend sends one.
	Token string
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool { return strings.TrimSpace(s.Username) != "" }

// Store holds at most one Session plus small session-scoped key/value state.
// It is safe for concurrent use.
type Store struct {
	bus *Bus

	mu   sync.RWMutex
	sess *Session
	kv   map[string]string
}

// NewStore constructs an empty Store broadcasting on bus (bus may be nil).
func NewStore(bus *Bus) *Store {
	return &Store{bus: bus, kv: make(map[string]string)}
}

// Bus returns the Bus the store broadcasts on.
func (s *Store) Bus() *Bus { return s.bus }

// Session returns the active session.
func (s *Store) Session() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return Session{}, false
	}
	return *s.sess, true
}

// Username returns the active username or "".
func (s *Store) Username() string {
	sess, _ := s.Session()
	return sess.Username
}

// Set replaces the session without broadcasting.
// The Session Gate uses it after a successful probe; broadcasting there would re-trigger the probe.
func (s *Store) Set(sess Session) {
	s.mu.Lock()
	cp := sess
	s.sess = &cp
	s.mu.Unlock()
}

// SignIn replaces the session and broadcasts exactly once.
func (s *Store) SignIn(sess Session) {
	s.Set(sess)
	s.publish()
}

// Clear destroys the session and every session-scoped value, then broadcasts exactly once.
func (s *Store) Clear() {
	s.Forget()
	s.publish()
}

// Forget destroys the session and every session-scoped value without broadcasting.
func (s *Store) Forget() {
	s.mu.Lock()
	s.sess = nil
	s.kv = make(map[string]string)
	s.mu.Unlock()
}

// Put stores a session-scoped value.
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	s.kv[key] = value
	s.mu.Unlock()
}

// Value returns a session-scoped value.
func (s *Store) Value(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	return v, ok
}

// Remove deletes a session-scoped value.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.kv, key)
	s.mu.Unlock()
}

func (s *Store) publish() {
	if s.bus != nil {
		s.bus.Publish()
	}
}
