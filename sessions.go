package x402

import (
	"sync"
	"time"
)

// SessionStore tracks payment sessions issued by a resource server.
type SessionStore interface {
	// Create records a freshly minted challenge as pending.
	Create(challenge PaymentChallenge)

	// MarkPaid flips a pending session to paid. Unknown or expired
	// session ids return false.
	MarkPaid(sessionID string) bool

	// Paid reports whether a session exists, is unexpired, and is paid.
	Paid(sessionID string) bool
}

// InMemorySessionStore provides an in-memory SessionStore.
//
// Suitable for single-instance deployments where session state doesn't
// need to be shared across processes. For load-balanced clusters,
// implement SessionStore with a shared backend.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	expiry   map[string]time.Time
	ttl      time.Duration
}

type sessionEntry struct {
	challenge PaymentChallenge
	paid      bool
}

// NewInMemorySessionStore creates a session store whose entries expire
// after the given TTL.
func NewInMemorySessionStore(ttl time.Duration) *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		expiry:   make(map[string]time.Time),
		ttl:      ttl,
	}
}

// Create records a pending session for the challenge.
func (s *InMemorySessionStore) Create(challenge PaymentChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[challenge.SessionID] = &sessionEntry{challenge: challenge}
	s.expiry[challenge.SessionID] = time.Now().Add(s.ttl)

	s.cleanupExpiredLocked()
}

// MarkPaid flips a pending session to paid.
func (s *InMemorySessionStore) MarkPaid(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.getLocked(sessionID)
	if entry == nil {
		return false
	}
	entry.paid = true
	return true
}

// Paid reports whether the session is live and paid.
func (s *InMemorySessionStore) Paid(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.getLocked(sessionID)
	return entry != nil && entry.paid
}

// getLocked returns a live session entry, cleaning it up if expired.
// Must be called with the lock held.
func (s *InMemorySessionStore) getLocked(sessionID string) *sessionEntry {
	expiry, exists := s.expiry[sessionID]
	if !exists {
		return nil
	}

	if time.Now().After(expiry) {
		delete(s.sessions, sessionID)
		delete(s.expiry, sessionID)
		return nil
	}

	return s.sessions[sessionID]
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemorySessionStore) cleanupExpiredLocked() {
	now := time.Now()
	for id, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.sessions, id)
			delete(s.expiry, id)
		}
	}
}

// Ensure InMemorySessionStore implements SessionStore
var _ SessionStore = (*InMemorySessionStore)(nil)
