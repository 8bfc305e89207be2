package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.OAuthSessionStore = (*SessionStore)(nil)

// ErrNotFound is returned when a session is not present or has expired.
var ErrNotFound = domainauth.ErrSessionNotFound

// SessionStore is an in-process OAuth session store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.OAuthSession
	now      func() time.Time
}

// NewSessionStore creates an empty in-process session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domainauth.OAuthSession),
		now:      time.Now,
	}
}

// Save stores sess and drops every expired session, so sessions that are never
// read again do not accumulate.
func (s *SessionStore) Save(_ context.Context, sess domainauth.OAuthSession) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	now := s.now()
	if !sess.ExpiresAt.After(now) {
		return errors.New("session is expired")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.sessions {
		if now.After(existing.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domainauth.OAuthSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return domainauth.OAuthSession{}, ErrNotFound
	}
	if s.now().After(sess.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return domainauth.OAuthSession{}, ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
