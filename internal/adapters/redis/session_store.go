// Package redis holds the Redis adapters: OAuth sessions, magic-link tokens and
// the admin overview cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.OAuthSessionStore = (*SessionStore)(nil)

// ErrNotFound is returned for missing, expired or blank session ids.
var ErrNotFound = domainauth.ErrSessionNotFound

const defaultSessionPrefix = "oauth_session:"

// SessionStore keeps OAuth sessions as JSON strings whose key expires with the session.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a session store under the "oauth_session:" prefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, defaultSessionPrefix)
}

// NewSessionStoreWithPrefix creates a session store under prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) key(id string) string { return s.prefix + id }

// Save stores sess until its ExpiresAt.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.OAuthSession) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode oauth session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis save oauth session: %w", err)
	}
	return nil
}

// Get loads a live session. The absolute ExpiresAt is checked as well as the key TTL.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.OAuthSession, error) {
	if id == "" {
		return domainauth.OAuthSession{}, ErrNotFound
	}

	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return domainauth.OAuthSession{}, ErrNotFound
	case err != nil:
		return domainauth.OAuthSession{}, fmt.Errorf("redis get oauth session: %w", err)
	}

	var sess domainauth.OAuthSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return domainauth.OAuthSession{}, fmt.Errorf("decode oauth session: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		if err := s.Delete(ctx, id); err != nil {
			return domainauth.OAuthSession{}, err
		}
		return domainauth.OAuthSession{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes the session. Unknown or blank ids are not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete oauth session: %w", err)
	}
	return nil
}
