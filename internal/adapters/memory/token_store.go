package memory

// Package memory provides in-process adapters used when no external backend is configured.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps magic-link tokens in a map guarded by a mutex.
// Check-and-consume happens under a single lock acquisition.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]domainauth.MagicLinkToken
}

// NewTokenStore creates an empty in-process token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domainauth.MagicLinkToken)}
}

func (s *TokenStore) Put(_ context.Context, tok domainauth.MagicLinkToken) error {
	if tok.Token == "" {
		return errors.New("token cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[tok.Token]; exists {
		return errors.New("token already exists")
	}
	s.tokens[tok.Token] = tok
	return nil
}

func (s *TokenStore) GetAndConsume(
	_ context.Context,
	token, email string,
	now time.Time,
) (domainauth.MagicLinkToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[token]
	if !ok {
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenNotFound
	}
	if tok.Expired(now) {
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenExpired
	}
	if tok.Consumed {
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenConsumed
	}
	if tok.Email != domainauth.NormalizeEmail(email) {
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenMismatch
	}

	tok.Consumed = true
	s.tokens[token] = tok
	return tok, nil
}

// PurgeExpired drops tokens that expired before cutoff and returns how many were removed.
func (s *TokenStore) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, tok := range s.tokens {
		if tok.ExpiresAt.Before(cutoff) {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
