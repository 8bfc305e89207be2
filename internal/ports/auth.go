// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.
package ports

import (
	"context"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Name is the provider key used in routes and cookies (e.g. "google").
	Name() string

	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.ProviderIdentity, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// OAuthSessionStore persists and retrieves provider-backed sessions.
type OAuthSessionStore interface {
	Save(ctx context.Context, sess domainauth.OAuthSession) error
	Get(ctx context.Context, id string) (domainauth.OAuthSession, error)
	Delete(ctx context.Context, id string) error
}

// TokenStore persists magic-link tokens.
//
// GetAndConsume must be atomic: of any number of concurrent calls for the same
// unconsumed, unexpired token and matching email, exactly one succeeds. Failures are
// reported as domain token errors (not found, expired, consumed, mismatch) checked in
// that order.
type TokenStore interface {
	Put(ctx context.Context, tok domainauth.MagicLinkToken) error
	GetAndConsume(ctx context.Context, token, email string, now time.Time) (domainauth.MagicLinkToken, error)
}

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers a message with a single attempt.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

// AccountStore is the slice of the identity store used during sign-in.
type AccountStore interface {
	// EnsureUser creates the account if missing. An existing account is not an error.
	EnsureUser(ctx context.Context, req model.EnsureUserRequest) (model.User, error)
	// RecordSignIn stamps the last sign-in time for the account with email.
	RecordSignIn(ctx context.Context, email string, at time.Time) error
}

// UserDirectory is the read side of the identity store used by admin views.
type UserDirectory interface {
	ListUsers(ctx context.Context, opts model.UserListOptions) ([]model.User, error)
	CountUsers(ctx context.Context, domain string) (int, error)
}

// WaitlistStore records interest from not-yet-admitted visitors.
type WaitlistStore interface {
	AddToWaitlist(ctx context.Context, email string) (model.WaitlistEntry, error)
	ListWaitlist(ctx context.Context, opts model.WaitlistListOptions) ([]model.WaitlistEntry, error)
	// CountWaitlist returns the total entries and the entries that have a matching account.
	CountWaitlist(ctx context.Context) (total int, converted int, err error)
}

// Cache stores short-lived byte values. Get returns nil, nil for a missing key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SessionSigner issues and checks the companion signature for an email-session cookie.
type SessionSigner interface {
	Sign(email string, now time.Time) (string, error)
	// Verify reports whether sig was issued for email and is still valid at now.
	Verify(sig, email string, now time.Time) bool
}

// TokenPurger removes expired magic-link tokens. Stores with native key expiry need not implement it.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
