package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider  = (*MockAuthProvider)(nil)
	_ ports.SessionSigner = StaticSigner{}
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.ProviderIdentity, error)

	// Deterministic values for predictable testing
	ProviderName string
	AuthURL      string
	StatePrefix  string
	NoncePrefix  string
	DefaultUser  domainauth.ProviderIdentity

	mu        sync.Mutex
	callCount int
	lastBegin ports.BeginInput
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		ProviderName: "google",
		AuthURL:      "https://mock-idp/auth",
		StatePrefix:  "state",
		NoncePrefix:  "nonce",
		DefaultUser: domainauth.ProviderIdentity{
			Subject:     "mock-user-1",
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
			Provider:    "google",
		},
	}
}

func (m *MockAuthProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	m.lastBegin = in
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, n)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, n)
	return authURL + "?state=" + state, state, nonce, nil
}

// LastBegin returns the input of the most recent default Begin call.
func (m *MockAuthProvider) LastBegin() ports.BeginInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBegin
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ProviderIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	user := m.DefaultUser
	if user.Email == "" {
		user = domainauth.ProviderIdentity{
			Subject:     "mock-user-1",
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
		}
	}
	if user.Provider == "" {
		user.Provider = m.Name()
	}
	user.ExpiresAt = time.Now().Add(time.Hour)
	return user, nil
}

// StaticSigner signs an email as "sig:<email>". It is only for tests.
type StaticSigner struct{}

func (StaticSigner) Sign(email string, _ time.Time) (string, error) {
	return "sig:" + domainauth.NormalizeEmail(email), nil
}

func (StaticSigner) Verify(sig, email string, _ time.Time) bool {
	return sig != "" && sig == "sig:"+domainauth.NormalizeEmail(email)
}
