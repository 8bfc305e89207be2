package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Providers []ports.AuthProvider    // Required: at least one provider for OAuth login
	Sessions  ports.OAuthSessionStore // Required
	Accounts  ports.AccountStore      // Optional: accounts are ensured on login
	Logger    *slog.Logger            // Optional
	Now       func() time.Time        // Optional
}

// AuthService orchestrates the OAuth login flow: provider redirect, code exchange,
// account presence and server-side session persistence.
type AuthService struct {
	providers map[string]ports.AuthProvider
	sessions  ports.OAuthSessionStore
	accounts  ports.AccountStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Sessions == nil {
		panic("OAuthSessionStore is required")
	}
	providers := make(map[string]ports.AuthProvider, len(opts.Providers))
	for _, p := range opts.Providers {
		if p != nil {
			providers[p.Name()] = p
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		providers: providers,
		sessions:  opts.Sessions,
		accounts:  opts.Accounts,
		logger:    logger.With("component", "auth"),
		now:       now,
	}
}

// Providers lists configured provider names in sorted order.
func (s *AuthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, provider, redirectURL string) (*BeginLoginResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := p.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Provider string
	Code     string
	State    string
	Nonce    string
}

// CompleteLoginResult contains the result of completing a login flow.
type CompleteLoginResult struct {
	Session domainauth.OAuthSession
}

// CompleteLogin exchanges the code for an identity, ensures the account exists and
// persists a session. The session lives for the cookie lifetime, independent of the
// provider token expiry.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*CompleteLoginResult, error) {
	p, ok := s.providers[input.Provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	identity, err := p.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "exchange authorization code", Err: err}
	}

	email := domainauth.NormalizeEmail(identity.Email)
	if !domainauth.IsValidEmail(email) {
		return nil, domainauth.ErrInvalidEmail
	}

	userID := identity.Subject
	displayName := identity.DisplayName
	if s.accounts != nil {
		user, ensureErr := s.accounts.EnsureUser(ctx, model.EnsureUserRequest{
			Email:       email,
			DisplayName: displayName,
			Provider:    p.Name(),
		})
		if ensureErr != nil && !apperrors.IsConflict(ensureErr) {
			return nil, &UpstreamError{Op: "ensure account", Err: ensureErr}
		}
		if user.ID != "" {
			userID = user.ID
		}
		if displayName == "" {
			displayName = user.DisplayName
		}
		if signInErr := s.accounts.RecordSignIn(ctx, email, s.now()); signInErr != nil {
			s.logger.WarnContext(ctx, "record sign-in", "email", email, "error", signInErr)
		}
	}
	if displayName == "" {
		displayName = model.DisplayNameFromEmail(email)
	}

	session := domainauth.OAuthSession{
		ID:          generateSessionID(),
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Provider:    p.Name(),
		ExpiresAt:   s.now().Add(domainauth.SessionMaxAge),
	}
	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return nil, &UpstreamError{Op: "save session", Err: saveErr}
	}

	s.logger.InfoContext(ctx, "oauth login completed", "email", email, "provider", p.Name())
	return &CompleteLoginResult{Session: session}, nil
}

// Logout removes a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func generateSessionID() string {
	return uuid.New().String()
}
