package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// VerifyEmailPath is the route embedded in magic-link emails.
const VerifyEmailPath = "/api/auth/verify-email"

// tokenBytes is 256 bits of randomness, hex encoded to 64 characters.
const tokenBytes = 32

type magicLinkMetrics interface {
	MagicLinkIssued(result string)
	MagicLinkVerified(result string)
}

// MagicLinkConfig holds non-dependency settings for MagicLinkService.
type MagicLinkConfig struct {
	BaseURL string           // Required: absolute origin for verification links
	Now     func() time.Time // Optional: clock, defaults to time.Now
}

// MagicLinkServiceOptions groups dependencies for MagicLinkService.
type MagicLinkServiceOptions struct {
	Tokens   ports.TokenStore   // Required
	Sender   ports.EmailSender  // Required
	Accounts ports.AccountStore // Optional: accounts are ensured on successful verification
	Config   MagicLinkConfig
	Metrics  magicLinkMetrics // Optional
	Logger   *slog.Logger     // Optional
}

// MagicLinkService issues and verifies single-use email sign-in tokens.
type MagicLinkService struct {
	tokens   ports.TokenStore
	sender   ports.EmailSender
	accounts ports.AccountStore
	baseURL  string
	now      func() time.Time
	metrics  magicLinkMetrics
	logger   *slog.Logger
}

// NewMagicLinkService constructs a MagicLinkService.
func NewMagicLinkService(opts MagicLinkServiceOptions) *MagicLinkService {
	if opts.Tokens == nil {
		panic("TokenStore is required")
	}
	if opts.Sender == nil {
		panic("EmailSender is required")
	}
	now := opts.Config.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MagicLinkService{
		tokens:   opts.Tokens,
		sender:   opts.Sender,
		accounts: opts.Accounts,
		baseURL:  strings.TrimRight(opts.Config.BaseURL, "/"),
		now:      now,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "magic_link"),
	}
}

// IssueResult describes a token that was stored and handed to the transport.
type IssueResult struct {
	Token     string
	ExpiresAt time.Time
	URL       string
}

// Issue creates a token for email, persists it and sends one email carrying the
// verification link. redirectTo is reduced to a same-origin path.
func (s *MagicLinkService) Issue(ctx context.Context, email, redirectTo string) (*IssueResult, error) {
	email = domainauth.NormalizeEmail(email)
	if !domainauth.IsValidEmail(email) {
		s.recordIssued("invalid")
		return nil, domainauth.ErrInvalidEmail
	}
	redirect := ""
	if strings.TrimSpace(redirectTo) != "" {
		redirect = domainauth.SafeRedirectPath(redirectTo, domainauth.DashboardPath)
	}

	token, err := generateToken()
	if err != nil {
		s.recordIssued("error")
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := s.now()
	tok := domainauth.MagicLinkToken{
		Token:      token,
		Email:      email,
		RedirectTo: redirect,
		IssuedAt:   now,
		ExpiresAt:  now.Add(domainauth.TokenTTL),
	}
	if err := s.tokens.Put(ctx, tok); err != nil {
		s.recordIssued("error")
		s.logger.ErrorContext(ctx, "store magic link token", "email", email, "error", err)
		return nil, &UpstreamError{Op: "store token", Err: err}
	}

	link := s.verifyURL(tok)
	if err := s.sender.Send(ctx, buildMagicLinkMessage(email, link)); err != nil {
		s.recordIssued("transport_error")
		s.logger.ErrorContext(ctx, "send magic link", "email", email, "error", err)
		return nil, &TransportError{Err: err}
	}

	s.recordIssued("success")
	s.logger.InfoContext(ctx, "magic link issued", "email", email, "expires_at", tok.ExpiresAt)
	return &IssueResult{Token: token, ExpiresAt: tok.ExpiresAt, URL: link}, nil
}

// VerifyResult is the identity established by a verified token and where to send it next.
type VerifyResult struct {
	Identity   domainauth.Identity
	RedirectTo string
}

// Verify consumes token for email. Token failures are domain token errors; store
// failures are *UpstreamError. An existing account never fails verification.
func (s *MagicLinkService) Verify(ctx context.Context, token, email string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	email = domainauth.NormalizeEmail(email)
	if token == "" {
		s.recordVerified(string(domainauth.TokenNotFound))
		return nil, domainauth.ErrTokenNotFound
	}

	tok, err := s.tokens.GetAndConsume(ctx, token, email, s.now())
	if err != nil {
		if failure := domainauth.TokenFailureOf(err); failure != "" {
			s.recordVerified(string(failure))
			s.logger.InfoContext(ctx, "magic link rejected", "email", email, "reason", failure)
			return nil, err
		}
		s.recordVerified("error")
		s.logger.ErrorContext(ctx, "consume magic link token", "email", email, "error", err)
		return nil, &UpstreamError{Op: "consume token", Err: err}
	}

	displayName := model.DisplayNameFromEmail(tok.Email)
	if s.accounts != nil {
		user, err := s.ensureAccount(ctx, tok.Email, displayName)
		if err != nil {
			s.recordVerified("error")
			return nil, err
		}
		if user.DisplayName != "" {
			displayName = user.DisplayName
		}
	}

	s.recordVerified("success")
	s.logger.InfoContext(ctx, "magic link verified", "email", tok.Email)
	return &VerifyResult{
		Identity: domainauth.Identity{
			Email:       tok.Email,
			DisplayName: displayName,
			Source:      domainauth.MagicLinkSource{},
		},
		RedirectTo: tok.RedirectTo,
	}, nil
}

func (s *MagicLinkService) ensureAccount(ctx context.Context, email, displayName string) (model.User, error) {
	user, err := s.accounts.EnsureUser(ctx, model.EnsureUserRequest{
		Email:       email,
		DisplayName: displayName,
		Provider:    "email",
	})
	if err != nil && !apperrors.IsConflict(err) {
		s.logger.ErrorContext(ctx, "ensure account", "email", email, "error", err)
		return model.User{}, &UpstreamError{Op: "ensure account", Err: err}
	}
	if err := s.accounts.RecordSignIn(ctx, email, s.now()); err != nil {
		s.logger.WarnContext(ctx, "record sign-in", "email", email, "error", err)
	}
	return user, nil
}

func (s *MagicLinkService) verifyURL(tok domainauth.MagicLinkToken) string {
	q := url.Values{}
	q.Set("token", tok.Token)
	q.Set("email", tok.Email)
	if tok.RedirectTo != "" {
		q.Set("redirect", tok.RedirectTo)
	}
	return s.baseURL + VerifyEmailPath + "?" + q.Encode()
}

func (s *MagicLinkService) recordIssued(result string) {
	if s.metrics != nil {
		s.metrics.MagicLinkIssued(result)
	}
}

func (s *MagicLinkService) recordVerified(result string) {
	if s.metrics != nil {
		s.metrics.MagicLinkVerified(result)
	}
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func buildMagicLinkMessage(email, link string) ports.Message {
	minutes := int(domainauth.TokenTTL / time.Minute)
	text := fmt.Sprintf("Sign in to theagnt by opening this link:\n\n%s\n\n"+
		"The link expires in %d minutes and can be used once. "+
		"If you did not request it, ignore this email.\n", link, minutes)
	escaped := html.EscapeString(link)
	body := fmt.Sprintf(`<p>Sign in to theagnt:</p><p><a href="%s">Sign in</a></p>`+
		`<p>The link expires in %d minutes and can be used once. If you did not request it, ignore this email.</p>`,
		escaped, minutes)
	return ports.Message{
		To:      email,
		Subject: "Your theagnt sign-in link",
		Text:    text,
		HTML:    body,
	}
}
