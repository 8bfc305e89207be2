package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

type sessionMetrics interface {
	SessionResolved(source string)
}

// SessionCookies is the ambient request state the resolver reads.
type SessionCookies struct {
	OAuthSessionID  string // session_id
	EmailSession    string // email-session
	EmailSessionSig string // email-session-sig
	DevSession      string // dev-session
}

// SessionResolverOptions groups dependencies for SessionResolver.
type SessionResolverOptions struct {
	Mode       domainauth.BuildMode    // zero value is production
	Classifier domainauth.Classifier   // Required for role enrichment
	Sessions   ports.OAuthSessionStore // Optional: OAuth sessions are skipped without it
	Signer     ports.SessionSigner     // Optional: when set, email-session must carry a valid signature
	Metrics    sessionMetrics          // Optional
	Logger     *slog.Logger            // Optional
	Now        func() time.Time        // Optional
}

// SessionResolver turns request cookies into at most one canonical identity.
// Precedence is OAuth session, then email-session, then (non-production only)
// the dev-session marker paired with email-session. Sources are never merged.
type SessionResolver struct {
	mode       domainauth.BuildMode
	classifier domainauth.Classifier
	sessions   ports.OAuthSessionStore
	signer     ports.SessionSigner
	metrics    sessionMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewSessionResolver constructs a SessionResolver.
func NewSessionResolver(opts SessionResolverOptions) *SessionResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionResolver{
		mode:       opts.Mode,
		classifier: opts.Classifier,
		sessions:   opts.Sessions,
		signer:     opts.Signer,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "session_resolver"),
		now:        now,
	}
}

// Mode returns the build mode the resolver was constructed with.
func (r *SessionResolver) Mode() domainauth.BuildMode { return r.mode }

// Classifier returns the classifier used for enrichment.
func (r *SessionResolver) Classifier() domainauth.Classifier { return r.classifier }

// Resolve returns the identity for c, or nil when the request is unauthenticated.
// It only reads state and is safe to call more than once per request.
func (r *SessionResolver) Resolve(ctx context.Context, c SessionCookies) *domainauth.ResolvedIdentity {
	id := r.resolve(ctx, c)
	if r.metrics != nil {
		kind := ""
		if id != nil {
			kind = string(id.SourceKind())
		}
		r.metrics.SessionResolved(kind)
	}
	if id == nil {
		return nil
	}
	return &domainauth.ResolvedIdentity{Identity: *id, Access: r.classifier.Classify(id.Email)}
}

func (r *SessionResolver) resolve(ctx context.Context, c SessionCookies) *domainauth.Identity {
	if id := r.fromOAuth(ctx, strings.TrimSpace(c.OAuthSessionID)); id != nil {
		return id
	}

	email := domainauth.NormalizeEmail(c.EmailSession)
	if !domainauth.IsValidEmail(email) {
		return nil
	}

	if !r.mode.IsProduction() {
		if payload, ok := domainauth.ParseDevPayload(c.DevSession); ok {
			return devIdentity(email, payload)
		}
	}

	if r.signer != nil && !r.signer.Verify(strings.TrimSpace(c.EmailSessionSig), email, r.now()) {
		r.logger.DebugContext(ctx, "email-session signature rejected", "email", email)
		return nil
	}
	return &domainauth.Identity{
		Email:       email,
		DisplayName: model.DisplayNameFromEmail(email),
		Source:      domainauth.MagicLinkSource{},
	}
}

func (r *SessionResolver) fromOAuth(ctx context.Context, sessionID string) *domainauth.Identity {
	if sessionID == "" || r.sessions == nil {
		return nil
	}
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) {
			// A store outage falls through to the cookie channels.
			r.logger.WarnContext(ctx, "oauth session lookup failed", "error", err)
		}
		return nil
	}
	if !sess.ExpiresAt.IsZero() && r.now().After(sess.ExpiresAt) {
		return nil
	}
	email := domainauth.NormalizeEmail(sess.Email)
	if !domainauth.IsValidEmail(email) {
		return nil
	}
	name := sess.DisplayName
	if name == "" {
		name = model.DisplayNameFromEmail(email)
	}
	return &domainauth.Identity{
		Email:       email,
		DisplayName: name,
		Source:      domainauth.OAuthSource{SessionID: sess.ID, Provider: sess.Provider},
	}
}

// devIdentity trusts the payload only when it describes the same email as the
// email-session cookie.
func devIdentity(email string, p domainauth.DevPayload) *domainauth.Identity {
	name := model.DisplayNameFromEmail(email)
	var role domainauth.Role
	if p.Email == email {
		role = p.Role
		if p.DisplayName != "" {
			name = p.DisplayName
		}
	}
	return &domainauth.Identity{
		Email:       email,
		DisplayName: name,
		Source:      domainauth.DevSource{Role: role},
	}
}
