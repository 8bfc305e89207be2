package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// IdentityResolver resolves the identity carried by a request's cookies.
type IdentityResolver interface {
	Resolve(ctx context.Context, c service.SessionCookies) *domainauth.ResolvedIdentity
}

type decisionRecorder interface {
	AccessDecision(layer, outcome string)
}

// Enforcement layers. Each resolves the identity itself and evaluates the same table.
const (
	LayerEdge = "edge"
	LayerArea = "area"
	LayerPage = "page"
)

// EnforcerOptions groups dependencies for Enforcer.
type EnforcerOptions struct {
	Resolver IdentityResolver // Required
	Guard    domainauth.Guard
	Metrics  decisionRecorder // Optional
	Logger   *slog.Logger     // Optional
}

// Enforcer applies the route authorization guard at the edge, per area and per page.
type Enforcer struct {
	resolver IdentityResolver
	guard    domainauth.Guard
	metrics  decisionRecorder
	logger   *slog.Logger
}

// NewEnforcer constructs an Enforcer.
func NewEnforcer(opts EnforcerOptions) *Enforcer {
	if opts.Resolver == nil {
		panic("identity resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		resolver: opts.Resolver,
		guard:    opts.Guard,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "enforcer"),
	}
}

// Resolve returns the identity for r, or nil when unauthenticated.
func (e *Enforcer) Resolve(r *http.Request) *domainauth.ResolvedIdentity {
	return e.resolver.Resolve(r.Context(), sessionCookiesFromRequest(r))
}

// Check resolves the identity and authorizes it for tier at layer.
func (e *Enforcer) Check(r *http.Request, layer string, tier domainauth.Tier) (domainauth.Decision, *domainauth.ResolvedIdentity) {
	id := e.Resolve(r)
	var principal *domainauth.Identity
	if id != nil {
		principal = &id.Identity
	}
	d := e.guard.Authorize(tier, principal, r.URL.RequestURI())
	if e.metrics != nil {
		e.metrics.AccessDecision(layer, string(d.Outcome))
	}
	if !d.Allowed() {
		e.logger.DebugContext(r.Context(), "access denied",
			"layer", layer,
			"tier", tier,
			"path", r.URL.Path,
			"outcome", d.Outcome,
			"reason", d.Reason,
		)
	}
	return d, id
}

// Edge evaluates the tier of every request path before routing.
// The resolved identity is placed in the request context for display purposes.
func (e *Enforcer) Edge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, id := e.Check(r, LayerEdge, domainauth.TierForPath(r.URL.Path))
		if !d.Allowed() {
			e.deny(w, r, d)
			return
		}
		next.ServeHTTP(w, r.WithContext(SetIdentityInContext(r.Context(), id)))
	})
}

// RequireTier guards one area regardless of what the edge decided.
func (e *Enforcer) RequireTier(tier domainauth.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, id := e.Check(r, LayerArea, tier)
			if !d.Allowed() {
				e.deny(w, r, d)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetIdentityInContext(r.Context(), id)))
		})
	}
}

// AllowPage is the page-local check. It writes the redirect and returns false when denied.
func (e *Enforcer) AllowPage(w http.ResponseWriter, r *http.Request, tier domainauth.Tier) (*domainauth.ResolvedIdentity, bool) {
	d, id := e.Check(r, LayerPage, tier)
	if !d.Allowed() {
		e.deny(w, r, d)
		return nil, false
	}
	return id, true
}

// deny turns a non-allow decision into a redirect, or a JSON status for API paths.
func (e *Enforcer) deny(w http.ResponseWriter, r *http.Request, d domainauth.Decision) {
	if domainauth.IsAPIPath(r.URL.Path) {
		if d.Outcome == domainauth.OutcomeRedirectSignIn {
			WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: errCodeUnauthenticated})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: errCodeForbidden})
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, d.Location(), http.StatusFound)
}
