package auth

import (
	"net/url"
	"strings"
)

// Tier is the access level required by an application area.
type Tier string

const (
	TierPublic        Tier = "public"
	TierAuthPage      Tier = "auth_page"
	TierAuthenticated Tier = "authenticated"
	TierInternal      Tier = "internal"
	TierAdmin         Tier = "admin"
)

// Outcome is the terminal result of an authorization check.
type Outcome string

const (
	OutcomeAllow             Outcome = "allow"
	OutcomeRedirectSignIn    Outcome = "redirect_signin"
	OutcomeRedirectDashboard Outcome = "redirect_dashboard"
)

// Decision reasons.
const (
	ReasonPublic               = "public"
	ReasonAuthenticated        = "authenticated"
	ReasonUnauthenticated      = "unauthenticated"
	ReasonAlreadyAuthenticated = "already_authenticated"
	ReasonInternalRequired     = "internal_required"
	ReasonInternalGranted      = "internal_granted"
	ReasonAdminRequired        = "admin_required"
	ReasonAdminGranted         = "admin_granted"
	ReasonUnknownTier          = "unknown_tier"
)

// Well-known locations used by redirects.
const (
	SignInPath    = "/auth/signin"
	DashboardPath = "/dashboard"
)

// Decision is the result of Guard.Authorize. From is set for RedirectSignIn.
type Decision struct {
	Outcome Outcome
	Reason  string
	From    string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Location returns the redirect target for non-allow outcomes.
func (d Decision) Location() string {
	switch d.Outcome {
	case OutcomeRedirectSignIn:
		if d.From == "" {
			return SignInPath
		}
		return SignInPath + "?from=" + url.QueryEscape(d.From)
	case OutcomeRedirectDashboard:
		return DashboardPath
	default:
		return ""
	}
}

// Guard evaluates the tier table. It re-derives capabilities through the Classifier
// so every enforcement point reaches the same answer for the same identity.
type Guard struct {
	classifier Classifier
}

// NewGuard constructs a Guard.
func NewGuard(c Classifier) Guard { return Guard{classifier: c} }

// Classifier returns the classifier backing this guard.
func (g Guard) Classifier() Classifier { return g.classifier }

// Authorize returns the decision for a request to path at tier. A nil identity means unauthenticated.
func (g Guard) Authorize(tier Tier, id *Identity, path string) Decision {
	if tier == TierPublic {
		return Decision{Outcome: OutcomeAllow, Reason: ReasonPublic}
	}
	if tier == TierAuthPage {
		if id != nil {
			return Decision{Outcome: OutcomeRedirectDashboard, Reason: ReasonAlreadyAuthenticated}
		}
		return Decision{Outcome: OutcomeAllow, Reason: ReasonPublic}
	}

	if id == nil {
		return Decision{Outcome: OutcomeRedirectSignIn, Reason: ReasonUnauthenticated, From: path}
	}

	access := g.classifier.Classify(id.Email)
	switch tier {
	case TierAuthenticated:
		return Decision{Outcome: OutcomeAllow, Reason: ReasonAuthenticated}
	case TierInternal:
		if !access.CanAccessInternal {
			return Decision{Outcome: OutcomeRedirectDashboard, Reason: ReasonInternalRequired}
		}
		return Decision{Outcome: OutcomeAllow, Reason: ReasonInternalGranted}
	case TierAdmin:
		if !access.IsAdmin {
			return Decision{Outcome: OutcomeRedirectDashboard, Reason: ReasonAdminRequired}
		}
		return Decision{Outcome: OutcomeAllow, Reason: ReasonAdminGranted}
	default:
		// Unknown tiers fail closed.
		return Decision{Outcome: OutcomeRedirectDashboard, Reason: ReasonUnknownTier}
	}
}

// TierForPath maps a request path to the tier its area requires.
// Paths not listed are treated as authenticated.
func TierForPath(path string) Tier {
	switch {
	case path == "/" || path == SignInPath:
		return TierAuthPage
	case hasSegmentPrefix(path, "/admin"), hasSegmentPrefix(path, "/api/admin"):
		return TierAdmin
	case hasSegmentPrefix(path, "/internal"), hasSegmentPrefix(path, "/api/internal"):
		return TierInternal
	case hasSegmentPrefix(path, "/dashboard"):
		return TierAuthenticated
	case path == "/healthz", path == "/metrics",
		path == "/auth/error", path == "/auth/complete",
		hasSegmentPrefix(path, "/auth/login"),
		hasSegmentPrefix(path, "/api/auth"),
		hasSegmentPrefix(path, "/api/dev"),
		path == "/api/waitlist":
		return TierPublic
	default:
		return TierAuthenticated
	}
}

// hasSegmentPrefix matches prefix as a whole path segment ("/admin" matches
// "/admin" and "/admin/x" but not "/administrator").
func hasSegmentPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// IsAPIPath reports whether path belongs to the JSON API surface.
func IsAPIPath(path string) bool { return hasSegmentPrefix(path, "/api") }
