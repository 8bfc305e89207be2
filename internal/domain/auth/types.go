package auth

// Package auth contains domain-level types for identity resolution and access control.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleInternal Role = "internal"
	RoleExternal Role = "external"
)

// Rank orders roles by privilege: admin > internal > external.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleInternal:
		return 1
	default:
		return 0
	}
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleInternal, RoleExternal:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// PermissionLevel is the derived total order used by callers that only need a level.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionBasic
	PermissionInternal
	PermissionAdmin
)

func (p PermissionLevel) String() string {
	switch p {
	case PermissionAdmin:
		return "admin"
	case PermissionInternal:
		return "internal"
	case PermissionBasic:
		return "basic"
	default:
		return "none"
	}
}

// MarshalText renders the level by name in JSON payloads.
func (p PermissionLevel) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (p *PermissionLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "admin":
		*p = PermissionAdmin
	case "internal":
		*p = PermissionInternal
	case "basic":
		*p = PermissionBasic
	case "none", "":
		*p = PermissionNone
	default:
		return fmt.Errorf("unknown permission level %q", b)
	}
	return nil
}

// Access is the result of classifying an email.
type Access struct {
	Role              Role            `json:"role"`
	IsAdmin           bool            `json:"isAdmin"`
	IsInternal        bool            `json:"isInternal"`
	CanAccessInternal bool            `json:"canAccessInternal"`
	CanAccessAdmin    bool            `json:"canAccessAdmin"`
	PermissionLevel   PermissionLevel `json:"permissionLevel"`
}

// SourceKind names the channel an identity was established through.
type SourceKind string

const (
	SourceOAuth     SourceKind = "oauth"
	SourceMagicLink SourceKind = "magic_link"
	SourceDev       SourceKind = "dev"
)

// Source is a closed union of session representations. Consumers switch on the
// concrete type instead of probing cookies themselves.
type Source interface {
	Kind() SourceKind
	isSource()
}

// OAuthSource is a server-side session established by an identity provider.
type OAuthSource struct {
	SessionID string
	Provider  string
}

// MagicLinkSource is the email-session cookie set after a verified magic link.
type MagicLinkSource struct{}

// DevSource is the email-session cookie paired with the dev-session marker.
type DevSource struct {
	Role Role // canned role when the bridge fabricated the identity; empty for arbitrary emails
}

func (OAuthSource) Kind() SourceKind     { return SourceOAuth }
func (MagicLinkSource) Kind() SourceKind { return SourceMagicLink }
func (DevSource) Kind() SourceKind       { return SourceDev }

func (OAuthSource) isSource()     {}
func (MagicLinkSource) isSource() {}
func (DevSource) isSource()       {}

// Identity is the canonical principal for one request. It is re-derived on every request.
type Identity struct {
	Email       string
	DisplayName string
	Source      Source
}

// SourceKind returns the identity's channel, or empty when no source is attached.
func (i Identity) SourceKind() SourceKind {
	if i.Source == nil {
		return ""
	}
	return i.Source.Kind()
}

// ResolvedIdentity is an Identity enriched with its classification.
type ResolvedIdentity struct {
	Identity
	Access Access
}

// OAuthSession is the server-side record persisted for a provider-backed login.
// ID is an opaque session identifier stored in the session_id cookie.
type OAuthSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Provider    string    `json:"provider"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ProviderIdentity is the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type ProviderIdentity struct {
	Subject     string
	Email       string
	DisplayName string
	Provider    string
	ExpiresAt   time.Time
}

// TokenTTL is the fixed lifetime of a magic-link token.
const TokenTTL = time.Hour

// MagicLinkToken is a single-use email authentication token.
type MagicLinkToken struct {
	Token      string    `json:"token"`
	Email      string    `json:"email"`
	RedirectTo string    `json:"redirect_to,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Consumed   bool      `json:"consumed"`
}

// Expired reports whether the token is past its expiry at now.
func (t MagicLinkToken) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }

// BuildMode distinguishes production from explicitly non-production runs.
type BuildMode string

const (
	BuildProduction  BuildMode = "production"
	BuildDevelopment BuildMode = "development"
)

// ParseBuildMode maps an environment name to a BuildMode. Only explicit
// development names are non-production; anything else is production.
func ParseBuildMode(env string) BuildMode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return BuildDevelopment
	default:
		return BuildProduction
	}
}

// IsProduction reports whether the mode is production. The zero value is production.
func (m BuildMode) IsProduction() bool { return m != BuildDevelopment }
