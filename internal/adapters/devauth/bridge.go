package devauth

// Package devauth fabricates sessions for non-production runs without an identity provider.

import (
	"strings"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

// Payload is the identity carried by the dev-session cookie.
type Payload = domainauth.DevPayload

// Session is what a handler needs to set the cookie pair.
type Session struct {
	Identity     domainauth.Identity
	EmailCookie  string // value for email-session
	MarkerCookie string // value for dev-session: base64url JSON Payload
}

// Bridge is the DevSessionBridge. Every entry point checks the build mode itself,
// so a production build refuses even when a caller skipped its own check.
type Bridge struct {
	mode     domainauth.BuildMode
	personas map[domainauth.Role]Payload
}

// NewBridge builds the bridge with canned personas for each role.
func NewBridge(mode domainauth.BuildMode, classifier domainauth.Classifier) *Bridge {
	org := classifier.OrgDomain()
	if org == "" {
		org = "example.org"
	}
	admin := classifier.AdminEmail()
	if admin == "" {
		admin = "admin@" + org
	}
	return &Bridge{
		mode: mode,
		personas: map[domainauth.Role]Payload{
			domainauth.RoleAdmin:    {Email: admin, DisplayName: "Dev Admin", Role: domainauth.RoleAdmin},
			domainauth.RoleInternal: {Email: "dev.internal@" + org, DisplayName: "Dev Internal", Role: domainauth.RoleInternal},
			domainauth.RoleExternal: {Email: "dev.external@example.com", DisplayName: "Dev External", Role: domainauth.RoleExternal},
		},
	}
}

// Enabled reports whether the bridge will operate.
func (b *Bridge) Enabled() bool { return !b.mode.IsProduction() }

// CreateDevSession fabricates the cookie pair for the canned persona of role.
func (b *Bridge) CreateDevSession(role domainauth.Role) (Session, error) {
	if !b.Enabled() {
		return Session{}, domainauth.ErrForbidden
	}
	p, ok := b.personas[role]
	if !ok {
		return Session{}, domainauth.ErrInvalidRole
	}
	return newSession(p)
}

// LoginAs fabricates the cookie pair for an arbitrary email-shaped address.
func (b *Bridge) LoginAs(email string) (Session, error) {
	if !b.Enabled() {
		return Session{}, domainauth.ErrForbidden
	}
	email = domainauth.NormalizeEmail(email)
	if !domainauth.IsValidEmail(email) {
		return Session{}, domainauth.ErrInvalidEmail
	}
	local, _, _ := strings.Cut(email, "@")
	return newSession(Payload{Email: email, DisplayName: local})
}

// ClearDevSession authorizes removal of the dev cookie pair.
func (b *Bridge) ClearDevSession() error {
	if !b.Enabled() {
		return domainauth.ErrForbidden
	}
	return nil
}

// Personas returns the canned payloads, admin first.
func (b *Bridge) Personas() []Payload {
	return []Payload{
		b.personas[domainauth.RoleAdmin],
		b.personas[domainauth.RoleInternal],
		b.personas[domainauth.RoleExternal],
	}
}

func newSession(p Payload) (Session, error) {
	marker, err := p.Encode()
	if err != nil {
		return Session{}, err
	}
	return Session{
		Identity: domainauth.Identity{
			Email:       p.Email,
			DisplayName: p.DisplayName,
			Source:      domainauth.DevSource{Role: p.Role},
		},
		EmailCookie:  p.Email,
		MarkerCookie: marker,
	}, nil
}
