package httpx

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// Temporary cookies for the OAuth round trip.
const (
	cookieOAuthState     = "oauth_state"
	cookieOAuthNonce     = "oauth_nonce"
	cookieOAuthProvider  = "oauth_provider"
	cookiePostLoginRedir = "post_login_redirect"

	oauthCookieMaxAge = 10 * time.Minute
)

// Cookies writes and clears the session cookies. The zero value works without a domain or signer.
type Cookies struct {
	Domain string
	Signer ports.SessionSigner // Optional: adds email-session-sig next to email-session
	Now    func() time.Time
}

func (c *Cookies) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cookies) domain() string {
	if c == nil {
		return ""
	}
	return c.Domain
}

// SetEmailSession writes email-session and, when a signer is configured, its signature.
// Nothing is written when email would not survive as a cookie value byte for byte.
func (c *Cookies) SetEmailSession(w http.ResponseWriter, r *http.Request, email string) error {
	if !cookieSafe(email) {
		return fmt.Errorf("email session value %q is not cookie-safe", email)
	}
	if c != nil && c.Signer != nil {
		sig, err := c.Signer.Sign(email, c.now())
		if err != nil {
			return fmt.Errorf("sign email session: %w", err)
		}
		c.set(w, r, cookieSpec{Name: domainauth.CookieEmailSessionSig, Value: sig, MaxAge: domainauth.SessionMaxAge})
	}
	c.set(w, r, cookieSpec{Name: domainauth.CookieEmailSession, Value: email, MaxAge: domainauth.SessionMaxAge})
	return nil
}

// SetDevSession writes the dev-session marker.
func (c *Cookies) SetDevSession(w http.ResponseWriter, r *http.Request, marker string) {
	c.set(w, r, cookieSpec{Name: domainauth.CookieDevSession, Value: marker, MaxAge: domainauth.SessionMaxAge})
}

// SetOAuthSession writes session_id for a persisted provider session.
func (c *Cookies) SetOAuthSession(w http.ResponseWriter, r *http.Request, sess domainauth.OAuthSession) {
	maxAge := sess.ExpiresAt.Sub(c.now())
	if maxAge <= 0 || maxAge > domainauth.SessionMaxAge {
		maxAge = domainauth.SessionMaxAge
	}
	c.set(w, r, cookieSpec{Name: domainauth.CookieOAuthSession, Value: sess.ID, MaxAge: maxAge})
}

// ClearSessions removes every identity-carrying cookie.
func (c *Cookies) ClearSessions(w http.ResponseWriter, r *http.Request) {
	c.Clear(w, r, domainauth.CookieOAuthSession)
	c.Clear(w, r, domainauth.CookieEmailSession)
	c.Clear(w, r, domainauth.CookieEmailSessionSig)
	c.Clear(w, r, domainauth.CookieDevSession)
}

// Clear clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies
// to maximize compatibility across browsers during deletion.
func (c *Cookies) Clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.domain(),
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setOAuthFlow stores state, nonce, provider and the post-login path for the callback.
// Apple posts the callback cross-site (form_post), which Lax cookies would not survive,
// so on HTTPS these use SameSite=None.
func (c *Cookies) setOAuthFlow(w http.ResponseWriter, r *http.Request, p oauthFlowParams) {
	sameSite := http.SameSiteLaxMode
	if isSecureRequest(r) {
		sameSite = http.SameSiteNoneMode
	}
	for name, value := range map[string]string{
		cookieOAuthState:     p.State,
		cookieOAuthNonce:     p.Nonce,
		cookieOAuthProvider:  p.Provider,
		cookiePostLoginRedir: p.Next,
	} {
		c.set(w, r, cookieSpec{Name: name, Value: value, MaxAge: oauthCookieMaxAge, SameSite: sameSite})
	}
}

func (c *Cookies) clearOAuthFlow(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{cookieOAuthState, cookieOAuthNonce, cookieOAuthProvider, cookiePostLoginRedir} {
		c.Clear(w, r, name)
	}
}

type oauthFlowParams struct {
	State    string
	Nonce    string
	Provider string
	Next     string
}

type cookieSpec struct {
	Name     string
	Value    string
	MaxAge   time.Duration
	SameSite http.SameSite // defaults to Lax
}

func (c *Cookies) set(w http.ResponseWriter, r *http.Request, s cookieSpec) {
	sameSite := s.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     "/",
		Domain:   c.domain(),
		HttpOnly: true,
		Secure:   isSecureRequest(r) || sameSite == http.SameSiteNoneMode,
		SameSite: sameSite,
		MaxAge:   int(s.MaxAge.Seconds()),
	})
}

// cookieSafe reports whether net/http would send v unchanged and unquoted.
func cookieSafe(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		switch b := v[i]; {
		case b <= 0x20 || b >= 0x7f:
			return false
		case b == '"' || b == ';' || b == '\\' || b == ',':
			return false
		}
	}
	return true
}

// isSecureRequest reports whether the request arrived over HTTPS, directly or via a proxy.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// sessionCookiesFromRequest collects the cookies the session resolver reads.
func sessionCookiesFromRequest(r *http.Request) service.SessionCookies {
	return service.SessionCookies{
		OAuthSessionID:  cookieValue(r, domainauth.CookieOAuthSession),
		EmailSession:    cookieValue(r, domainauth.CookieEmailSession),
		EmailSessionSig: cookieValue(r, domainauth.CookieEmailSessionSig),
		DevSession:      cookieValue(r, domainauth.CookieDevSession),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
