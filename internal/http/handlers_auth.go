package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// AuthServiceInterface defines the provider login operations used by the handlers.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, provider, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// Sign-in page error codes.
const (
	signInErrProvider = "provider"
	signInErrOAuth    = "oauth"
	signInErrDenied   = "oauth_denied"
	signInErrState    = "state"
	signInErrSession  = "session"
)

// AuthHandlers provides HTTP handlers for the provider login flow and session endpoints.
type AuthHandlers struct {
	Svc         AuthServiceInterface
	Resolver    IdentityResolver
	Cookies     *Cookies
	CallbackURL string
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /auth/login/{provider}?from=<optional path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	next := domainauth.SafeRedirectPath(r.URL.Query().Get("from"), domainauth.DashboardPath)

	result, err := h.Svc.BeginLogin(r.Context(), provider, h.CallbackURL)
	if err != nil {
		code := signInErrOAuth
		if errors.Is(err, service.ErrUnknownProvider) {
			code = signInErrProvider
		}
		h.logger().WarnContext(r.Context(), "begin login failed", "provider", provider, "error", err)
		redirectToSignIn(w, r, code)
		return
	}

	h.Cookies.setOAuthFlow(w, r, oauthFlowParams{
		State:    result.State,
		Nonce:    result.Nonce,
		Provider: provider,
		Next:     next,
	})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the provider callback. Apple uses form_post, so both GET and POST arrive here.
// GET|POST /api/auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if idpErr := r.FormValue("error"); idpErr != "" {
		h.logger().InfoContext(ctx, "provider returned error", "error", idpErr)
		h.Cookies.clearOAuthFlow(w, r)
		redirectToSignIn(w, r, signInErrDenied)
		return
	}

	state := r.FormValue("state")
	stateCookie := cookieValue(r, cookieOAuthState)
	if state == "" || stateCookie == "" || state != stateCookie {
		h.logger().WarnContext(ctx, "oauth state mismatch")
		h.Cookies.clearOAuthFlow(w, r)
		redirectToSignIn(w, r, signInErrState)
		return
	}

	provider := cookieValue(r, cookieOAuthProvider)
	result, err := h.Svc.CompleteLogin(ctx, service.CompleteLoginInput{
		Provider: provider,
		Code:     r.FormValue("code"),
		State:    state,
		Nonce:    cookieValue(r, cookieOAuthNonce),
	})
	if err != nil {
		h.logger().WarnContext(ctx, "complete login failed", "provider", provider, "error", err)
		h.Cookies.clearOAuthFlow(w, r)
		redirectToSignIn(w, r, signInErrOAuth)
		return
	}

	next := domainauth.SafeRedirectPath(cookieValue(r, cookiePostLoginRedir), domainauth.DashboardPath)
	h.Cookies.SetOAuthSession(w, r, result.Session)
	h.Cookies.clearOAuthFlow(w, r)

	q := url.Values{}
	q.Set("next", next)
	http.Redirect(w, r, "/auth/complete?"+q.Encode(), http.StatusSeeOther)
}

// Complete finishes session establishment after the callback by re-resolving the identity.
// GET /auth/complete?next=<path>.
func (h *AuthHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	if id := h.Resolver.Resolve(r.Context(), sessionCookiesFromRequest(r)); id == nil {
		redirectToSignIn(w, r, signInErrSession)
		return
	}
	next := domainauth.SafeRedirectPath(r.URL.Query().Get("next"), domainauth.DashboardPath)
	http.Redirect(w, r, next, http.StatusFound)
}

// Signout deletes the server-side session and clears every session cookie.
// POST /api/auth/signout.
func (h *AuthHandlers) Signout(w http.ResponseWriter, r *http.Request) {
	if id := cookieValue(r, domainauth.CookieOAuthSession); id != "" {
		if err := h.Svc.Logout(r.Context(), id); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.Cookies.ClearSessions(w, r)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "redirectTo": "/"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type sessionUser struct {
	Email             string                     `json:"email"`
	DisplayName       string                     `json:"displayName"`
	Source            domainauth.SourceKind      `json:"source"`
	Role              domainauth.Role            `json:"role"`
	PermissionLevel   domainauth.PermissionLevel `json:"permissionLevel"`
	IsAdmin           bool                       `json:"isAdmin"`
	CanAccessInternal bool                       `json:"canAccessInternal"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *sessionUser `json:"user,omitempty"`
}

// Session returns the current authentication status.
// GET /api/auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	id := h.Resolver.Resolve(r.Context(), sessionCookiesFromRequest(r))
	if id == nil {
		WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		User: &sessionUser{
			Email:             id.Email,
			DisplayName:       id.DisplayName,
			Source:            id.SourceKind(),
			Role:              id.Access.Role,
			PermissionLevel:   id.Access.PermissionLevel,
			IsAdmin:           id.Access.IsAdmin,
			CanAccessInternal: id.Access.CanAccessInternal,
		},
	})
}

func redirectToSignIn(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, domainauth.SignInPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// wantsJSON reports whether the caller is a script rather than a browser navigation.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
