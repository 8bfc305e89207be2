package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// MagicLinkServiceInterface is the passwordless email flow used by the handlers.
type MagicLinkServiceInterface interface {
	Issue(ctx context.Context, email, redirectTo string) (*service.IssueResult, error)
	Verify(ctx context.Context, token, email string) (*service.VerifyResult, error)
}

// Codes carried to /auth/error after a failed verification.
const (
	linkErrInvalid = "link_invalid"
	linkErrExpired = "link_expired"
	linkErrUsed    = "link_used"
	linkErrServer  = "server_error"
)

// AuthErrorPath is the page that explains a failed sign-in.
const AuthErrorPath = "/auth/error"

// MagicLinkHandlers serves the magic-link request and verification endpoints.
type MagicLinkHandlers struct {
	Svc     MagicLinkServiceInterface
	Cookies *Cookies
	Logger  *slog.Logger
}

func (h *MagicLinkHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type magicLinkRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// Request issues a magic link. The response is the same whether or not an account exists.
// POST /api/auth/magic-link.
func (h *MagicLinkHandlers) Request(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	_, err := h.Svc.Issue(r.Context(), req.Email, req.RedirectTo)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, domainauth.ErrInvalidEmail):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCodeInvalidEmail})
	case service.IsTransportError(err):
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: errCodeEmailUnavailable})
	default:
		h.logger().ErrorContext(r.Context(), "issue magic link", "error", err)
		WriteError(w, ErrorParams{Code: upstreamStatus(err), ErrCode: errCodeServerError})
	}
}

// Verify consumes a magic link and establishes the email session.
// GET /api/auth/verify-email?token=&email=&redirect=.
func (h *MagicLinkHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.Verify(r.Context(), q.Get("token"), q.Get("email"))
	if err != nil {
		redirectToAuthError(w, r, verifyErrorCode(err))
		return
	}

	if err := h.Cookies.SetEmailSession(w, r, res.Identity.Email); err != nil {
		h.logger().ErrorContext(r.Context(), "set email session", "email", res.Identity.Email, "error", err)
		redirectToAuthError(w, r, linkErrServer)
		return
	}
	// A magic-link session replaces any dev bypass marker.
	h.Cookies.Clear(w, r, domainauth.CookieDevSession)

	target := res.RedirectTo
	if target == "" {
		target = q.Get("redirect")
	}
	http.Redirect(w, r, domainauth.SafeRedirectPath(target, domainauth.DashboardPath), http.StatusFound)
}

func verifyErrorCode(err error) string {
	switch domainauth.TokenFailureOf(err) {
	case domainauth.TokenExpired:
		return linkErrExpired
	case domainauth.TokenConsumed:
		return linkErrUsed
	case domainauth.TokenNotFound, domainauth.TokenMismatch:
		return linkErrInvalid
	default:
		return linkErrServer
	}
}

func redirectToAuthError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, AuthErrorPath+"?code="+url.QueryEscape(code), http.StatusFound)
}
