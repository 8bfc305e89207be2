package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/devauth"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

// DevBridge fabricates sessions in non-production builds. Every method refuses in production.
type DevBridge interface {
	Enabled() bool
	LoginAs(email string) (devauth.Session, error)
	CreateDevSession(role domainauth.Role) (devauth.Session, error)
	ClearDevSession() error
	Personas() []devauth.Payload
}

// DevHandlers exposes the dev session bridge over HTTP.
type DevHandlers struct {
	Bridge  DevBridge
	Cookies *Cookies
	Logger  *slog.Logger
}

func (h *DevHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type devLoginRequest struct {
	Email string `json:"email"`
}

type devSessionRequest struct {
	Role string `json:"role"`
}

// Login sets the cookie pair for an arbitrary email.
// POST /api/dev/login.
func (h *DevHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.Bridge.Enabled() {
		h.forbidden(w, r)
		return
	}
	var req devLoginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Bridge.LoginAs(req.Email)
	h.finish(w, r, sess, err)
}

// CreateSession sets the cookie pair for a canned persona.
// POST /api/dev/session.
func (h *DevHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.Bridge.Enabled() {
		h.forbidden(w, r)
		return
	}
	var req devSessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	role, err := domainauth.ParseRole(req.Role)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCodeInvalidRole})
		return
	}
	sess, err := h.Bridge.CreateDevSession(role)
	h.finish(w, r, sess, err)
}

// ClearSession removes the dev cookie pair.
// DELETE /api/dev/session.
func (h *DevHandlers) ClearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Bridge.ClearDevSession(); err != nil {
		h.forbidden(w, r)
		return
	}
	h.Cookies.Clear(w, r, domainauth.CookieDevSession)
	h.Cookies.Clear(w, r, domainauth.CookieEmailSession)
	h.Cookies.Clear(w, r, domainauth.CookieEmailSessionSig)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *DevHandlers) finish(w http.ResponseWriter, r *http.Request, sess devauth.Session, err error) {
	switch {
	case errors.Is(err, domainauth.ErrForbidden):
		h.forbidden(w, r)
		return
	case errors.Is(err, domainauth.ErrInvalidEmail):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCodeInvalidEmail})
		return
	case errors.Is(err, domainauth.ErrInvalidRole):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCodeInvalidRole})
		return
	case err != nil:
		h.logger().ErrorContext(r.Context(), "create dev session", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: errCodeServerError})
		return
	}

	if err := h.Cookies.SetEmailSession(w, r, sess.EmailCookie); err != nil {
		h.logger().ErrorContext(r.Context(), "set dev email session", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: errCodeServerError})
		return
	}
	h.Cookies.SetDevSession(w, r, sess.MarkerCookie)
	// A provider session would outrank the dev pair.
	h.Cookies.Clear(w, r, domainauth.CookieOAuthSession)

	h.logger().WarnContext(r.Context(), "dev session created", "email", sess.Identity.Email)
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]string{
			"email":       sess.Identity.Email,
			"displayName": sess.Identity.DisplayName,
		},
	})
}

func (h *DevHandlers) forbidden(w http.ResponseWriter, r *http.Request) {
	h.logger().WarnContext(r.Context(), "dev bypass refused", "path", r.URL.Path)
	WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: errCodeForbidden})
}
