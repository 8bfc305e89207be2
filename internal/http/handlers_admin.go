package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// AdminServiceInterface loads the admin and internal overviews.
type AdminServiceInterface interface {
	Overview(ctx context.Context, scope service.OverviewScope, limit int) (*service.Overview, error)
}

// WaitlistServiceInterface records waitlist interest.
type WaitlistServiceInterface interface {
	Join(ctx context.Context, email string) (model.WaitlistEntry, error)
}

// AdminHandlers serves the admin and internal JSON views.
type AdminHandlers struct {
	Svc    AdminServiceInterface
	Logger *slog.Logger
}

func (h *AdminHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Admin returns metrics and every user row.
// GET /api/admin?limit=.
func (h *AdminHandlers) Admin(w http.ResponseWriter, r *http.Request) {
	h.overview(w, r, service.ScopeAdmin)
}

// InternalWaitlist returns the same shape with user rows scoped to the organization.
// GET /api/internal/waitlist?limit=.
func (h *AdminHandlers) InternalWaitlist(w http.ResponseWriter, r *http.Request) {
	h.overview(w, r, service.ScopeInternal)
}

func (h *AdminHandlers) overview(w http.ResponseWriter, r *http.Request, scope service.OverviewScope) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_limit", Message: "limit must be a positive integer."})
			return
		}
		limit = n
	}

	ov, err := h.Svc.Overview(r.Context(), scope, limit)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "load overview", "scope", scope, "error", err)
		WriteError(w, ErrorParams{Code: upstreamStatus(err), ErrCode: errCodeServerError})
		return
	}
	WriteJSON(w, http.StatusOK, ov)
}

// WaitlistHandlers serves the public waitlist signup.
type WaitlistHandlers struct {
	Svc    WaitlistServiceInterface
	Logger *slog.Logger
}

type waitlistRequest struct {
	Email string `json:"email"`
}

// Join records an email. The response does not reveal whether it was already present.
// POST /api/waitlist.
func (h *WaitlistHandlers) Join(w http.ResponseWriter, r *http.Request) {
	var req waitlistRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if _, err := h.Svc.Join(r.Context(), req.Email); err != nil {
		if errors.Is(err, domainauth.ErrInvalidEmail) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCodeInvalidEmail})
			return
		}
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "join waitlist", "error", err)
		WriteError(w, ErrorParams{Code: upstreamStatus(err), ErrCode: errCodeServerError})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
