package service

import (
	"context"
	"log/slog"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// WaitlistServiceOptions groups dependencies for WaitlistService.
type WaitlistServiceOptions struct {
	Store  ports.WaitlistStore // Required
	Logger *slog.Logger        // Optional
}

// WaitlistService records visitors asking for access.
type WaitlistService struct {
	store  ports.WaitlistStore
	logger *slog.Logger
}

// NewWaitlistService constructs a WaitlistService.
func NewWaitlistService(opts WaitlistServiceOptions) *WaitlistService {
	if opts.Store == nil {
		panic("WaitlistStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WaitlistService{store: opts.Store, logger: logger.With("component", "waitlist")}
}

// Join adds email to the waitlist. Joining twice is not an error.
func (s *WaitlistService) Join(ctx context.Context, email string) (model.WaitlistEntry, error) {
	email = domainauth.NormalizeEmail(email)
	if !domainauth.IsValidEmail(email) {
		return model.WaitlistEntry{}, domainauth.ErrInvalidEmail
	}
	entry, err := s.store.AddToWaitlist(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "add to waitlist", "email", email, "error", err)
		return model.WaitlistEntry{}, &UpstreamError{Op: "add to waitlist", Err: err}
	}
	s.logger.InfoContext(ctx, "waitlist joined", "email", email)
	return entry, nil
}
