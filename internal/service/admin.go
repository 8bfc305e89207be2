package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

const (
	defaultOverviewLimit = 100
	maxOverviewLimit     = 500
)

// OverviewScope selects which rows an overview may expose.
type OverviewScope string

const (
	// ScopeAdmin includes every account.
	ScopeAdmin OverviewScope = "admin"
	// ScopeInternal limits account rows to the organization domain.
	ScopeInternal OverviewScope = "internal"
)

// AdminConfig holds non-dependency settings for AdminService.
type AdminConfig struct {
	OrgDomain string
	CacheTTL  time.Duration // zero disables caching even when a cache is wired
}

// AdminServiceOptions groups dependencies for AdminService.
type AdminServiceOptions struct {
	Users    ports.UserDirectory // Required
	Waitlist ports.WaitlistStore // Required
	Cache    ports.Cache         // Optional
	Config   AdminConfig
	Logger   *slog.Logger // Optional
}

// AdminService aggregates identity-store metrics and rows for admin and internal views.
type AdminService struct {
	users    ports.UserDirectory
	waitlist ports.WaitlistStore
	cache    ports.Cache
	cfg      AdminConfig
	logger   *slog.Logger
}

// NewAdminService constructs an AdminService.
func NewAdminService(opts AdminServiceOptions) *AdminService {
	if opts.Users == nil {
		panic("UserDirectory is required")
	}
	if opts.Waitlist == nil {
		panic("WaitlistStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		users:    opts.Users,
		waitlist: opts.Waitlist,
		cache:    opts.Cache,
		cfg:      opts.Config,
		logger:   logger.With("component", "admin"),
	}
}

// Overview is the payload behind the admin and internal endpoints.
type Overview struct {
	Metrics  model.AccessMetrics   `json:"metrics"`
	Users    []model.User          `json:"users"`
	Waitlist []model.WaitlistEntry `json:"waitlist"`
}

// Overview loads metrics and rows concurrently. Store failures are *UpstreamError.
func (s *AdminService) Overview(ctx context.Context, scope OverviewScope, limit int) (*Overview, error) {
	limit = clampLimit(limit)
	key := fmt.Sprintf("admin:overview:%s:%d", scope, limit)
	if cached := s.getCached(ctx, key); cached != nil {
		return cached, nil
	}

	var (
		out                 Overview
		totalUsers, orgUsrs int
		wlTotal, wlConv     int
		users               []model.User
		waitlist            []model.WaitlistEntry
	)
	userFilter := ""
	if scope == ScopeInternal {
		userFilter = s.cfg.OrgDomain
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.CountUsers(gctx, "")
		if err != nil {
			return &UpstreamError{Op: "count users", Err: err}
		}
		totalUsers = n
		return nil
	})
	g.Go(func() error {
		if s.cfg.OrgDomain == "" {
			return nil
		}
		n, err := s.users.CountUsers(gctx, s.cfg.OrgDomain)
		if err != nil {
			return &UpstreamError{Op: "count internal users", Err: err}
		}
		orgUsrs = n
		return nil
	})
	g.Go(func() error {
		total, converted, err := s.waitlist.CountWaitlist(gctx)
		if err != nil {
			return &UpstreamError{Op: "count waitlist", Err: err}
		}
		wlTotal, wlConv = total, converted
		return nil
	})
	g.Go(func() error {
		rows, err := s.users.ListUsers(gctx, model.UserListOptions{Domain: userFilter, Limit: limit})
		if err != nil {
			return &UpstreamError{Op: "list users", Err: err}
		}
		users = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.waitlist.ListWaitlist(gctx, model.WaitlistListOptions{Limit: limit})
		if err != nil {
			return &UpstreamError{Op: "list waitlist", Err: err}
		}
		waitlist = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "load overview", "scope", scope, "error", err)
		return nil, err
	}

	out.Metrics = model.AccessMetrics{
		TotalUsers:      totalUsers,
		InternalUsers:   orgUsrs,
		WaitlistTotal:   wlTotal,
		WaitlistSignups: wlConv,
	}
	out.Metrics.ComputeConversionRate()
	out.Users = nonNil(users)
	out.Waitlist = nonNil(waitlist)

	s.setCached(ctx, key, &out)
	return &out, nil
}

func (s *AdminService) getCached(ctx context.Context, key string) *Overview {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "overview cache get", "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var out Overview
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

func (s *AdminService) setCached(ctx context.Context, key string, ov *Overview) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(ov)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "overview cache set", "error", err)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultOverviewLimit
	}
	if limit > maxOverviewLimit {
		return maxOverviewLimit
	}
	return limit
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
