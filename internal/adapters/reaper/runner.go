// Package reaper provides adapters for running the magic-link token reaper.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/darrenapfel/theagnt-website-sub001/internal/data"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// Runner wraps the token reaper loop for the service runner.
type Runner struct {
	reaper *service.TokenReaper
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
// One of DB or Store must be set; Store wins when both are.
type RunnerOptions struct {
	DB       *sql.DB
	Store    ports.TokenPurger
	Interval time.Duration
	Grace    time.Duration
	Metrics  interface{ TokensPurged(n int64) }
	Logger   *slog.Logger
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store = data.NewMagicLinkRepo(opts.DB)
	}

	tr, err := service.NewTokenReaper(service.TokenReaperOptions{
		Store:   store,
		Config:  service.TokenReaperConfig{Interval: opts.Interval, Grace: opts.Grace},
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire token reaper: %w", err)
	}

	return &Runner{reaper: tr, logger: opts.Logger}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Store == nil {
		return errors.New("database connection or token store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting token reaper runner")
	return r.reaper.Run(ctx)
}

// PurgeOnce runs a single purge pass.
func (r *Runner) PurgeOnce(ctx context.Context) (int64, error) {
	return r.reaper.PurgeOnce(ctx)
}
