package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

type purgeMetrics interface {
	TokensPurged(n int64)
}

// TokenReaperConfig controls how often expired tokens are removed.
type TokenReaperConfig struct {
	Interval time.Duration // default 15m
	// Grace keeps expired tokens around so late clicks still report "expired" rather than "not found".
	Grace time.Duration // default 24h
}

// TokenReaperOptions groups dependencies for TokenReaper.
type TokenReaperOptions struct {
	Store   ports.TokenPurger // Required
	Config  TokenReaperConfig
	Metrics purgeMetrics // Optional
	Logger  *slog.Logger // Optional
	Now     func() time.Time
}

// TokenReaper periodically deletes magic-link tokens past expiry plus grace.
type TokenReaper struct {
	store   ports.TokenPurger
	cfg     TokenReaperConfig
	metrics purgeMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewTokenReaper constructs a TokenReaper.
func NewTokenReaper(opts TokenReaperOptions) (*TokenReaper, error) {
	if opts.Store == nil {
		return nil, errors.New("TokenPurger is required")
	}
	cfg := opts.Config
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	} else if cfg.Grace == 0 {
		cfg.Grace = 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenReaper{
		store:   opts.Store,
		cfg:     cfg,
		metrics: opts.Metrics,
		logger:  logger.With("component", "token_reaper"),
		now:     now,
	}, nil
}

// PurgeOnce removes tokens that expired before now minus grace.
func (r *TokenReaper) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.cfg.Grace)
	n, err := r.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, &UpstreamError{Op: "purge tokens", Err: err}
	}
	if r.metrics != nil {
		r.metrics.TokensPurged(n)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "purged expired magic link tokens", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run purges at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *TokenReaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting token reaper", "interval", r.cfg.Interval, "grace", r.cfg.Grace)

	// Jitter avoids every replica purging at the same instant.
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "purge expired tokens", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "token reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitWithJitter waits a random delay up to 10% of the interval.
func (r *TokenReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.cfg.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
