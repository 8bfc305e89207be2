package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/email"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/memory"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/reaper"
	redisadapter "github.com/darrenapfel/theagnt-website-sub001/internal/adapters/redis"
	"github.com/darrenapfel/theagnt-website-sub001/internal/data"
	httpx "github.com/darrenapfel/theagnt-website-sub001/internal/http"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// Stores groups the adapters backing each service port.
type Stores struct {
	Accounts  ports.AccountStore
	Directory ports.UserDirectory
	Waitlist  ports.WaitlistStore
	Tokens    ports.TokenStore
	// Purger is nil when the token store expires entries itself (Redis).
	Purger   ports.TokenPurger
	Sessions ports.OAuthSessionStore
	// Cache is nil without Redis.
	Cache  ports.Cache
	Health map[string]httpx.HealthCheck
}

// BuildStores selects store adapters per cfg.Storage. db and rdb may be nil when not required.
func BuildStores(cfg *config.AppConfig, db *sql.DB, rdb redis.UniversalClient) (Stores, error) {
	if cfg == nil {
		return Stores{}, errors.New("app config is required")
	}
	if cfg.NeedsPostgres() && db == nil {
		return Stores{}, errors.New("postgres backend selected but database is not connected")
	}
	if cfg.NeedsRedis() && rdb == nil {
		return Stores{}, errors.New("redis backend selected but redis is not connected")
	}

	stores := Stores{Health: make(map[string]httpx.HealthCheck)}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		users := data.NewUserRepo(db)
		waitlist := data.NewWaitlistRepo(db)
		stores.Accounts, stores.Directory, stores.Waitlist = users, users, waitlist
	default:
		mem := memory.NewIdentityStore()
		stores.Accounts, stores.Directory, stores.Waitlist = mem, mem, mem
	}

	switch cfg.Storage.TokenBackend() {
	case config.BackendPostgres:
		repo := data.NewMagicLinkRepo(db)
		stores.Tokens, stores.Purger = repo, repo
	case config.BackendRedis:
		stores.Tokens = redisadapter.NewTokenStore(rdb)
	default:
		mem := memory.NewTokenStore()
		stores.Tokens, stores.Purger = mem, mem
	}

	if cfg.Storage.SessionStore == config.BackendRedis {
		stores.Sessions = redisadapter.NewSessionStore(rdb)
	} else {
		stores.Sessions = memory.NewSessionStore()
	}

	if db != nil {
		stores.Health["postgres"] = db.PingContext
	}
	if rdb != nil {
		cache := redisadapter.NewCache(rdb)
		stores.Cache = cache
		stores.Health["redis"] = cache.Health
	}

	return stores, nil
}

// BuildEmailSender returns the configured magic-link transport.
//
//nolint:ireturn // callers only need the port.
func BuildEmailSender(cfg *config.AppConfig, logger *slog.Logger) (ports.EmailSender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Email.Transport {
	case config.TransportHTTP:
		sender, err := email.NewHTTPSender(email.HTTPConfig{
			APIURL:  cfg.Email.APIURL,
			APIKey:  cfg.Email.APIKey,
			From:    cfg.Email.From,
			Timeout: cfg.Email.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build http email sender: %w", err)
		}
		return sender, nil
	default:
		if cfg.BuildMode().IsProduction() {
			logger.Warn("EMAIL_TRANSPORT=log in production; magic links are written to stdout only")
		}
		return email.NewConsoleSender(os.Stdout, logger), nil
	}
}

// TokenReaperConfig contains configuration for the token reaper.
type TokenReaperConfig struct {
	Store    ports.TokenPurger
	Interval time.Duration
	Grace    time.Duration
	Metrics  interface{ TokensPurged(n int64) }
	Logger   *slog.Logger
}

// RunTokenReaper starts the token reaper service.
func RunTokenReaper(ctx context.Context, cfg TokenReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Store:    cfg.Store,
		Interval: cfg.Interval,
		Grace:    cfg.Grace,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create token reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
