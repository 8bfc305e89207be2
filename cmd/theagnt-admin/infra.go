package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	"github.com/darrenapfel/theagnt-website-sub001/internal/bootstrap"
)

var errPostgresRequired = errors.New("command requires STORE_BACKEND=postgres")

// infra holds the connections a command opened. Either field may be nil.
type infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (i *infra) Close() error {
	var closeErr error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

type connectInfraOptions struct {
	Logger *slog.Logger
	Config *config.AppConfig
	// ForceDB connects Postgres even when no configured store needs it (migrations).
	ForceDB bool
}

// connectInfra opens the backends the configured stores require.
func connectInfra(opts *connectInfraOptions) (*infra, error) {
	out := &infra{}
	if opts.ForceDB || opts.Config.NeedsPostgres() {
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: opts.Config.Postgres, Logger: opts.Logger})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		out.DB = db
	}

	if !opts.Config.NeedsRedis() {
		return out, nil
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: opts.Config.Redis, Logger: opts.Logger})
	if err != nil {
		err = fmt.Errorf("connect redis: %w", err)
		if closeErr := out.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	out.Redis = client
	return out, nil
}

func closeInfraLogged(i *infra, logger *slog.Logger) {
	if err := i.Close(); err != nil {
		logger.Warn("close infrastructure failed", "error", err)
	}
}
