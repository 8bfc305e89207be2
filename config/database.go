package config

import (
	"fmt"
	"strings"
	"time"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for Backend.
func (b *Backend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch Backend(v) {
	case "", BackendMemory, BackendPostgres, BackendRedis:
		*b = Backend(v)
		return nil
	default:
		return fmt.Errorf("invalid Backend: %q (valid options: memory, postgres, redis)", v)
	}
}

// StorageConfig selects the backends for each store.
type StorageConfig struct {
	// Backend holds users and the waitlist: memory or postgres.
	Backend Backend `env:"STORE_BACKEND" envDefault:"memory"`
	// TokenStore overrides where magic-link tokens live; empty follows Backend.
	TokenStore Backend `env:"TOKEN_STORE"`
	// SessionStore holds OAuth sessions: memory or redis.
	SessionStore Backend `env:"SESSION_STORE" envDefault:"memory"`
	// AdminCacheTTL caches admin overviews in Redis when Redis is configured. Zero disables.
	AdminCacheTTL time.Duration `env:"ADMIN_CACHE_TTL" envDefault:"30s"`
}

// Sanitize coerces unsupported combinations to the nearest valid backend.
func (s *StorageConfig) Sanitize() {
	if s.Backend == "" || s.Backend == BackendRedis {
		s.Backend = BackendMemory
	}
	if s.SessionStore != BackendRedis {
		s.SessionStore = BackendMemory
	}
	if s.AdminCacheTTL < 0 {
		s.AdminCacheTTL = 0
	}
}

// TokenBackend returns the effective token store backend.
func (s StorageConfig) TokenBackend() Backend {
	if s.TokenStore == "" {
		return s.Backend
	}
	return s.TokenStore
}

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"theagnt"`
	Password string `env:"PASSWORD"                envDefault:"theagnt"`
	Name     string `env:"NAME"                    envDefault:"theagnt"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
