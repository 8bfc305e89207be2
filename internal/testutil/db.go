// Package testutil holds helpers shared by tests that need Postgres or Redis.
// Tests skip when the backing service is unreachable unless TEST_REQUIRE_INFRA
// (or the service-specific TEST_REQUIRE_DB / TEST_REQUIRE_REDIS) is truthy.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	// Register the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/darrenapfel/theagnt-website-sub001/internal/migrate"
)

// resetTables lists every table a shared test database is wiped of between tests.
var resetTables = []string{"magic_link_tokens", "waitlist", "users"}

// DBConfig locates the test database. Port 55432 matches the compose test profile;
// CI sets TEST_DB_PORT=5432.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     string `env:"PORT"     envDefault:"55432"`
	User     string `env:"USER"     envDefault:"theagnt"`
	Password string `env:"PASSWORD" envDefault:"theagnt"`
	Name     string `env:"NAME"     envDefault:"theagnt"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
	// Ephemeral gives every test its own schema instead of truncating a shared one.
	Ephemeral bool `env:"EPHEMERAL"`
}

// LoadDBConfig reads TEST_DB_* from the environment.
func LoadDBConfig() (DBConfig, error) {
	var cfg DBConfig
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: "TEST_DB_"})
	return cfg, err
}

// URL renders a pgx connection URL. searchPath is optional.
func (c DBConfig) URL(searchPath string) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	if searchPath != "" {
		q.Set("search_path", searchPath)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SkipIfNoTestDB skips (or fails, when required) if the test database cannot be reached.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()
	db := openDB(t, "")
	closeQuietly(t, "probe db", db)
}

// WithAutoDB runs fn against a migrated, empty database: a per-test schema when
// TEST_DB_EPHEMERAL is set, otherwise the shared database with tables reset.
func WithAutoDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	cfg := mustConfig(t)
	if cfg.Ephemeral {
		WithEphemeralDB(t, fn)
		return
	}

	db := openDB(t, "")
	t.Cleanup(func() {
		resetDB(t, db)
		closeQuietly(t, "test db", db)
	})
	migrateDB(t, db)
	resetDB(t, db)
	fn(db)
}

// WithEphemeralDB runs fn against a freshly created and migrated schema that is dropped afterwards.
func WithEphemeralDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	admin := openDB(t, "")
	schema := schemaName()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeQuietly(t, "admin db", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db := openDB(t, schema+",public")
	t.Cleanup(func() {
		closeQuietly(t, "schema db", db)
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		closeQuietly(t, "admin db", admin)
	})
	t.Logf("using ephemeral schema %s", schema)

	migrateDB(t, db)
	fn(db)
}

func mustConfig(t testing.TB) DBConfig {
	t.Helper()
	cfg, err := LoadDBConfig()
	if err != nil {
		t.Fatalf("parse TEST_DB_* env: %v", err)
	}
	return cfg
}

func openDB(t testing.TB, searchPath string) *sql.DB {
	t.Helper()
	cfg := mustConfig(t)
	db, err := sql.Open("pgx", cfg.URL(searchPath))
	if err != nil {
		skipOrFail(t, requireDB(), "test database not available:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(t, "test db", db)
		skipOrFail(t, requireDB(), "test database not available:", err)
	}
	return db
}

func migrateDB(t testing.TB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
}

func resetDB(t testing.TB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, table := range resetTables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset table %s: %v", table, err)
		}
	}
}

func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%08x", uint32(time.Now().UnixNano()))
	}
	return "t_" + hex.EncodeToString(b)
}

func closeQuietly(t testing.TB, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func skipOrFail(t testing.TB, required bool, args ...any) {
	t.Helper()
	if required {
		t.Fatal(args...)
	}
	t.Skip(args...)
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }
