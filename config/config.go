package config

import (
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - access.go: Organization domain and admin identity
//   - auth.go: OAuth providers and session signing
//   - database.go: Store backends, Postgres and Redis
//   - email.go: Magic-link email transport
//   - http.go: HTTP server configuration
//   - observability.go: Logging and metrics
//   - services.go: Service mode and token reaper configuration
type AppConfig struct {
	// Env selects the build mode. Only development names (development, dev, local, test)
	// enable non-production behavior such as the dev session bridge.
	Env string `env:"APP_ENV" envDefault:"production"`

	Access AccessConfig
	Auth   AuthConfig

	Storage  StorageConfig
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP  HTTPConfig
	Email EmailConfig

	// Services is a comma-separated list of services to run in this process.
	Services string `env:"SERVICES" envDefault:"http"`

	Reaper TokenReaperConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Access.Sanitize()
	c.Auth.Sanitize()
	c.Storage.Sanitize()
	c.HTTP.Sanitize()
	c.Email.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports every configuration problem that would prevent startup.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if c.Access.OrgDomain == "" {
		errs = append(errs, errors.New("ORG_DOMAIN is required"))
	}
	if !domainauth.IsValidEmail(c.Access.AdminEmail) {
		errs = append(errs, fmt.Errorf("ADMIN_EMAIL %q is not a valid email", c.Access.AdminEmail))
	}
	if c.NeedsRedis() && c.Redis.URI == "" && !c.Redis.UseCluster && !c.Redis.UseSentinel {
		errs = append(errs, errors.New("TOKEN_STORE=redis or SESSION_STORE=redis requires REDIS_URI"))
	}
	if c.Email.Transport == TransportHTTP {
		if c.Email.APIURL == "" {
			errs = append(errs, errors.New("EMAIL_TRANSPORT=http requires EMAIL_API_URL"))
		}
		if c.Email.From == "" {
			errs = append(errs, errors.New("EMAIL_TRANSPORT=http requires EMAIL_FROM"))
		}
	}
	if c.Auth.SessionSecret != "" && len(c.Auth.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if err := c.Auth.Apple.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BuildMode maps Env onto the domain build mode.
func (c *AppConfig) BuildMode() domainauth.BuildMode {
	return domainauth.ParseBuildMode(c.Env)
}

// NeedsPostgres reports whether any configured store is backed by Postgres.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Storage.Backend == BackendPostgres || c.Storage.TokenBackend() == BackendPostgres
}

// NeedsRedis reports whether Redis backs OAuth sessions or tokens.
func (c *AppConfig) NeedsRedis() bool {
	return c.Storage.SessionStore == BackendRedis || c.Storage.TokenBackend() == BackendRedis
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsTokenReaperEnabled returns true if the token reaper service is enabled.
func (c *AppConfig) IsTokenReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeTokenReaper]
}
