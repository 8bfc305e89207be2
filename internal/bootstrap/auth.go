package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/oidc"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/sessionsig"
	httpx "github.com/darrenapfel/theagnt-website-sub001/internal/http"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// ProviderConfig contains configuration for OIDC provider discovery.
type ProviderConfig struct {
	Auth    config.AuthConfig
	BaseURL string
	Logger  *slog.Logger
}

// BuildProviders discovers every configured identity provider. A provider that fails
// discovery is skipped with a warning so the remaining sign-in methods stay available.
func BuildProviders(ctx context.Context, cfg ProviderConfig) []ports.AuthProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	callback := cfg.BaseURL + httpx.CallbackPath

	var providers []ports.AuthProvider

	if g := cfg.Auth.Google; g.Enabled() {
		redirect := g.RedirectURL
		if redirect == "" {
			redirect = callback
		}
		prov, err := oidc.NewGoogleProvider(ctx, g.ClientID, g.ClientSecret, redirect)
		if err != nil {
			logger.Warn("failed to create google OIDC provider, google sign-in disabled", "error", err)
		} else {
			providers = append(providers, prov)
		}
	}

	if a := cfg.Auth.Apple; a.Enabled() {
		if prov, err := buildAppleProvider(ctx, a, callback); err != nil {
			logger.Warn("failed to create apple OIDC provider, apple sign-in disabled", "error", err)
		} else {
			providers = append(providers, prov)
		}
	}

	if len(providers) == 0 {
		logger.Warn("no OAuth providers configured; only magic-link sign-in is available")
	}
	return providers
}

func buildAppleProvider(ctx context.Context, a config.AppleOAuthConfig, callback string) (*oidc.Provider, error) {
	secret, err := oidc.NewAppleSecretSigner(oidc.AppleSecretConfig{
		TeamID:        a.TeamID,
		ClientID:      a.ClientID,
		KeyID:         a.KeyID,
		PrivateKeyPEM: a.PrivateKey,
	})
	if err != nil {
		return nil, fmt.Errorf("apple client secret: %w", err)
	}
	redirect := a.RedirectURL
	if redirect == "" {
		redirect = callback
	}
	return oidc.NewAppleProvider(ctx, a.ClientID, redirect, secret)
}

// BuildSessionSigner returns the email-session signer, or nil when SESSION_SECRET is unset.
//
//nolint:ireturn // nil signals unsigned sessions to the resolver and cookie writer.
func BuildSessionSigner(cfg *config.AppConfig, logger *slog.Logger) (ports.SessionSigner, error) {
	if cfg.Auth.SessionSecret == "" {
		if logger != nil && cfg.BuildMode().IsProduction() {
			logger.Warn("SESSION_SECRET is empty; email-session cookies are unsigned")
		}
		return nil, nil
	}
	signer, err := sessionsig.New(cfg.Auth.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("session signer: %w", err)
	}
	return signer, nil
}
