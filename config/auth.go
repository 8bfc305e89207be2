package config

import (
	"errors"
	"strings"
)

const minSessionSecretLen = 32

// GoogleOAuthConfig contains Google OIDC client settings. Empty ClientID disables Google sign-in.
type GoogleOAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	// RedirectURL defaults to APP_BASE_URL + /api/auth/callback when empty.
	RedirectURL string `env:"REDIRECT_URL"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleOAuthConfig) Enabled() bool { return g.ClientID != "" && g.ClientSecret != "" }

// AppleOAuthConfig contains Sign in with Apple settings. Empty ClientID disables Apple sign-in.
type AppleOAuthConfig struct {
	ClientID string `env:"CLIENT_ID"`
	TeamID   string `env:"TEAM_ID"`
	KeyID    string `env:"KEY_ID"`
	// PrivateKey is the PEM-encoded .p8 key. Literal "\n" sequences are expanded.
	PrivateKey  string `env:"PRIVATE_KEY"`
	RedirectURL string `env:"REDIRECT_URL"`
}

// Enabled reports whether Apple sign-in is configured.
func (a AppleOAuthConfig) Enabled() bool { return a.ClientID != "" }

// Validate requires the signing material once Apple is enabled.
func (a AppleOAuthConfig) Validate() error {
	if !a.Enabled() {
		return nil
	}
	if a.TeamID == "" || a.KeyID == "" || a.PrivateKey == "" {
		return errors.New("OAUTH_APPLE_CLIENT_ID requires OAUTH_APPLE_TEAM_ID, OAUTH_APPLE_KEY_ID and OAUTH_APPLE_PRIVATE_KEY")
	}
	return nil
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// SessionSecret signs the email-session cookie. When empty, email sessions are unsigned.
	SessionSecret string `env:"SESSION_SECRET"`

	Google GoogleOAuthConfig `envPrefix:"OAUTH_GOOGLE_"`
	Apple  AppleOAuthConfig  `envPrefix:"OAUTH_APPLE_"`
}

// Sanitize trims credentials and expands escaped newlines in the Apple key.
func (a *AuthConfig) Sanitize() {
	a.SessionSecret = strings.TrimSpace(a.SessionSecret)
	a.Google.ClientID = strings.TrimSpace(a.Google.ClientID)
	a.Google.ClientSecret = strings.TrimSpace(a.Google.ClientSecret)
	a.Apple.ClientID = strings.TrimSpace(a.Apple.ClientID)
	a.Apple.PrivateKey = strings.ReplaceAll(strings.TrimSpace(a.Apple.PrivateKey), `\n`, "\n")
}
