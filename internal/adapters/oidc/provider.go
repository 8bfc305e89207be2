package oidc

// Package oidc provides OpenID Connect sign-in adapters (Google, Apple).

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	AppleIssuer  = "https://appleid.apple.com"
)

var _ ports.AuthProvider = (*Provider)(nil)

// Provider implements ports.AuthProvider for a single OIDC issuer.
type Provider struct {
	name         string
	config       *oauth2.Config
	httpClient   *http.Client
	authParams   []oauth2.AuthCodeOption
	clientSecret func() (string, error)

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for an OIDC provider.
type ProviderConfig struct {
	Name         string // route key, e.g. "google"
	ClientID     string
	ClientSecret string
	// ClientSecretFunc mints a secret per exchange; it takes precedence over ClientSecret.
	ClientSecretFunc func() (string, error)
	RedirectURL      string
	Scopes           []string
	Issuer           string
	AuthParams       map[string]string
	HTTPClient       *http.Client // Optional, defaults to a 30s-timeout client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider performs discovery against cfg.Issuer and returns a ready provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.Name == "" {
		return nil, errors.New("provider name is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" && cfg.ClientSecretFunc == nil {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(strings.TrimSuffix(cfg.Issuer, "/.well-known/openid-configuration"), "/")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", cfg.Name, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}

	p := &Provider{
		name:       cfg.Name,
		httpClient: httpClient,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		clientSecret: cfg.ClientSecretFunc,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}
	for k, v := range cfg.AuthParams {
		p.authParams = append(p.authParams, oauth2.SetAuthURLParam(k, v))
	}
	return p, nil
}

// NewGoogleProvider configures Google sign-in.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*Provider, error) {
	return NewProvider(ctx, ProviderConfig{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Issuer:       GoogleIssuer,
		AuthParams:   map[string]string{"prompt": "select_account"},
	})
}

// NewAppleProvider configures Sign in with Apple. Apple posts the callback as a form
// and requires a freshly signed client secret on every token exchange.
func NewAppleProvider(ctx context.Context, clientID, redirectURL string, secret *AppleSecretSigner) (*Provider, error) {
	if secret == nil {
		return nil, errors.New("apple secret signer is required")
	}
	return NewProvider(ctx, ProviderConfig{
		Name:             "apple",
		ClientID:         clientID,
		ClientSecretFunc: secret.Sign,
		RedirectURL:      redirectURL,
		Scopes:           []string{gooidc.ScopeOpenID, "email", "name"},
		Issuer:           AppleIssuer,
		AuthParams:       map[string]string{"response_mode": "form_post"},
	})
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri comes from the configured RedirectURL and must match it exactly.
	opts := append([]oauth2.AuthCodeOption{gooidc.Nonce(nonce)}, p.authParams...)
	return p.config.AuthCodeURL(state, opts...), state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ProviderIdentity, error) {
	if in.Code == "" {
		return domainauth.ProviderIdentity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.ProviderIdentity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.ProviderIdentity{}, errors.New("nonce is required")
	}

	cfg, err := p.exchangeConfig()
	if err != nil {
		return domainauth.ProviderIdentity{}, err
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := cfg.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.ProviderIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.verifyIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.ProviderIdentity{}, fmt.Errorf("extract id_token: %w", err)
	}

	if claims.Email == "" && p.oidcProvider.UserInfoEndpoint() != "" {
		if fillErr := p.fillFromUserInfo(ctx, token, &claims); fillErr != nil {
			return domainauth.ProviderIdentity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	return identityFromClaims(p.name, claims, token.Expiry)
}

func (p *Provider) exchangeConfig() (*oauth2.Config, error) {
	if p.clientSecret == nil {
		return p.config, nil
	}
	secret, err := p.clientSecret()
	if err != nil {
		return nil, fmt.Errorf("mint client secret: %w", err)
	}
	cfg := *p.config
	cfg.ClientSecret = secret
	return &cfg, nil
}

// idClaims is the subset of ID token and userinfo claims used for sign-in.
type idClaims struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	Nonce         string   `json:"nonce"`
}

// flexBool accepts both JSON booleans and the "true"/"false" strings Apple sends.
// A missing claim decodes as unset.
type flexBool struct {
	set   bool
	value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		b.set, b.value = true, t
	case string:
		b.set, b.value = true, strings.EqualFold(t, "true")
	case nil:
		b.set = false
	default:
		return fmt.Errorf("email_verified: unexpected type %T", v)
	}
	return nil
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (idClaims, error) {
	var c idClaims
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return c, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return c, fmt.Errorf("verify id_token: %w", err)
	}
	if claimsErr := idTok.Claims(&c); claimsErr != nil {
		return c, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if c.Nonce != expectedNonce {
		return c, errors.New("invalid nonce")
	}
	return c, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, c *idClaims) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var extra idClaims
	if claimsErr := ui.Claims(&extra); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	fillClaims(c, extra)
	return nil
}

// fillClaims copies fields from src into dst where dst is empty.
func fillClaims(dst *idClaims, src idClaims) {
	if dst.Email == "" {
		dst.Email = src.Email
		dst.EmailVerified = src.EmailVerified
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.GivenName == "" {
		dst.GivenName = src.GivenName
	}
	if dst.FamilyName == "" {
		dst.FamilyName = src.FamilyName
	}
}

func identityFromClaims(provider string, c idClaims, expiry time.Time) (domainauth.ProviderIdentity, error) {
	if c.Sub == "" {
		return domainauth.ProviderIdentity{}, errors.New("id_token has no subject")
	}
	email := domainauth.NormalizeEmail(c.Email)
	if !domainauth.IsValidEmail(email) {
		return domainauth.ProviderIdentity{}, errors.New("provider returned no usable email")
	}
	if c.EmailVerified.set && !c.EmailVerified.value {
		return domainauth.ProviderIdentity{}, errors.New("provider email is not verified")
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}

	expiresAt := time.Now().Add(time.Hour)
	if !expiry.IsZero() {
		expiresAt = expiry
	}

	return domainauth.ProviderIdentity{
		Subject:     c.Sub,
		Email:       email,
		DisplayName: name,
		Provider:    provider,
		ExpiresAt:   expiresAt,
	}, nil
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
