package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

// fakeIssuer serves discovery, JWKS and a token endpoint that returns an ID token
// built from idClaims.
type fakeIssuer struct {
	server   *httptest.Server
	key      *rsa.PrivateKey
	idClaims jwt.MapClaims
	lastForm url.Values
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer:                f.server.URL,
			AuthorizationEndpoint: f.server.URL + "/auth",
			TokenEndpoint:         f.server.URL + "/token",
			JwksURI:               f.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.lastForm = r.PostForm
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, f.idClaims)
		tok.Header["kid"] = "test-key"
		signed, signErr := tok.SignedString(f.key)
		if signErr != nil {
			http.Error(w, signErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     signed,
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIssuer) claims(nonce string, extra jwt.MapClaims) {
	c := jwt.MapClaims{
		"iss":   f.server.URL,
		"aud":   "test-client",
		"sub":   "sub-123",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
		"nonce": nonce,
	}
	for k, v := range extra {
		c[k] = v
	}
	f.idClaims = c
}

func newTestProvider(t *testing.T, f *fakeIssuer, cfg ProviderConfig) *Provider {
	t.Helper()
	cfg.Name = "google"
	cfg.ClientID = "test-client"
	if cfg.ClientSecret == "" && cfg.ClientSecretFunc == nil {
		cfg.ClientSecret = "test-secret"
	}
	cfg.RedirectURL = "http://localhost:8080/api/auth/callback"
	cfg.Issuer = f.server.URL
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	return p
}

func TestNewProvider_Discovery(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, ProviderConfig{})

	assert.Equal(t, "google", p.Name())
	assert.Equal(t, f.server.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Equal(t, f.server.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, []string{"openid", "email", "profile"}, p.config.Scopes)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing name",
			config: ProviderConfig{ClientID: "c", ClientSecret: "s", RedirectURL: "http://x/cb", Issuer: "http://x"},
			errMsg: "provider name is required",
		},
		{
			name:   "missing client ID",
			config: ProviderConfig{Name: "google", ClientSecret: "s", RedirectURL: "http://x/cb", Issuer: "http://x"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			config: ProviderConfig{Name: "google", ClientID: "c", RedirectURL: "http://x/cb", Issuer: "http://x"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{Name: "google", ClientID: "c", ClientSecret: "s", Issuer: "http://x"},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing issuer",
			config: ProviderConfig{Name: "google", ClientID: "c", ClientSecret: "s", RedirectURL: "http://x/cb"},
			errMsg: "issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, ProviderConfig{AuthParams: map[string]string{"prompt": "select_account"}})

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "/dashboard"})
	require.NoError(t, err)
	assert.Len(t, state, 32)
	assert.Len(t, nonce, 32)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestProvider_Begin_EmptyRedirectURL(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, ProviderConfig{})

	_, _, _, err := p.Begin(context.Background(), ports.BeginInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestProvider_Exchange_Success(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, ProviderConfig{})
	f.claims("nonce-1", jwt.MapClaims{
		"email":          "Alice@TheAgnt.ai",
		"email_verified": true,
		"name":           "Alice Example",
	})

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "code", State: "state", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, "sub-123", id.Subject)
	assert.Equal(t, "alice@theagnt.ai", id.Email)
	assert.Equal(t, "Alice Example", id.DisplayName)
	assert.Equal(t, "google", id.Provider)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, time.Minute)
}

func TestProvider_Exchange_MintedSecret(t *testing.T) {
	f := newFakeIssuer(t)
	calls := 0
	p := newTestProvider(t, f, ProviderConfig{ClientSecretFunc: func() (string, error) {
		calls++
		return "minted-secret", nil
	}})
	f.claims("n", jwt.MapClaims{"email": "bob@example.com", "email_verified": "true"})

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "code", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	// oauth2 may send credentials in a basic auth header or the form; either way the
	// static secret on the shared config must stay empty.
	assert.Empty(t, p.config.ClientSecret)
}

func TestProvider_Exchange_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		nonce  string
		claims jwt.MapClaims
		errMsg string
	}{
		{
			name:   "nonce mismatch",
			nonce:  "other",
			claims: jwt.MapClaims{"email": "a@example.com"},
			errMsg: "invalid nonce",
		},
		{
			name:   "unverified email",
			nonce:  "n",
			claims: jwt.MapClaims{"email": "a@example.com", "email_verified": false},
			errMsg: "not verified",
		},
		{
			name:   "unverified email as string",
			nonce:  "n",
			claims: jwt.MapClaims{"email": "a@example.com", "email_verified": "false"},
			errMsg: "not verified",
		},
		{
			name:   "missing email",
			nonce:  "n",
			claims: jwt.MapClaims{},
			errMsg: "no usable email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeIssuer(t)
			p := newTestProvider(t, f, ProviderConfig{})
			f.claims("n", tt.claims)

			_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: tt.nonce})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, ProviderConfig{})

	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{"missing code", ports.ExchangeInput{State: "state", Nonce: "nonce"}, "authorization code is required"},
		{"missing state", ports.ExchangeInput{Code: "code", Nonce: "nonce"}, "state is required"},
		{"missing nonce", ports.ExchangeInput{Code: "code", State: "state"}, "nonce is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := generateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, a, 16)

	b, err := generateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	c, err := generateRandomString(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	assert.ErrorContains(t, err, "missing id_token")

	_, err = getIDTokenFromToken(nil)
	assert.ErrorContains(t, err, "nil token")
}

func TestFillClaims_KeepsExisting(t *testing.T) {
	dst := idClaims{Email: "keep@example.com", Name: "Keep"}
	fillClaims(&dst, idClaims{Email: "other@example.com", Name: "Other", GivenName: "G", FamilyName: "F"})
	assert.Equal(t, "keep@example.com", dst.Email)
	assert.Equal(t, "Keep", dst.Name)
	assert.Equal(t, "G", dst.GivenName)
	assert.Equal(t, "F", dst.FamilyName)
}

func TestIdentityFromClaims_NameFallback(t *testing.T) {
	id, err := identityFromClaims("apple", idClaims{
		Sub:        "s",
		Email:      "x@example.com",
		GivenName:  "Given",
		FamilyName: "Family",
	}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "Given Family", id.DisplayName)
	assert.Equal(t, "apple", id.Provider)
}
