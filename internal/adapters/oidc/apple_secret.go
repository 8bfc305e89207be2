package oidc

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// appleSecretTTL stays well under Apple's six-month ceiling.
const appleSecretTTL = 24 * time.Hour

// AppleSecretSigner mints the ES256 client-secret JWT Apple expects on token
// exchange. Minted secrets are cached until shortly before they expire.
type AppleSecretSigner struct {
	teamID   string
	clientID string
	keyID    string
	key      *ecdsa.PrivateKey
	now      func() time.Time

	mu        sync.Mutex
	cached    string
	cachedExp time.Time
}

// AppleSecretConfig holds the developer-account values for Sign in with Apple.
type AppleSecretConfig struct {
	TeamID        string
	ClientID      string
	KeyID         string
	PrivateKeyPEM string // PKCS#8 .p8 contents; literal "\n" sequences are accepted
	Now           func() time.Time
}

// NewAppleSecretSigner parses the private key and validates identifiers.
func NewAppleSecretSigner(cfg AppleSecretConfig) (*AppleSecretSigner, error) {
	teamID := strings.TrimSpace(cfg.TeamID)
	clientID := strings.TrimSpace(cfg.ClientID)
	keyID := strings.TrimSpace(cfg.KeyID)
	if teamID == "" || clientID == "" || keyID == "" {
		return nil, errors.New("apple team ID, client ID and key ID are required")
	}
	pemText := strings.ReplaceAll(strings.TrimSpace(cfg.PrivateKeyPEM), `\n`, "\n")
	if pemText == "" {
		return nil, errors.New("apple private key is required")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("parse apple private key: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AppleSecretSigner{
		teamID:   teamID,
		clientID: clientID,
		keyID:    keyID,
		key:      key,
		now:      now,
	}, nil
}

// Sign returns a valid client secret, reusing the cached one while it has at
// least a minute left.
func (s *AppleSecretSigner) Sign() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != "" && now.Add(time.Minute).Before(s.cachedExp) {
		return s.cached, nil
	}

	exp := now.Add(appleSecretTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    s.teamID,
		Subject:   s.clientID,
		Audience:  jwt.ClaimStrings{AppleIssuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign apple client secret: %w", err)
	}
	s.cached, s.cachedExp = signed, exp
	return signed, nil
}
