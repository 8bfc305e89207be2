// Package sessionsig signs email-session cookies with an HS256 JWT.
package sessionsig

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.SessionSigner = (*Signer)(nil)

const issuer = "theagnt"

// Signer mints and verifies email-session signatures.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// New returns a signer for secret. Secrets shorter than 32 bytes are rejected.
func New(secret string) (*Signer, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	return &Signer{secret: []byte(secret), ttl: domainauth.SessionMaxAge}, nil
}

func (s *Signer) Sign(email string, now time.Time) (string, error) {
	email = domainauth.NormalizeEmail(email)
	if !domainauth.IsValidEmail(email) {
		return "", domainauth.ErrInvalidEmail
	}
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Signer) Verify(sig, email string, now time.Time) bool {
	if sig == "" {
		return false
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(sig, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return false
	}
	return claims.Subject == domainauth.NormalizeEmail(email)
}
