package auth

import "errors"

// TokenFailure names why a magic-link token could not be verified.
type TokenFailure string

const (
	TokenNotFound TokenFailure = "not_found"
	TokenExpired  TokenFailure = "expired"
	TokenConsumed TokenFailure = "consumed"
	TokenMismatch TokenFailure = "mismatch"
)

// TokenError is returned by token verification. An empty Failure matches any TokenError with errors.Is.
type TokenError struct {
	Failure TokenFailure
}

func (e *TokenError) Error() string {
	if e.Failure == "" {
		return "magic link token invalid"
	}
	return "magic link token invalid: " + string(e.Failure)
}

// Is matches TokenErrors with the same failure, or any failure when target has none.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	if !ok {
		return false
	}
	return t.Failure == "" || t.Failure == e.Failure
}

var (
	ErrTokenInvalid  error = &TokenError{}
	ErrTokenNotFound error = &TokenError{Failure: TokenNotFound}
	ErrTokenExpired  error = &TokenError{Failure: TokenExpired}
	ErrTokenConsumed error = &TokenError{Failure: TokenConsumed}
	ErrTokenMismatch error = &TokenError{Failure: TokenMismatch}

	// ErrForbidden is returned when an operation is refused for the current build or role.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidEmail is returned when input does not have an email shape.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidRole is returned for a role name outside admin/internal/external.
	ErrInvalidRole = errors.New("invalid role")

	// ErrSessionNotFound is returned by OAuth session stores for missing or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// TokenFailureOf extracts the failure reason from err, or empty when err is not a TokenError.
func TokenFailureOf(err error) TokenFailure {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Failure
	}
	return ""
}
