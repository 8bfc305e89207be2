// Package service orchestrates sign-in, session resolution and admin reporting.
package service

import (
	"errors"
	"fmt"
)

// TransportError reports that a magic-link email could not be handed to the transport.
// Issuance makes a single attempt; callers decide whether to retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("email transport: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError reports a failure of the identity store or an identity provider.
// It is fatal for the request.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %s: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsUpstreamError reports whether err is or wraps an *UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// ErrUnknownProvider is returned when a login names a provider that is not configured.
var ErrUnknownProvider = errors.New("unknown auth provider")
