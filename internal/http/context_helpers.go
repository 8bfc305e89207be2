package httpx

import (
	"context"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type identityKey struct{}

// SetIdentityInContext returns a child context that carries the resolved identity.
// If id is nil, the original ctx is returned unchanged.
func SetIdentityInContext(ctx context.Context, id *domainauth.ResolvedIdentity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity the edge guard resolved, if any.
// Enforcement points re-resolve instead of trusting this value; handlers use it for display.
func IdentityFromContext(ctx context.Context) (*domainauth.ResolvedIdentity, bool) {
	if id, ok := ctx.Value(identityKey{}).(*domainauth.ResolvedIdentity); ok && id != nil {
		return id, true
	}
	return nil, false
}
