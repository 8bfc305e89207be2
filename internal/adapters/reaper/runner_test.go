package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/memory"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

func TestNewRunner_RequiresBackend(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_PurgeOnceWithStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTokenStore()
	issued := time.Now().Add(-72 * time.Hour)
	require.NoError(t, store.Put(ctx, domainauth.MagicLinkToken{
		Token:     "old",
		Email:     "user@example.com",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(domainauth.TokenTTL),
	}))

	r, err := NewRunner(RunnerOptions{Store: store})
	require.NoError(t, err)

	n, err := r.PurgeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, store.Len())
}
