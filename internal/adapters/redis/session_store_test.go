package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/testutil"
)

// setupTestRedis returns a flushed client, skipping when Redis is unreachable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func oauthSession(id string, expiresAt time.Time) domainauth.OAuthSession {
	return domainauth.OAuthSession{
		ID:          id,
		UserID:      "google:1234",
		Email:       "person@theagnt.ai",
		DisplayName: "Person",
		Provider:    "google",
		ExpiresAt:   expiresAt,
	}
}

func TestSessionStore(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()
	store := NewSessionStore(client)

	t.Run("round trip", func(t *testing.T) {
		want := oauthSession("sess-roundtrip", time.Now().Add(30*time.Minute))
		require.NoError(t, store.Save(ctx, want))

		got, err := store.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.Email, got.Email)
		assert.Equal(t, want.UserID, got.UserID)
		assert.Equal(t, want.Provider, got.Provider)
		assert.WithinDuration(t, want.ExpiresAt, got.ExpiresAt, time.Millisecond)

		ttl := client.PTTL(ctx, "oauth_session:"+want.ID).Val()
		assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, oauthSession("sess-delete", time.Now().Add(time.Hour))))
		require.NoError(t, store.Delete(ctx, "sess-delete"))
		_, err := store.Get(ctx, "sess-delete")
		require.ErrorIs(t, err, domainauth.ErrSessionNotFound)

		require.NoError(t, store.Delete(ctx, "never-existed"))
		require.NoError(t, store.Delete(ctx, ""))
	})

	t.Run("key expiry", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, oauthSession("sess-ttl", time.Now().Add(100*time.Millisecond))))
		time.Sleep(200 * time.Millisecond)
		_, err := store.Get(ctx, "sess-ttl")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired payload behind live key", func(t *testing.T) {
		clock := NewSessionStore(client)
		base := time.Now()
		clock.now = func() time.Time { return base }
		require.NoError(t, clock.Save(ctx, oauthSession("sess-clock", base.Add(time.Hour))))

		clock.now = func() time.Time { return base.Add(2 * time.Hour) }
		_, err := clock.Get(ctx, "sess-clock")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, client.Exists(ctx, "oauth_session:sess-clock").Val())
	})

	t.Run("rejects blank and expired input", func(t *testing.T) {
		err := store.Save(ctx, oauthSession("", time.Now().Add(time.Hour)))
		require.ErrorContains(t, err, "session ID cannot be empty")

		err = store.Save(ctx, oauthSession("sess-old", time.Now().Add(-time.Hour)))
		require.ErrorContains(t, err, "session is expired")

		_, err = store.Get(ctx, "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("custom prefix", func(t *testing.T) {
		prefixed := NewSessionStoreWithPrefix(client, "tenant-a:")
		require.NoError(t, prefixed.Save(ctx, oauthSession("sess-prefixed", time.Now().Add(time.Hour))))
		assert.Equal(t, int64(1), client.Exists(ctx, "tenant-a:sess-prefixed").Val())

		_, err := store.Get(ctx, "sess-prefixed")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
