package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
)

func TestIdentityStore_EnsureUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore()

	first, err := s.EnsureUser(ctx, model.EnsureUserRequest{Email: " Jane@Example.com ", Provider: "magic_link"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", first.Email)
	assert.Equal(t, "jane", first.DisplayName)

	second, err := s.EnsureUser(ctx, model.EnsureUserRequest{Email: "jane@example.com", Provider: "google"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "magic_link", second.Provider)

	n, err := s.CountUsers(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIdentityStore_RecordSignIn(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore()
	_, err := s.EnsureUser(ctx, model.EnsureUserRequest{Email: "jane@example.com"})
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.RecordSignIn(ctx, "JANE@example.com", at))

	users, err := s.ListUsers(ctx, model.UserListOptions{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NotNil(t, users[0].LastSignInAt)
	assert.Equal(t, at, *users[0].LastSignInAt)

	assert.Error(t, s.RecordSignIn(ctx, "nobody@example.com", at))
}

func TestIdentityStore_WaitlistConversion(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore()

	for _, e := range []string{"a@example.com", "b@example.com", "c@theagnt.ai", "a@example.com"} {
		_, err := s.AddToWaitlist(ctx, e)
		require.NoError(t, err)
	}
	_, err := s.EnsureUser(ctx, model.EnsureUserRequest{Email: "b@example.com"})
	require.NoError(t, err)

	total, converted, err := s.CountWaitlist(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, converted)

	entries, err := s.ListWaitlist(ctx, model.WaitlistListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, e.Email == "b@example.com", e.Converted, e.Email)
	}
}

func TestIdentityStore_ListUsersDomainAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewIdentityStore()
	for _, e := range []string{"a@theagnt.ai", "b@theagnt.ai", "c@gmail.com"} {
		_, err := s.EnsureUser(ctx, model.EnsureUserRequest{Email: e})
		require.NoError(t, err)
	}

	internal, err := s.ListUsers(ctx, model.UserListOptions{Domain: "theagnt.ai"})
	require.NoError(t, err)
	assert.Len(t, internal, 2)

	page, err := s.ListUsers(ctx, model.UserListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := s.ListUsers(ctx, model.UserListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
