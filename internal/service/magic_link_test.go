package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/memory"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
	"github.com/darrenapfel/theagnt-website-sub001/internal/mocks"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

const testBaseURL = "https://theagnt.ai"

// outbox records sent messages.
type outbox struct {
	mu   sync.Mutex
	msgs []ports.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg ports.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return o.err
}

func (o *outbox) last(t *testing.T) ports.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type magicLinkFixture struct {
	svc      *MagicLinkService
	tokens   *memory.TokenStore
	accounts *memory.IdentityStore
	outbox   *outbox
	clock    *fakeClock
}

func newMagicLinkFixture() *magicLinkFixture {
	f := &magicLinkFixture{
		tokens:   memory.NewTokenStore(),
		accounts: memory.NewIdentityStore(),
		outbox:   &outbox{},
		clock:    &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = NewMagicLinkService(MagicLinkServiceOptions{
		Tokens:   f.tokens,
		Sender:   f.outbox,
		Accounts: f.accounts,
		Config:   MagicLinkConfig{BaseURL: testBaseURL + "/", Now: f.clock.Now},
	})
	return f
}

func TestNewMagicLinkService_RequiresDeps(t *testing.T) {
	assert.Panics(t, func() { NewMagicLinkService(MagicLinkServiceOptions{Sender: &outbox{}}) })
	assert.Panics(t, func() { NewMagicLinkService(MagicLinkServiceOptions{Tokens: memory.NewTokenStore()}) })
}

func TestMagicLinkService_Issue(t *testing.T) {
	f := newMagicLinkFixture()
	ctx := context.Background()

	res, err := f.svc.Issue(ctx, "  User@Example.com ", "/internal/reports")
	require.NoError(t, err)

	assert.Len(t, res.Token, 64, "256-bit hex token")
	assert.Equal(t, f.clock.Now().Add(time.Hour), res.ExpiresAt)
	assert.Equal(t, 1, f.tokens.Len())

	msg := f.outbox.last(t)
	assert.Equal(t, "user@example.com", msg.To)
	assert.Contains(t, msg.Text, res.URL)

	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, "theagnt.ai", u.Host)
	assert.Equal(t, VerifyEmailPath, u.Path)
	assert.Equal(t, res.Token, u.Query().Get("token"))
	assert.Equal(t, "user@example.com", u.Query().Get("email"))
	assert.Equal(t, "/internal/reports", u.Query().Get("redirect"))
}

func TestMagicLinkService_Issue_UnsafeRedirectDropped(t *testing.T) {
	f := newMagicLinkFixture()

	res, err := f.svc.Issue(context.Background(), "user@example.com", "https://evil.example/")
	require.NoError(t, err)
	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, domainauth.DashboardPath, u.Query().Get("redirect"))
}

func TestMagicLinkService_Issue_InvalidEmail(t *testing.T) {
	f := newMagicLinkFixture()
	_, err := f.svc.Issue(context.Background(), "not-an-email", "")
	assert.ErrorIs(t, err, domainauth.ErrInvalidEmail)
	assert.Equal(t, 0, f.tokens.Len())
	assert.Empty(t, f.outbox.msgs)
}

func TestMagicLinkService_Issue_TransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockEmailSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down")).Times(1)

	svc := NewMagicLinkService(MagicLinkServiceOptions{
		Tokens: memory.NewTokenStore(),
		Sender: sender,
		Config: MagicLinkConfig{BaseURL: testBaseURL},
	})

	_, err := svc.Issue(context.Background(), "user@example.com", "")
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, IsTransportError(err))
	assert.EqualError(t, te.Err, "smtp down")
}

func TestMagicLinkService_Issue_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenStore(ctrl)
	sender := mocks.NewMockEmailSender(ctrl)
	tokens.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	svc := NewMagicLinkService(MagicLinkServiceOptions{Tokens: tokens, Sender: sender})
	_, err := svc.Issue(context.Background(), "user@example.com", "")
	assert.True(t, IsUpstreamError(err))
}

func TestMagicLinkService_RoundTrip(t *testing.T) {
	f := newMagicLinkFixture()
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "user@example.com", "/dashboard/settings")
	require.NoError(t, err)

	res, err := f.svc.Verify(ctx, issued.Token, "USER@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", res.Identity.Email)
	assert.Equal(t, domainauth.SourceMagicLink, res.Identity.SourceKind())
	assert.Equal(t, "/dashboard/settings", res.RedirectTo)

	users, err := f.accounts.ListUsers(ctx, model.UserListOptions{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "email", users[0].Provider)
	require.NotNil(t, users[0].LastSignInAt)

	_, err = f.svc.Verify(ctx, issued.Token, "user@example.com")
	assert.ErrorIs(t, err, domainauth.ErrTokenConsumed)
}

func TestMagicLinkService_Verify_Failures(t *testing.T) {
	f := newMagicLinkFixture()
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "user@example.com", "")
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, "", "user@example.com")
	assert.ErrorIs(t, err, domainauth.ErrTokenNotFound)

	_, err = f.svc.Verify(ctx, strings.Repeat("0", 64), "user@example.com")
	assert.ErrorIs(t, err, domainauth.ErrTokenNotFound)

	_, err = f.svc.Verify(ctx, issued.Token, "someone.else@example.com")
	assert.ErrorIs(t, err, domainauth.ErrTokenMismatch)

	// A mismatch does not burn the token.
	_, err = f.svc.Verify(ctx, issued.Token, "user@example.com")
	require.NoError(t, err)
}

func TestMagicLinkService_Verify_Expired(t *testing.T) {
	f := newMagicLinkFixture()
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "user@example.com", "")
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	_, err = f.svc.Verify(ctx, issued.Token, "user@example.com")
	assert.ErrorIs(t, err, domainauth.ErrTokenExpired)
	assert.ErrorIs(t, err, domainauth.ErrTokenInvalid)
}

func TestMagicLinkService_Verify_ConcurrentOnce(t *testing.T) {
	f := newMagicLinkFixture()
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "user@example.com", "")
	require.NoError(t, err)

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Verify(ctx, issued.Token, "user@example.com")
		}(i)
	}
	wg.Wait()

	var ok, consumed int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domainauth.ErrTokenConsumed):
			consumed++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, consumed)
}

func TestMagicLinkService_Verify_ExistingAccountConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	tokens := memory.NewTokenStore()
	now := time.Now()
	require.NoError(t, tokens.Put(context.Background(), domainauth.MagicLinkToken{
		Token: "tok", Email: "user@example.com", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	accounts.EXPECT().EnsureUser(gomock.Any(), gomock.Any()).
		Return(model.User{}, apperrors.Conflict("user already exists"))
	accounts.EXPECT().RecordSignIn(gomock.Any(), "user@example.com", gomock.Any()).Return(nil)

	svc := NewMagicLinkService(MagicLinkServiceOptions{Tokens: tokens, Sender: &outbox{}, Accounts: accounts})
	res, err := svc.Verify(context.Background(), "tok", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user", res.Identity.DisplayName)
}

func TestMagicLinkService_Verify_AccountStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	tokens := memory.NewTokenStore()
	now := time.Now()
	require.NoError(t, tokens.Put(context.Background(), domainauth.MagicLinkToken{
		Token: "tok", Email: "user@example.com", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	accounts.EXPECT().EnsureUser(gomock.Any(), gomock.Any()).Return(model.User{}, errors.New("connection refused"))

	svc := NewMagicLinkService(MagicLinkServiceOptions{Tokens: tokens, Sender: &outbox{}, Accounts: accounts})
	_, err := svc.Verify(context.Background(), "tok", "user@example.com")
	assert.True(t, IsUpstreamError(err))
}

func TestMagicLinkService_Verify_StoreFailureIsUpstream(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenStore(ctrl)
	tokens.EXPECT().GetAndConsume(gomock.Any(), "tok", "user@example.com", gomock.Any()).
		Return(domainauth.MagicLinkToken{}, errors.New("timeout"))

	svc := NewMagicLinkService(MagicLinkServiceOptions{Tokens: tokens, Sender: &outbox{}})
	_, err := svc.Verify(context.Background(), "tok", "user@example.com")
	assert.True(t, IsUpstreamError(err))
	assert.False(t, errors.Is(err, domainauth.ErrTokenInvalid))
}
