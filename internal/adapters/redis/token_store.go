package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.TokenStore = (*TokenStore)(nil)

// tokenRetention keeps expired tokens around long enough to report "expired"
// instead of "not found" for late clicks.
const tokenRetention = 24 * time.Hour

// consumeScript checks and marks a token consumed in one server-side step.
// KEYS[1] token hash; ARGV[1] normalized email; ARGV[2] now in unix millis.
var consumeScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'email', 'expires_at_ms', 'consumed', 'redirect_to', 'issued_at_ms')
if not f[1] then
  return {'not_found'}
end
if tonumber(ARGV[2]) > tonumber(f[2]) then
  return {'expired'}
end
if f[3] == '1' then
  return {'consumed'}
end
if f[1] ~= ARGV[1] then
  return {'mismatch'}
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return {'ok', f[1], f[4] or '', f[5] or '0', f[2]}
`)

// TokenStore keeps magic-link tokens as Redis hashes.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewTokenStore creates a Redis token store with the default "magic_link:" prefix.
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return &TokenStore{client: client, prefix: "magic_link:"}
}

func (s *TokenStore) Put(ctx context.Context, tok domainauth.MagicLinkToken) error {
	if tok.Token == "" {
		return errors.New("token cannot be empty")
	}
	key := s.prefix + tok.Token
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"email", tok.Email,
			"redirect_to", tok.RedirectTo,
			"issued_at_ms", strconv.FormatInt(tok.IssuedAt.UnixMilli(), 10),
			"expires_at_ms", strconv.FormatInt(tok.ExpiresAt.UnixMilli(), 10),
			"consumed", "0",
		)
		p.PExpireAt(ctx, key, tok.ExpiresAt.Add(tokenRetention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put token: %w", err)
	}
	return nil
}

func (s *TokenStore) GetAndConsume(
	ctx context.Context,
	token, email string,
	now time.Time,
) (domainauth.MagicLinkToken, error) {
	if token == "" {
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenNotFound
	}

	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.prefix + token},
		domainauth.NormalizeEmail(email),
		strconv.FormatInt(now.UnixMilli(), 10),
	).StringSlice()
	if err != nil {
		return domainauth.MagicLinkToken{}, fmt.Errorf("redis consume token: %w", err)
	}
	if len(res) == 0 {
		return domainauth.MagicLinkToken{}, errors.New("redis consume token: empty reply")
	}

	switch res[0] {
	case "ok":
	case "not_found":
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenNotFound
	case "expired":
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenExpired
	case "consumed":
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenConsumed
	case "mismatch":
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenMismatch
	default:
		return domainauth.MagicLinkToken{}, fmt.Errorf("redis consume token: unexpected status %q", res[0])
	}
	if len(res) < 5 {
		return domainauth.MagicLinkToken{}, fmt.Errorf("redis consume token: short reply (%d fields)", len(res))
	}

	issuedMs, _ := strconv.ParseInt(res[3], 10, 64)
	expiresMs, _ := strconv.ParseInt(res[4], 10, 64)
	return domainauth.MagicLinkToken{
		Token:      token,
		Email:      res[1],
		RedirectTo: res[2],
		IssuedAt:   time.UnixMilli(issuedMs),
		ExpiresAt:  time.UnixMilli(expiresMs),
		Consumed:   true,
	}, nil
}
