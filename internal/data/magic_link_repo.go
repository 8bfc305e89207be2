package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/darrenapfel/theagnt-website-sub001/internal/data/pgxutil"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.TokenStore = (*MagicLinkRepo)(nil)

// MagicLinkRepo stores magic-link tokens in Postgres.
type MagicLinkRepo struct {
	DB *sql.DB
}

// NewMagicLinkRepo creates a new MagicLinkRepo.
func NewMagicLinkRepo(db *sql.DB) *MagicLinkRepo {
	return &MagicLinkRepo{DB: db}
}

type tokenRow struct {
	Token      string    `db:"token"`
	Email      string    `db:"email"`
	RedirectTo string    `db:"redirect_to"`
	IssuedAt   time.Time `db:"issued_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	Consumed   bool      `db:"consumed"`
}

func (t tokenRow) toDomain() domainauth.MagicLinkToken {
	return domainauth.MagicLinkToken{
		Token:      t.Token,
		Email:      t.Email,
		RedirectTo: t.RedirectTo,
		IssuedAt:   t.IssuedAt,
		ExpiresAt:  t.ExpiresAt,
		Consumed:   t.Consumed,
	}
}

const tokenColumns = `token, email, redirect_to, issued_at, expires_at, consumed`

func (r *MagicLinkRepo) Put(ctx context.Context, tok domainauth.MagicLinkToken) error {
	if tok.Token == "" {
		return ErrTokenRequired
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO magic_link_tokens (token, email, redirect_to, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		tok.Token, domainauth.NormalizeEmail(tok.Email), tok.RedirectTo, tok.IssuedAt.UTC(), tok.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("put magic link token: %w", apperrors.MapDBError(err))
	}
	return nil
}

// GetAndConsume flips consumed with a single conditional UPDATE, so concurrent
// callers race on the row lock and only one sees RETURNING output. When nothing
// was updated the row is read back to report why.
func (r *MagicLinkRepo) GetAndConsume(
	ctx context.Context,
	token, email string,
	now time.Time,
) (domainauth.MagicLinkToken, error) {
	if token == "" {
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenNotFound
	}
	email = domainauth.NormalizeEmail(email)
	now = now.UTC()

	var (
		row     tokenRow
		updated bool
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE magic_link_tokens
			SET consumed = TRUE, consumed_at = $3
			WHERE token = $1 AND email = $2 AND consumed = FALSE AND expires_at >= $3
			RETURNING `+tokenColumns,
			token, email, now)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[tokenRow])
		if err == nil {
			updated = true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		rows, err = conn.Query(ctx, `SELECT `+tokenColumns+` FROM magic_link_tokens WHERE token = $1`, token)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[tokenRow])
		return err
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenNotFound
	case err != nil:
		return domainauth.MagicLinkToken{}, fmt.Errorf("consume magic link token: %w", apperrors.MapDBError(err))
	case updated:
		return row.toDomain(), nil
	}

	tok := row.toDomain()
	switch {
	case tok.Expired(now):
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenExpired
	case tok.Consumed:
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenConsumed
	default:
		return domainauth.MagicLinkToken{}, domainauth.ErrTokenMismatch
	}
}

// PurgeExpired deletes tokens that expired before cutoff and returns how many were removed.
func (r *MagicLinkRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM magic_link_tokens WHERE expires_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge magic link tokens: %w", apperrors.MapDBError(err))
	}
	return res.RowsAffected()
}
