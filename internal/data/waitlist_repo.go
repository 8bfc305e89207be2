package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/darrenapfel/theagnt-website-sub001/internal/data/pgxutil"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.WaitlistStore = (*WaitlistRepo)(nil)

// WaitlistRepo stores waitlist signups. An entry counts as converted once an
// account with the same email exists.
type WaitlistRepo struct {
	DB *sql.DB
}

// NewWaitlistRepo creates a new WaitlistRepo.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo {
	return &WaitlistRepo{DB: db}
}

const waitlistSelect = `
	SELECT w.id, w.email, w.created_at, (u.id IS NOT NULL) AS converted
	FROM waitlist w
	LEFT JOIN users u ON u.email = w.email`

func (r *WaitlistRepo) AddToWaitlist(ctx context.Context, email string) (model.WaitlistEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.WaitlistEntry{}, ErrEmailRequired
	}

	var entry model.WaitlistEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx,
			`INSERT INTO waitlist (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, email); err != nil {
			return err
		}
		rows, err := conn.Query(ctx, waitlistSelect+` WHERE w.email = $1`, email)
		if err != nil {
			return err
		}
		entry, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.WaitlistEntry])
		return err
	})
	if err != nil {
		return model.WaitlistEntry{}, fmt.Errorf("add to waitlist: %w", apperrors.MapDBError(err))
	}
	return entry, nil
}

func (r *WaitlistRepo) ListWaitlist(
	ctx context.Context,
	opts model.WaitlistListOptions,
) ([]model.WaitlistEntry, error) {
	query := waitlistSelect + ` ORDER BY w.created_at DESC, w.email ASC`
	var args []any
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var entries []model.WaitlistEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		entries, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.WaitlistEntry])
		return err
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("list waitlist: %w", apperrors.MapDBError(err))
	}
	if entries == nil {
		entries = []model.WaitlistEntry{}
	}
	return entries, nil
}

func (r *WaitlistRepo) CountWaitlist(ctx context.Context) (int, int, error) {
	var total, converted int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(u.id)
		FROM waitlist w
		LEFT JOIN users u ON u.email = w.email`).Scan(&total, &converted)
	if err != nil {
		return 0, 0, fmt.Errorf("count waitlist: %w", apperrors.MapDBError(err))
	}
	return total, converted, nil
}
