package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/darrenapfel/theagnt-website-sub001/internal/data/database"
	"github.com/darrenapfel/theagnt-website-sub001/internal/data/pgxutil"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var (
	_ ports.AccountStore  = (*UserRepo)(nil)
	_ ports.UserDirectory = (*UserRepo)(nil)
)

// UserRepo stores accounts in the users table.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

var userColumnList = []string{"id", "email", "display_name", "provider", "created_at", "last_sign_in_at"}

var userColumns = strings.Join(userColumnList, ", ")

// EnsureUser inserts the account when absent and returns the stored row either way.
func (r *UserRepo) EnsureUser(ctx context.Context, req model.EnsureUserRequest) (model.User, error) {
	req.Normalize()
	if req.Email == "" {
		return model.User{}, ErrEmailRequired
	}
	if req.DisplayName == "" {
		req.DisplayName = model.DisplayNameFromEmail(req.Email)
	}

	var u model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		// ON CONFLICT DO NOTHING returns no row for an existing account; fall back to a read.
		rows, err := conn.Query(ctx, `
			INSERT INTO users (email, display_name, provider)
			VALUES ($1, $2, $3)
			ON CONFLICT (email) DO NOTHING
			RETURNING `+userColumns,
			req.Email, req.DisplayName, req.Provider)
		if err != nil {
			return err
		}
		u, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		rows, err = conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, req.Email)
		if err != nil {
			return err
		}
		u, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return model.User{}, fmt.Errorf("ensure user: %w", apperrors.MapDBError(err))
	}
	return u, nil
}

func (r *UserRepo) RecordSignIn(ctx context.Context, email string, at time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrEmailRequired
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET last_sign_in_at = $2 WHERE email = $1`, email, at.UTC())
	if err != nil {
		return fmt.Errorf("record sign-in: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record sign-in rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) ListUsers(ctx context.Context, opts model.UserListOptions) ([]model.User, error) {
	query, args := buildUserListQuery(opts)

	var users []model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", apperrors.MapDBError(err))
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func buildUserListQuery(opts model.UserListOptions) (string, []any) {
	return database.BuildListQuery(database.NewListQueryOptions("users",
		database.WithColumns(userColumnList...),
		domainCondition(opts.Domain),
		database.WithOrderBy("created_at", true),
		database.WithOrderBy("email", false),
		database.WithLimit(opts.Limit),
		database.WithOffset(opts.Offset),
	))
}

func domainCondition(domain string) database.ListQueryOption {
	d := strings.ToLower(strings.TrimSpace(domain))
	return func(o *database.ListQueryOptions) {
		if d != "" {
			database.WithCondition(database.WhereCond("email", database.Like, "%@"+d))(o)
		}
	}
}

func (r *UserRepo) CountUsers(ctx context.Context, domain string) (int, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("users",
		database.WithCountOnly(),
		domainCondition(domain),
	))
	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", apperrors.MapDBError(err))
	}
	return n, nil
}
