package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkyard/parkyard/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	TouchLogin(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches an operator account, case-insensitively.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	var (
		acc       Account
		role      string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, is_active, created_at, updated_at
		FROM operators WHERE lower(username) = lower($1)`, strings.TrimSpace(username)).
		Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &role, &acc.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	parsed, ok := shared.ParseRole(role)
	if !ok {
		parsed = shared.RoleNormal
	}
	acc.Role = parsed
	acc.CreatedAt = createdAt.Time
	acc.UpdatedAt = updatedAt.Time
	return &acc, nil
}

// TouchLogin records the last successful login.
func (r *PGRepository) TouchLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE operators SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
