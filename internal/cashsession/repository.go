package cashsession

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkyard/parkyard/internal/platform/db"
)

// Repository persists cash sessions in PostgreSQL. A partial unique index on
// state = 'OPEN' backs the single-open-session rule.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, operator_id, operator, state, initial_value, opening_date, closing_date, created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.OperatorID, &s.Operator, &s.State, &s.InitialValue,
		&s.OpeningDate, &s.ClosingDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func lockClause(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

// Current returns the OPEN session, or the latest one when none is open.
// It returns nil when no session was ever created.
func (r *Repository) Current(ctx context.Context, lock bool) (*Session, error) {
	s, err := scanSession(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions
		 ORDER BY (state = 'OPEN') DESC, id DESC LIMIT 1`+lockClause(lock)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Get loads a session by id.
func (r *Repository) Get(ctx context.Context, id int64, lock bool) (*Session, error) {
	s, err := scanSession(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions WHERE id = $1`+lockClause(lock), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// Insert stores a freshly opened session.
func (r *Repository) Insert(ctx context.Context, s Session) (*Session, error) {
	out, err := scanSession(db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO cash_sessions (operator_id, operator, state, initial_value, opening_date, closing_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+sessionColumns,
		s.OperatorID, s.Operator, s.State, s.InitialValue, s.OpeningDate, s.ClosingDate, s.CreatedAt))
	if isUniqueViolation(err) {
		return nil, ErrInvalidTransition.Wrapf("another session is already open")
	}
	return out, err
}

// Save writes every mutable field in one statement.
func (r *Repository) Save(ctx context.Context, s Session) (*Session, error) {
	out, err := scanSession(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE cash_sessions
		SET state = $2, initial_value = $3, opening_date = $4, closing_date = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+sessionColumns,
		s.ID, s.State, s.InitialValue, s.OpeningDate, s.ClosingDate, s.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrInvalidTransition.Wrapf("another session is already open")
	}
	return out, err
}

// OpenSince lists OPEN sessions opened before the cutoff.
func (r *Repository) OpenSince(ctx context.Context, before time.Time) ([]Session, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions WHERE state = 'OPEN' AND opening_date < $1 ORDER BY id`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
