package vehicles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkyard/parkyard/internal/platform/db"
)

// Repository persists stays in PostgreSQL. The billing method snapshot lives
// in a JSONB column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const stayColumns = `id, plate, vehicle_type, billing_method_id, billing_method, entry_time, exit_time, status,
	operator_id, operator, observation, deleted_at, delete_reason, permanent, transaction_id`

func scanStay(row pgx.Row) (Stay, error) {
	var s Stay
	err := row.Scan(&s.ID, &s.Plate, &s.VehicleType, &s.BillingMethodID, &s.Method, &s.EntryTime, &s.ExitTime, &s.Status,
		&s.OperatorID, &s.Operator, &s.Observation, &s.DeletedAt, &s.DeleteReason, &s.Permanent, &s.TransactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stay{}, ErrStayNotFound
	}
	return s, err
}

func collectStays(rows pgx.Rows, err error) ([]Stay, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stay
	for rows.Next() {
		s, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Insert stores a new INSIDE stay.
func (r *Repository) Insert(ctx context.Context, s Stay) (Stay, error) {
	out, err := scanStay(db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vehicle_stays (plate, vehicle_type, billing_method_id, billing_method, entry_time, status, operator_id, operator, observation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+stayColumns,
		s.Plate, s.VehicleType, s.BillingMethodID, s.Method, s.EntryTime, s.Status, s.OperatorID, s.Operator, s.Observation))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Stay{}, ErrAlreadyInside
	}
	return out, err
}

// Get loads a stay, locking it when lock is set.
func (r *Repository) Get(ctx context.Context, id int64, lock bool) (Stay, error) {
	query := `SELECT ` + stayColumns + ` FROM vehicle_stays WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanStay(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// PlateInside reports whether plate has an INSIDE stay.
func (r *Repository) PlateInside(ctx context.Context, plate string) (bool, error) {
	var inside bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vehicle_stays WHERE plate = $1 AND status = 'INSIDE')`, plate).Scan(&inside)
	return inside, err
}

// ListInside returns INSIDE stays, oldest first.
func (r *Repository) ListInside(ctx context.Context) ([]Stay, error) {
	return collectStays(db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+stayColumns+` FROM vehicle_stays WHERE status = 'INSIDE' ORDER BY entry_time, id`))
}

// CountInside counts INSIDE stays.
func (r *Repository) CountInside(ctx context.Context) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM vehicle_stays WHERE status = 'INSIDE'`).Scan(&n)
	return n, err
}

// MarkExited records the exit and its transaction.
func (r *Repository) MarkExited(ctx context.Context, id int64, exit time.Time, transactionID int64) (Stay, error) {
	return scanStay(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vehicle_stays SET status = 'EXITED', exit_time = $2, transaction_id = $3
		WHERE id = $1 AND status = 'INSIDE'
		RETURNING `+stayColumns, id, exit, transactionID))
}

// MarkDeleted soft-deletes an INSIDE stay.
func (r *Repository) MarkDeleted(ctx context.Context, id int64, permanent bool, reason string, at time.Time) (Stay, error) {
	return scanStay(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vehicle_stays SET status = 'DELETED', deleted_at = $2, delete_reason = $3, permanent = $4
		WHERE id = $1 AND status = 'INSIDE'
		RETURNING `+stayColumns, id, at, reason, permanent))
}

// DeleteAllInside permanently soft-deletes every INSIDE stay.
func (r *Repository) DeleteAllInside(ctx context.Context, reason string, at time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE vehicle_stays SET status = 'DELETED', deleted_at = $1, delete_reason = $2, permanent = TRUE
		WHERE status = 'INSIDE'`, at, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Restore returns a non-permanent DELETED stay to INSIDE.
func (r *Repository) Restore(ctx context.Context, id int64) (Stay, error) {
	out, err := scanStay(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vehicle_stays SET status = 'INSIDE', deleted_at = NULL, delete_reason = '', permanent = FALSE
		WHERE id = $1 AND status = 'DELETED' AND NOT permanent
		RETURNING `+stayColumns, id))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Stay{}, ErrAlreadyInside
	}
	return out, err
}
