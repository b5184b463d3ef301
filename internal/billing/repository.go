package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkyard/parkyard/internal/platform/db"
)

// Repository persists billing methods in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const methodColumns = `id, title, category, tolerance_minutes, block_minutes, car_price, moto_price, large_price, is_active, created_at, updated_at`

func scanMethod(row pgx.Row) (Method, error) {
	var m Method
	err := row.Scan(&m.ID, &m.Title, &m.Category, &m.ToleranceMinutes, &m.BlockMinutes,
		&m.CarPrice, &m.MotoPrice, &m.LargePrice, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Method{}, ErrMethodNotFound
	}
	return m, err
}

// Insert stores a new active method.
func (r *Repository) Insert(ctx context.Context, in MethodInput, now time.Time) (Method, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO billing_methods (title, category, tolerance_minutes, block_minutes, car_price, moto_price, large_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		RETURNING `+methodColumns,
		in.Title, in.Category, in.ToleranceMinutes, in.BlockMinutes, in.CarPrice, in.MotoPrice, in.LargePrice, now)
	return scanMethod(row)
}

// Get loads a method regardless of its active flag.
func (r *Repository) Get(ctx context.Context, id int64) (Method, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+methodColumns+` FROM billing_methods WHERE id = $1`, id)
	return scanMethod(row)
}

// List returns methods ordered by title.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Method, error) {
	query := `SELECT ` + methodColumns + ` FROM billing_methods`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY title, id`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var methods []Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

// ActiveTitleTaken reports whether another active method uses title.
func (r *Repository) ActiveTitleTaken(ctx context.Context, title string, exceptID int64) (bool, error) {
	var taken bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_methods WHERE is_active AND lower(title) = lower($1) AND id <> $2)`,
		title, exceptID).Scan(&taken)
	return taken, err
}

// Update replaces the editable fields of a method.
func (r *Repository) Update(ctx context.Context, id int64, in MethodInput, now time.Time) (Method, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE billing_methods
		SET title = $2, category = $3, tolerance_minutes = $4, block_minutes = $5,
		    car_price = $6, moto_price = $7, large_price = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+methodColumns,
		id, in.Title, in.Category, in.ToleranceMinutes, in.BlockMinutes, in.CarPrice, in.MotoPrice, in.LargePrice, now)
	return scanMethod(row)
}

// SetActive flips the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool, now time.Time) (Method, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE billing_methods SET is_active = $2, updated_at = $3 WHERE id = $1 RETURNING `+methodColumns,
		id, active, now)
	return scanMethod(row)
}
