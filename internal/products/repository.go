package products

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkyard/parkyard/internal/platform/db"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, unit_price, quantity, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Quantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// Insert stores an active product.
func (r *Repository) Insert(ctx context.Context, in ProductInput, now time.Time) (Product, error) {
	return scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO products (name, unit_price, quantity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		RETURNING `+productColumns, in.Name, in.UnitPrice, in.Quantity, now))
}

// Get loads a product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// List returns products ordered by name.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name, id`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecrementStock removes quantity units. It fails with ErrInsufficientStock
// when the row holds fewer units.
func (r *Repository) DecrementStock(ctx context.Context, id int64, quantity int, now time.Time) (Product, error) {
	p, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = $3
		WHERE id = $1 AND quantity >= $2
		RETURNING `+productColumns, id, quantity, now))
	if errors.Is(err, ErrProductNotFound) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return Product{}, getErr
		}
		return Product{}, ErrInsufficientStock
	}
	return p, err
}
