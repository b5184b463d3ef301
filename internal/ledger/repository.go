package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkyard/parkyard/internal/platform/db"
)

// Repository persists transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txColumns = `id, type, session_id, operator_id, operator, payment_method, original_amount, discount_amount,
	final_amount, amount_received, change_given, transaction_date, description, reference, quantity, deleted_at, permanent`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Type, &t.SessionID, &t.OperatorID, &t.Operator, &t.PaymentMethod,
		&t.OriginalAmount, &t.DiscountAmount, &t.FinalAmount, &t.AmountReceived, &t.ChangeGiven,
		&t.TransactionDate, &t.Description, &t.Reference, &t.Quantity, &t.DeletedAt, &t.Permanent)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// Insert stores a transaction inside the transaction carried by ctx, if any.
func (r *Repository) Insert(ctx context.Context, t Transaction) (Transaction, error) {
	return scanTransaction(db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO transactions (type, session_id, operator_id, operator, payment_method, original_amount,
			discount_amount, final_amount, amount_received, change_given, transaction_date, description, reference, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+txColumns,
		t.Type, t.SessionID, t.OperatorID, t.Operator, t.PaymentMethod, t.OriginalAmount,
		t.DiscountAmount, t.FinalAmount, t.AmountReceived, t.ChangeGiven, t.TransactionDate, t.Description, t.Reference, t.Quantity))
}

// Get loads a transaction by id.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
}

// ListBySession returns a session's transactions in chronological order.
func (r *Repository) ListBySession(ctx context.Context, sessionID int64, includeDeleted bool) ([]Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE session_id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY transaction_date, id`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SoftDelete marks a transaction deleted.
func (r *Repository) SoftDelete(ctx context.Context, id int64, permanent bool, at time.Time) (Transaction, error) {
	return scanTransaction(db.Conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE transactions SET deleted_at = $2, permanent = $3 WHERE id = $1 AND deleted_at IS NULL RETURNING `+txColumns,
		id, at, permanent))
}
