package escrow

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists escrow accounts.
type Repository interface {
	// Create inserts a new account; ok is false when one already exists
	// for the order.
	Create(ctx context.Context, account Account) (ok bool, err error)
	Get(ctx context.Context, orderID string) (Account, bool, error)
	// UpdateStatus moves the account from one status to another, stamping
	// stampAt into the released/refunded column when applicable. ok is
	// false when the account was not in the expected status.
	UpdateStatus(ctx context.Context, orderID string, from, to Status, stampAt time.Time) (ok bool, err error)
}

// PostgresRepository stores escrow accounts in PostgreSQL. Status updates
// are guarded UPDATEs so a raced transition loses cleanly.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a Account) (bool, error) {
	tag, err := r.db.Exec(ctx, `INSERT INTO escrow_accounts (id, order_id, amount, status, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (order_id) DO NOTHING`,
		a.ID, a.OrderID, a.Amount, string(a.Status), a.CreatedAt.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, orderID string) (Account, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT id, order_id, amount, status, created_at, released_at, refunded_at
        FROM escrow_accounts WHERE order_id = $1`, orderID)
	var a Account
	var status string
	if err := row.Scan(&a.ID, &a.OrderID, &a.Amount, &status, &a.CreatedAt, &a.ReleasedAt, &a.RefundedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	a.Status = Status(status)
	return a, true, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, from, to Status, stampAt time.Time) (bool, error) {
	var column string
	switch to {
	case StatusReleased:
		column = "released_at"
	case StatusRefunded:
		column = "refunded_at"
	}

	var tag pgconn.CommandTag
	var err error
	if column == "" {
		tag, err = r.db.Exec(ctx, `UPDATE escrow_accounts SET status = $1
            WHERE order_id = $2 AND status = $3`, string(to), orderID, string(from))
	} else {
		tag, err = r.db.Exec(ctx, `UPDATE escrow_accounts SET status = $1, `+column+` = $2
            WHERE order_id = $3 AND status = $4`, string(to), stampAt.UTC(), orderID, string(from))
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
