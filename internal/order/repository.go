package order

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vouchpay/vouchpay/internal/escrow"
	"github.com/vouchpay/vouchpay/internal/fault"
)

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, orderID string) (Order, bool, error)
	Update(ctx context.Context, o Order) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// ListDeadlineElapsed returns delivered orders whose verification
	// deadline is at or before now, oldest deadline first.
	ListDeadlineElapsed(ctx context.Context, now time.Time, limit int) ([]Order, error)
}

// PostgresRepository stores orders in the orders table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `id, buyer_id, seller_id, product_id, amount, status, escrow_status,
	created_at, shipped_at, delivered_at, verified_at, verification_deadline, COALESCE(dispute_id, '')`

func (r *PostgresRepository) Create(ctx context.Context, o Order) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, product_id, amount, status, escrow_status, created_at, dispute_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`,
		o.ID, o.BuyerID, o.SellerID, o.ProductID, o.Amount, o.Status, string(o.EscrowStatus), o.CreatedAt, o.DisputeID,
	)
	if err != nil {
		return fault.Store(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, orderID string) (Order, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, fault.Store(err)
	}
	return o, true, nil
}

func (r *PostgresRepository) Update(ctx context.Context, o Order) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, escrow_status = $3, shipped_at = $4, delivered_at = $5,
		    verified_at = $6, verification_deadline = $7, dispute_id = NULLIF($8, '')
		WHERE id = $1`,
		o.ID, o.Status, string(o.EscrowStatus), o.ShippedAt, o.DeliveredAt,
		o.VerifiedAt, o.VerificationDeadline, o.DisputeID,
	)
	if err != nil {
		return fault.Store(err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PostgresRepository) ListDeadlineElapsed(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND verification_deadline IS NOT NULL AND verification_deadline <= $2
		ORDER BY verification_deadline ASC
		LIMIT $3`, StatusDelivered, now, limit)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fault.Store(err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Store(err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var escrowStatus string
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.ProductID, &o.Amount, &o.Status, &escrowStatus,
		&o.CreatedAt, &o.ShippedAt, &o.DeliveredAt, &o.VerifiedAt, &o.VerificationDeadline, &o.DisputeID,
	)
	if err != nil {
		return Order{}, err
	}
	o.EscrowStatus = escrow.Status(escrowStatus)
	return o, nil
}
