package dispute

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists dispute records.
type Repository interface {
	Create(ctx context.Context, d Dispute) error
	Get(ctx context.Context, disputeID string) (Dispute, bool, error)
	GetByOrder(ctx context.Context, orderID string) (Dispute, bool, error)
	// Resolve stamps the ruling; ok is false when the dispute was already
	// resolved (or does not exist).
	Resolve(ctx context.Context, disputeID string, status Status, resolvedBy string, at time.Time) (ok bool, err error)
}

// PostgresRepository stores disputes in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d Dispute) error {
	_, err := r.db.Exec(ctx, `INSERT INTO disputes (id, order_id, opened_by, reason, evidence, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.OrderID, d.OpenedBy, d.Reason, d.Evidence, string(d.Status), d.CreatedAt.UTC())
	return err
}

const selectDispute = `SELECT id, order_id, opened_by, reason, evidence, status, created_at, resolved_at, COALESCE(resolved_by, '')
        FROM disputes`

func (r *PostgresRepository) Get(ctx context.Context, disputeID string) (Dispute, bool, error) {
	return r.get(ctx, selectDispute+` WHERE id = $1`, disputeID)
}

func (r *PostgresRepository) GetByOrder(ctx context.Context, orderID string) (Dispute, bool, error) {
	return r.get(ctx, selectDispute+` WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (r *PostgresRepository) get(ctx context.Context, query, arg string) (Dispute, bool, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var d Dispute
	var status string
	if err := row.Scan(&d.ID, &d.OrderID, &d.OpenedBy, &d.Reason, &d.Evidence, &status, &d.CreatedAt, &d.ResolvedAt, &d.ResolvedBy); err != nil {
		if err == pgx.ErrNoRows {
			return Dispute{}, false, nil
		}
		return Dispute{}, false, err
	}
	d.Status = Status(status)
	return d, true, nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, disputeID string, status Status, resolvedBy string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE disputes SET status = $1, resolved_by = $2, resolved_at = $3
        WHERE id = $4 AND status IN ($5, $6)`,
		string(status), resolvedBy, at.UTC(), disputeID, string(StatusOpen), string(StatusInvestigating))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
