package wallet

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists wallet state records.
type Repository interface {
	// GetOrCreate returns the wallet for userID, creating an ACTIVE one on
	// first use.
	GetOrCreate(ctx context.Context, userID string) (Wallet, error)
	Get(ctx context.Context, userID string) (Wallet, bool, error)
	SetState(ctx context.Context, userID string, state State) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetOrCreate(ctx context.Context, userID string) (Wallet, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (user_id, state) VALUES ($1, $2)
        ON CONFLICT (user_id) DO NOTHING`, userID, string(StateActive))
	if err != nil {
		return Wallet{}, err
	}
	w, _, err := r.Get(ctx, userID)
	return w, err
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (Wallet, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT user_id, state, created_at FROM wallets WHERE user_id = $1`, userID)
	var w Wallet
	var state string
	if err := row.Scan(&w.UserID, &state, &w.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Wallet{}, false, nil
		}
		return Wallet{}, false, err
	}
	w.State = State(state)
	w.CreatedAt = w.CreatedAt.UTC()
	return w, true, nil
}

func (r *PostgresRepository) SetState(ctx context.Context, userID string, state State) error {
	_, err := r.db.Exec(ctx, `UPDATE wallets SET state = $1 WHERE user_id = $2`, string(state), userID)
	return err
}
