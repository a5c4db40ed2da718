package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the transaction log in PostgreSQL. Batched
// recordings are wrapped in one transaction so cross-wallet postings
// commit or roll back together.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertTx = `INSERT INTO ledger_transactions
        (id, user_id, order_id, type, from_party, to_party, amount, description)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
        RETURNING created_at`

func (s *PostgresStore) Record(ctx context.Context, entries ...Entry) ([]Transaction, error) {
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	recorded := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		rec := Transaction{ID: uuid.NewString(), Entry: e}
		if err := tx.QueryRow(ctx, insertTx,
			rec.ID, e.UserID, e.OrderID, string(e.Type), e.From, e.To, e.Amount, e.Description,
		).Scan(&rec.CreatedAt); err != nil {
			return nil, err
		}
		recorded = append(recorded, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recorded, nil
}

// Balances folds the user's postings in SQL. The CASE arms mirror
// Balances.Apply exactly.
func (s *PostgresStore) Balances(ctx context.Context, userID string) (Balances, error) {
	const query = `
        SELECT
            COALESCE(SUM(CASE type
                WHEN 'WALLET_CREDIT' THEN amount
                WHEN 'WALLET_DEBIT' THEN -amount
                WHEN 'ESCROW_HOLD' THEN -amount
                WHEN 'ESCROW_REFUND' THEN amount
                ELSE 0 END), 0),
            COALESCE(SUM(CASE type
                WHEN 'ESCROW_HOLD' THEN amount
                WHEN 'ESCROW_RELEASE' THEN -amount
                WHEN 'ESCROW_REFUND' THEN -amount
                ELSE 0 END), 0)
        FROM ledger_transactions WHERE user_id = $1`

	var b Balances
	if err := s.db.QueryRow(ctx, query, userID).Scan(&b.Available, &b.Held); err != nil {
		return Balances{}, err
	}
	return b, nil
}

const selectTx = `SELECT id, user_id, COALESCE(order_id, ''), type, from_party, to_party, amount, description, created_at
        FROM ledger_transactions`

func (s *PostgresStore) TransactionsForUser(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	query := selectTx + ` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) TransactionsForOrder(ctx context.Context, userID, orderID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, selectTx+` WHERE user_id = $1 AND order_id = $2 ORDER BY created_at DESC, id DESC`, userID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) FindHold(ctx context.Context, orderID string) (Transaction, bool, error) {
	row := s.db.QueryRow(ctx, selectTx+` WHERE order_id = $1 AND type = 'ESCROW_HOLD' LIMIT 1`, orderID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return tx, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var typ string
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.OrderID, &typ, &tx.From, &tx.To, &tx.Amount, &tx.Description, &tx.CreatedAt); err != nil {
		return Transaction{}, err
	}
	tx.Type = Type(typ)
	return tx, nil
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
