// Package ledger is the append-only money log and the single source of
// truth for every balance in the system. Wallet and escrow views are
// projections folded from these entries; nothing updates or deletes a
// transaction after it is recorded.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Type classifies how a transaction moves value for the wallet it belongs to.
type Type string

const (
	TypeWalletCredit  Type = "WALLET_CREDIT"
	TypeWalletDebit   Type = "WALLET_DEBIT"
	TypeEscrowHold    Type = "ESCROW_HOLD"
	TypeEscrowRelease Type = "ESCROW_RELEASE"
	TypeEscrowRefund  Type = "ESCROW_REFUND"
)

// Entry is a single posting to one user's log. OrderID tags escrow
// traffic; external top-ups leave it empty.
type Entry struct {
	UserID      string
	OrderID     string
	Type        Type
	From        string
	To          string
	Amount      int64
	Description string
}

// Transaction is a recorded entry. Immutable once returned.
type Transaction struct {
	ID string
	Entry
	CreatedAt time.Time
}

// Balances is the pair of derived balances for one user.
type Balances struct {
	Available int64
	Held      int64
}

// Apply folds one posting into the running balances. Both store
// implementations must agree with this fold; it is the definition of what
// a balance is.
func (b Balances) Apply(t Type, amount int64) Balances {
	switch t {
	case TypeWalletCredit:
		b.Available += amount
	case TypeWalletDebit:
		b.Available -= amount
	case TypeEscrowHold:
		b.Available -= amount
		b.Held += amount
	case TypeEscrowRelease:
		b.Held -= amount
	case TypeEscrowRefund:
		b.Held -= amount
		b.Available += amount
	}
	return b
}

// Store is the contract implemented by ledger backends.
//
// Record never fails on business grounds: deciding whether a posting
// should happen is the wallet service's job. Multi-entry calls are
// all-or-nothing so the two sides of a release land together.
type Store interface {
	Record(ctx context.Context, entries ...Entry) ([]Transaction, error)
	Balances(ctx context.Context, userID string) (Balances, error)
	TransactionsForUser(ctx context.Context, userID string, limit int) ([]Transaction, error)
	TransactionsForOrder(ctx context.Context, userID, orderID string) ([]Transaction, error)
	FindHold(ctx context.Context, orderID string) (Transaction, bool, error)
}

func validate(e Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("ledger entry requires a user id")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("ledger entry amount must be positive, got %d", e.Amount)
	}
	switch e.Type {
	case TypeWalletCredit, TypeWalletDebit, TypeEscrowHold, TypeEscrowRelease, TypeEscrowRefund:
		return nil
	default:
		return fmt.Errorf("unknown ledger entry type %q", e.Type)
	}
}
