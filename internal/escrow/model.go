// Package escrow tracks one escrow account per order, mirroring the
// hold/release/refund lifecycle at order granularity. Accounts are audit
// projections of the ledger: the order service mutates them in the same
// per-order critical section that writes the ledger, and
// StatusFromTransactions recomputes the authoritative status from the log
// so the two can never silently drift.
package escrow

import (
	"time"

	"github.com/vouchpay/vouchpay/internal/ledger"
)

// Status of an order's escrowed funds.
type Status string

const (
	StatusHeld     Status = "held"
	StatusDisputed Status = "disputed"
	StatusReleased Status = "released"
	StatusRefunded Status = "refunded"
)

// Account is the per-order escrow record. It persists after terminal
// resolution as an audit trail.
type Account struct {
	ID         string
	OrderID    string
	Amount     int64
	Status     Status
	CreatedAt  time.Time
	ReleasedAt *time.Time
	RefundedAt *time.Time
}

// Terminal reports whether the account reached a final status.
func (a Account) Terminal() bool {
	return a.Status == StatusReleased || a.Status == StatusRefunded
}

// validNext is the escrow status machine: one-directional except for the
// dispute detour out of held.
var validNext = map[Status][]Status{
	StatusHeld:     {StatusDisputed, StatusReleased, StatusRefunded},
	StatusDisputed: {StatusReleased, StatusRefunded},
	StatusReleased: {},
	StatusRefunded: {},
}

func canTransition(from, to Status) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusFromTransactions derives an order's escrow status from its ledger
// postings on the paying wallet. It is the ground truth the stored
// account must agree with. The second return is false when the order has
// no hold at all.
//
// A dispute leaves no ledger trace (funds stay held), so this projection
// reports held for disputed orders; callers comparing against a stored
// account treat held and disputed as the same ledger state.
func StatusFromTransactions(txs []ledger.Transaction) (Status, bool) {
	var held bool
	for _, tx := range txs {
		switch tx.Type {
		case ledger.TypeEscrowRelease:
			return StatusReleased, true
		case ledger.TypeEscrowRefund:
			return StatusRefunded, true
		case ledger.TypeEscrowHold:
			held = true
		}
	}
	if held {
		return StatusHeld, true
	}
	return "", false
}
