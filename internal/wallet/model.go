package wallet

import "time"

// State gates which operations a wallet accepts.
type State string

const (
	// StateActive wallets accept every operation.
	StateActive State = "ACTIVE"
	// StateLimited wallets cannot withdraw (Debit) but spend and receive
	// normally.
	StateLimited State = "LIMITED"
	// StateFrozen wallets reject Authorize and Debit. Credits and in-flight
	// escrow resolutions still complete so a freeze never strands funds.
	StateFrozen State = "FROZEN"
)

// Wallet is the stored wallet record. Balances are not on it: they are
// derived from the ledger on every read.
type Wallet struct {
	UserID    string
	State     State
	CreatedAt time.Time
}
