package wallet

import (
	"context"
	"fmt"

	"github.com/vouchpay/vouchpay/internal/fault"
	"github.com/vouchpay/vouchpay/internal/ledger"
	"github.com/vouchpay/vouchpay/internal/syncutil"
)

const escrowParty = "escrow"

// Service enforces wallet state and balance transitions on top of the
// ledger. All validation lives here; the ledger itself only appends.
//
// Every mutation runs under the per-user lock, which makes the
// check-then-append sequence atomic per wallet. Release locks buyer and
// seller together, in sorted order.
type Service struct {
	repo   Repository
	ledger ledger.Store
	locks  *syncutil.KeyedMutex
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledgerStore ledger.Store) *Service {
	return &Service{repo: repo, ledger: ledgerStore, locks: syncutil.NewKeyedMutex()}
}

// Receipt is the outcome of a single-wallet operation. Duplicate marks an
// idempotent replay: the returned transaction is the original one and no
// balance moved.
type Receipt struct {
	Transaction ledger.Transaction
	Balances    ledger.Balances
	Duplicate   bool
}

// Settlement is the outcome of resolving an order's escrow.
type Settlement struct {
	OrderID      string
	BuyerID      string
	SellerID     string
	Amount       int64
	Transactions []ledger.Transaction
}

// Snapshot combines wallet state with its ledger-derived balances.
type Snapshot struct {
	Wallet       Wallet
	Balances     ledger.Balances
	Transactions []ledger.Transaction
}

// Snapshot returns the wallet projection for userID.
func (s *Service) Snapshot(ctx context.Context, userID string, txLimit int) (Snapshot, error) {
	w, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, fault.Store(err)
	}
	if !ok {
		return Snapshot{}, fault.ErrWalletNotFound
	}
	balances, err := s.ledger.Balances(ctx, userID)
	if err != nil {
		return Snapshot{}, fault.Store(err)
	}
	txs, err := s.ledger.TransactionsForUser(ctx, userID, txLimit)
	if err != nil {
		return Snapshot{}, fault.Store(err)
	}
	return Snapshot{Wallet: w, Balances: balances, Transactions: txs}, nil
}

// Credit records an already-settled external credit. It always succeeds
// for a positive amount, creating the wallet on first use; frozen wallets
// still receive credits.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, source string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: credit amount must be positive", fault.ErrValidationFailed)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return Receipt{}, fault.Store(err)
	}
	if source == "" {
		source = "external"
	}
	return s.append(ctx, ledger.Entry{
		UserID:      userID,
		Type:        ledger.TypeWalletCredit,
		From:        source,
		To:          userID,
		Amount:      amount,
		Description: fmt.Sprintf("credit from %s", source),
	})
}

// Debit withdraws from the available balance. LIMITED and FROZEN wallets
// reject it.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, reason string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: debit amount must be positive", fault.ErrValidationFailed)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	w, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	if w.State == StateFrozen {
		return Receipt{}, fault.ErrWalletFrozen
	}
	if w.State == StateLimited {
		return Receipt{}, fmt.Errorf("%w: withdrawals are limited for this wallet", fault.ErrForbidden)
	}

	balances, err := s.ledger.Balances(ctx, userID)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	if balances.Available < amount {
		return Receipt{}, fault.ErrInsufficientFunds
	}
	return s.append(ctx, ledger.Entry{
		UserID:      userID,
		Type:        ledger.TypeWalletDebit,
		From:        userID,
		To:          "external",
		Amount:      amount,
		Description: reason,
	})
}

// Authorize moves amount from the user's available balance into escrow for
// orderID. Idempotent per order: a second call finds the existing hold and
// returns it unchanged.
func (s *Service) Authorize(ctx context.Context, userID string, amount int64, orderID, memo string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: hold amount must be positive", fault.ErrValidationFailed)
	}
	if orderID == "" {
		return Receipt{}, fmt.Errorf("%w: hold requires an order id", fault.ErrValidationFailed)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	w, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	if w.State == StateFrozen {
		return Receipt{}, fault.ErrWalletFrozen
	}

	existing, err := s.ledger.TransactionsForOrder(ctx, userID, orderID)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	if hold, ok := findType(existing, ledger.TypeEscrowHold); ok {
		balances, err := s.ledger.Balances(ctx, userID)
		if err != nil {
			return Receipt{}, fault.Store(err)
		}
		return Receipt{Transaction: hold, Balances: balances, Duplicate: true}, nil
	}

	balances, err := s.ledger.Balances(ctx, userID)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	if balances.Available < amount {
		return Receipt{}, fault.ErrInsufficientFunds
	}
	return s.append(ctx, ledger.Entry{
		UserID:      userID,
		OrderID:     orderID,
		Type:        ledger.TypeEscrowHold,
		From:        userID,
		To:          escrowParty,
		Amount:      amount,
		Description: memo,
	})
}

// Release resolves the escrow hold for orderID in the seller's favor: the
// buyer's held balance drops and the seller is credited the same amount in
// one atomic ledger batch. One-shot per order; a repeat (or a refund after
// it) fails with AlreadyResolved and moves nothing.
func (s *Service) Release(ctx context.Context, orderID, sellerID string) (Settlement, error) {
	hold, found, err := s.ledger.FindHold(ctx, orderID)
	if err != nil {
		return Settlement{}, fault.Store(err)
	}
	if !found {
		return Settlement{}, fault.ErrNoEscrowFound
	}
	buyerID := hold.UserID

	unlock := s.locks.LockAll(buyerID, sellerID)
	defer unlock()

	if err := s.checkUnresolved(ctx, buyerID, orderID); err != nil {
		return Settlement{}, err
	}

	buyerBalances, err := s.ledger.Balances(ctx, buyerID)
	if err != nil {
		return Settlement{}, fault.Store(err)
	}
	if buyerBalances.Held < hold.Amount {
		return Settlement{}, fault.ErrInsufficientEscrow
	}

	if _, err := s.repo.GetOrCreate(ctx, sellerID); err != nil {
		return Settlement{}, fault.Store(err)
	}

	txs, err := s.ledger.Record(ctx,
		ledger.Entry{
			UserID:      buyerID,
			OrderID:     orderID,
			Type:        ledger.TypeEscrowRelease,
			From:        escrowParty,
			To:          sellerID,
			Amount:      hold.Amount,
			Description: fmt.Sprintf("escrow released for order %s", orderID),
		},
		ledger.Entry{
			UserID:      sellerID,
			OrderID:     orderID,
			Type:        ledger.TypeWalletCredit,
			From:        escrowParty,
			To:          sellerID,
			Amount:      hold.Amount,
			Description: fmt.Sprintf("payment for order %s", orderID),
		},
	)
	if err != nil {
		return Settlement{}, fault.Store(err)
	}

	return Settlement{
		OrderID:      orderID,
		BuyerID:      buyerID,
		SellerID:     sellerID,
		Amount:       hold.Amount,
		Transactions: txs,
	}, nil
}

// Refund resolves the escrow hold for orderID in the buyer's favor,
// returning the held amount to the buyer's available balance. Same
// one-shot guarantee as Release.
func (s *Service) Refund(ctx context.Context, orderID string) (Settlement, error) {
	hold, found, err := s.ledger.FindHold(ctx, orderID)
	if err != nil {
		return Settlement{}, fault.Store(err)
	}
	if !found {
		return Settlement{}, fault.ErrNoEscrowFound
	}
	buyerID := hold.UserID

	unlock := s.locks.Lock(buyerID)
	defer unlock()

	if err := s.checkUnresolved(ctx, buyerID, orderID); err != nil {
		return Settlement{}, err
	}

	balances, err := s.ledger.Balances(ctx, buyerID)
	if err != nil {
		return Settlement{}, fault.Store(err)
	}
	if balances.Held < hold.Amount {
		return Settlement{}, fault.ErrInsufficientEscrow
	}

	txs, err := s.ledger.Record(ctx, ledger.Entry{
		UserID:      buyerID,
		OrderID:     orderID,
		Type:        ledger.TypeEscrowRefund,
		From:        escrowParty,
		To:          buyerID,
		Amount:      hold.Amount,
		Description: fmt.Sprintf("escrow refunded for order %s", orderID),
	})
	if err != nil {
		return Settlement{}, fault.Store(err)
	}

	return Settlement{
		OrderID:      orderID,
		BuyerID:      buyerID,
		Amount:       hold.Amount,
		Transactions: txs,
	}, nil
}

// OrderTrail returns every ledger transaction recorded for an order, newest
// first. It answers from the buyer's log, where the hold and all resolution
// entries for the order live.
func (s *Service) OrderTrail(ctx context.Context, orderID string) ([]ledger.Transaction, error) {
	hold, found, err := s.ledger.FindHold(ctx, orderID)
	if err != nil {
		return nil, fault.Store(err)
	}
	if !found {
		return nil, fault.ErrNoEscrowFound
	}
	txs, err := s.ledger.TransactionsForOrder(ctx, hold.UserID, orderID)
	if err != nil {
		return nil, fault.Store(err)
	}
	return txs, nil
}

// Freeze blocks new holds and withdrawals. Credits and in-flight escrow
// resolutions are unaffected.
func (s *Service) Freeze(ctx context.Context, userID string) error {
	return s.setState(ctx, userID, StateFrozen)
}

// Unfreeze returns a wallet to ACTIVE.
func (s *Service) Unfreeze(ctx context.Context, userID string) error {
	return s.setState(ctx, userID, StateActive)
}

// Limit blocks withdrawals while leaving spending intact.
func (s *Service) Limit(ctx context.Context, userID string) error {
	return s.setState(ctx, userID, StateLimited)
}

func (s *Service) setState(ctx context.Context, userID string, state State) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return fault.Store(err)
	}
	if err := s.repo.SetState(ctx, userID, state); err != nil {
		return fault.Store(err)
	}
	return nil
}

// checkUnresolved rejects a second resolution for the same order.
func (s *Service) checkUnresolved(ctx context.Context, buyerID, orderID string) error {
	txs, err := s.ledger.TransactionsForOrder(ctx, buyerID, orderID)
	if err != nil {
		return fault.Store(err)
	}
	if _, ok := findType(txs, ledger.TypeEscrowRelease); ok {
		return fault.ErrAlreadyResolved
	}
	if _, ok := findType(txs, ledger.TypeEscrowRefund); ok {
		return fault.ErrAlreadyResolved
	}
	return nil
}

func (s *Service) append(ctx context.Context, e ledger.Entry) (Receipt, error) {
	txs, err := s.ledger.Record(ctx, e)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	balances, err := s.ledger.Balances(ctx, e.UserID)
	if err != nil {
		return Receipt{}, fault.Store(err)
	}
	return Receipt{Transaction: txs[0], Balances: balances}, nil
}

func findType(txs []ledger.Transaction, t ledger.Type) (ledger.Transaction, bool) {
	for _, tx := range txs {
		if tx.Type == t {
			return tx, true
		}
	}
	return ledger.Transaction{}, false
}
