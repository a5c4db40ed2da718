package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vouchpay/vouchpay/internal/fault"
)

// Manager exposes escrow account lifecycle operations. It does not move
// money: the wallet service owns the ledger postings, and the order
// service calls both inside one per-order critical section.
type Manager struct {
	repo Repository
	now  func() time.Time
}

// NewManager builds an escrow account manager.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo, now: time.Now}
}

// Create opens a held account for orderID. Fails with DuplicateEscrow if
// one already exists.
func (m *Manager) Create(ctx context.Context, orderID string, amount int64) (Account, error) {
	if orderID == "" {
		return Account{}, fmt.Errorf("%w: escrow requires an order id", fault.ErrValidationFailed)
	}
	if amount <= 0 {
		return Account{}, fmt.Errorf("%w: escrow amount must be positive", fault.ErrValidationFailed)
	}

	a := Account{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Amount:    amount,
		Status:    StatusHeld,
		CreatedAt: m.now().UTC(),
	}
	ok, err := m.repo.Create(ctx, a)
	if err != nil {
		return Account{}, fault.Store(err)
	}
	if !ok {
		return Account{}, fault.ErrDuplicateEscrow
	}
	return a, nil
}

// Release moves the account to released, stamping ReleasedAt.
func (m *Manager) Release(ctx context.Context, orderID string) (Account, error) {
	return m.transition(ctx, orderID, StatusReleased)
}

// Refund moves the account to refunded, stamping RefundedAt.
func (m *Manager) Refund(ctx context.Context, orderID string) (Account, error) {
	return m.transition(ctx, orderID, StatusRefunded)
}

// Dispute parks the account in disputed; funds stay held until an arbiter
// resolves it.
func (m *Manager) Dispute(ctx context.Context, orderID string) (Account, error) {
	return m.transition(ctx, orderID, StatusDisputed)
}

// Status is a pure lookup; the bool is false when no account exists.
func (m *Manager) Status(ctx context.Context, orderID string) (Account, bool, error) {
	a, ok, err := m.repo.Get(ctx, orderID)
	if err != nil {
		return Account{}, false, fault.Store(err)
	}
	return a, ok, nil
}

func (m *Manager) transition(ctx context.Context, orderID string, to Status) (Account, error) {
	a, ok, err := m.repo.Get(ctx, orderID)
	if err != nil {
		return Account{}, fault.Store(err)
	}
	if !ok {
		return Account{}, fault.ErrNoEscrowFound
	}
	if !canTransition(a.Status, to) {
		if a.Terminal() {
			return Account{}, fmt.Errorf("%w: escrow for %s is %s", fault.ErrAlreadyResolved, orderID, a.Status)
		}
		return Account{}, fmt.Errorf("%w: escrow %s -> %s", fault.ErrInvalidTransition, a.Status, to)
	}

	stamp := m.now().UTC()
	ok, err = m.repo.UpdateStatus(ctx, orderID, a.Status, to, stamp)
	if err != nil {
		return Account{}, fault.Store(err)
	}
	if !ok {
		// Lost a race: someone moved the account since the read.
		return Account{}, fmt.Errorf("%w: escrow %s changed concurrently", fault.ErrInvalidTransition, orderID)
	}

	a.Status = to
	switch to {
	case StatusReleased:
		a.ReleasedAt = &stamp
	case StatusRefunded:
		a.RefundedAt = &stamp
	}
	return a, nil
}
