package escrow

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byOrder map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests and the
// no-database development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{byOrder: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, a Account) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOrder[a.OrderID]; exists {
		return false, nil
	}
	r.byOrder[a.OrderID] = a
	return true, nil
}

func (r *memoryRepository) Get(_ context.Context, orderID string) (Account, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byOrder[orderID]
	return a, ok, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, orderID string, from, to Status, stampAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byOrder[orderID]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	stamp := stampAt.UTC()
	switch to {
	case StatusReleased:
		a.ReleasedAt = &stamp
	case StatusRefunded:
		a.RefundedAt = &stamp
	}
	r.byOrder[orderID] = a
	return true, nil
}
