package dispute

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Dispute
	byOrder map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and the
// no-database development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:    make(map[string]Dispute),
		byOrder: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, d Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ID] = d
	r.byOrder[d.OrderID] = d.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, disputeID string) (Dispute, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[disputeID]
	return d, ok, nil
}

func (r *memoryRepository) GetByOrder(_ context.Context, orderID string) (Dispute, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOrder[orderID]
	if !ok {
		return Dispute{}, false, nil
	}
	d, ok := r.byID[id]
	return d, ok, nil
}

func (r *memoryRepository) Resolve(_ context.Context, disputeID string, status Status, resolvedBy string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[disputeID]
	if !ok || d.Resolved() {
		return false, nil
	}
	stamp := at.UTC()
	d.Status = status
	d.ResolvedBy = resolvedBy
	d.ResolvedAt = &stamp
	r.byID[disputeID] = d
	return true, nil
}
