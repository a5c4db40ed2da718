package wallet

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and the
// no-database development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) GetOrCreate(_ context.Context, userID string) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.storage[userID]; ok {
		return w, nil
	}
	w := Wallet{UserID: userID, State: StateActive, CreatedAt: time.Now().UTC()}
	r.storage[userID] = w
	return w, nil
}

func (r *memoryRepository) Get(_ context.Context, userID string) (Wallet, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[userID]
	return w, ok, nil
}

func (r *memoryRepository) SetState(_ context.Context, userID string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[userID]
	if !ok {
		return nil
	}
	w.State = state
	r.storage[userID] = w
	return nil
}
