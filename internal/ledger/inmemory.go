package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger used by tests
// and the no-database development mode.
func NewInMemory() Store {
	return &inMemoryStore{byUser: make(map[string][]Transaction)}
}

func (s *inMemoryStore) Record(_ context.Context, entries ...Entry) ([]Transaction, error) {
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	recorded := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		tx := Transaction{ID: uuid.NewString(), Entry: e, CreatedAt: now}
		s.byUser[e.UserID] = append(s.byUser[e.UserID], tx)
		recorded = append(recorded, tx)
	}
	return recorded, nil
}

func (s *inMemoryStore) Balances(_ context.Context, userID string) (Balances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b Balances
	for _, tx := range s.byUser[userID] {
		b = b.Apply(tx.Type, tx.Amount)
	}
	return b, nil
}

func (s *inMemoryStore) TransactionsForUser(_ context.Context, userID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.byUser[userID]
	out := make([]Transaction, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *inMemoryStore) TransactionsForOrder(_ context.Context, userID, orderID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.byUser[userID]
	var out []Transaction
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].OrderID == orderID {
			out = append(out, log[i])
		}
	}
	return out, nil
}

func (s *inMemoryStore) FindHold(_ context.Context, orderID string) (Transaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, log := range s.byUser {
		for _, tx := range log {
			if tx.OrderID == orderID && tx.Type == TypeEscrowHold {
				return tx, true, nil
			}
		}
	}
	return Transaction{}, false, nil
}
