package syncutil

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("wallet:alice")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}

	km.mu.Lock()
	live := len(km.entries)
	km.mu.Unlock()
	if live != 0 {
		t.Fatalf("expected no live entries after unlock, got %d", live)
	}
}

func TestKeyedMutexLockAllOrderIndependent(t *testing.T) {
	km := NewKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := km.LockAll("buyer", "seller")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := km.LockAll("seller", "buyer")
			unlock()
		}()
	}
	wg.Wait()
}

func TestKeyedMutexLockAllDuplicateKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlock := km.LockAll("same", "same")
	unlock()

	// A second acquisition must not block.
	unlock = km.Lock("same")
	unlock()
}
