package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/vouchpay/vouchpay/internal/fault"
	"github.com/vouchpay/vouchpay/internal/ledger"
)

func TestCreateAndStatus(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()

	a, err := m.Create(ctx, "ord-1", 5_000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != StatusHeld || a.Amount != 5_000 {
		t.Fatalf("unexpected account: %+v", a)
	}

	got, ok, err := m.Status(ctx, "ord-1")
	if err != nil || !ok {
		t.Fatalf("status: ok=%v err=%v", ok, err)
	}
	if got.ID != a.ID {
		t.Fatalf("expected account %s, got %s", a.ID, got.ID)
	}

	if _, ok, _ := m.Status(ctx, "ord-missing"); ok {
		t.Fatal("expected no account for unknown order")
	}
}

func TestCreateDuplicate(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()

	if _, err := m.Create(ctx, "ord-1", 100); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create(ctx, "ord-1", 100); !errors.Is(err, fault.ErrDuplicateEscrow) {
		t.Fatalf("expected DuplicateEscrow, got %v", err)
	}
}

func TestReleaseStampsAndBecomesTerminal(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()
	m.Create(ctx, "ord-1", 100)

	a, err := m.Release(ctx, "ord-1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if a.Status != StatusReleased || a.ReleasedAt == nil {
		t.Fatalf("expected stamped released account, got %+v", a)
	}

	if _, err := m.Release(ctx, "ord-1"); !errors.Is(err, fault.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved on double release, got %v", err)
	}
	if _, err := m.Refund(ctx, "ord-1"); !errors.Is(err, fault.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved on refund after release, got %v", err)
	}
	if _, err := m.Dispute(ctx, "ord-1"); !errors.Is(err, fault.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved on dispute after release, got %v", err)
	}
}

func TestDisputeDetourResolvesEitherWay(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	ctx := context.Background()

	m.Create(ctx, "ord-r", 100)
	if _, err := m.Dispute(ctx, "ord-r"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	// Disputed is not terminal, so an illegal move out of it is a plain
	// invalid transition rather than AlreadyResolved.
	if _, err := m.Dispute(ctx, "ord-r"); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition on double dispute, got %v", err)
	}
	a, err := m.Refund(ctx, "ord-r")
	if err != nil {
		t.Fatalf("refund disputed: %v", err)
	}
	if a.Status != StatusRefunded || a.RefundedAt == nil {
		t.Fatalf("expected stamped refunded account, got %+v", a)
	}

	m.Create(ctx, "ord-s", 100)
	m.Dispute(ctx, "ord-s")
	if _, err := m.Release(ctx, "ord-s"); err != nil {
		t.Fatalf("release disputed: %v", err)
	}
}

func TestTransitionOnMissingAccount(t *testing.T) {
	m := NewManager(NewMemoryRepository())
	if _, err := m.Release(context.Background(), "ord-x"); !errors.Is(err, fault.ErrNoEscrowFound) {
		t.Fatalf("expected NoEscrowFound, got %v", err)
	}
}

func TestStatusFromTransactions(t *testing.T) {
	hold := ledger.Transaction{Entry: ledger.Entry{OrderID: "o", Type: ledger.TypeEscrowHold, Amount: 100}}
	release := ledger.Transaction{Entry: ledger.Entry{OrderID: "o", Type: ledger.TypeEscrowRelease, Amount: 100}}
	refund := ledger.Transaction{Entry: ledger.Entry{OrderID: "o", Type: ledger.TypeEscrowRefund, Amount: 100}}

	if s, ok := StatusFromTransactions(nil); ok {
		t.Fatalf("expected no status for empty log, got %s", s)
	}
	if s, _ := StatusFromTransactions([]ledger.Transaction{hold}); s != StatusHeld {
		t.Fatalf("expected held, got %s", s)
	}
	if s, _ := StatusFromTransactions([]ledger.Transaction{release, hold}); s != StatusReleased {
		t.Fatalf("expected released, got %s", s)
	}
	if s, _ := StatusFromTransactions([]ledger.Transaction{refund, hold}); s != StatusRefunded {
		t.Fatalf("expected refunded, got %s", s)
	}
}
