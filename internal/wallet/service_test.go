package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vouchpay/vouchpay/internal/fault"
	"github.com/vouchpay/vouchpay/internal/ledger"
)

func newTestService() (*Service, ledger.Store) {
	led := ledger.NewInMemory()
	return NewService(NewMemoryRepository(), led), led
}

func TestCreditCreatesWalletOnFirstUse(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Credit(ctx, "buyer-1", 5_000, "upi")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if rec.Balances.Available != 5_000 || rec.Balances.Held != 0 {
		t.Fatalf("unexpected balances: %+v", rec.Balances)
	}

	snap, err := svc.Snapshot(ctx, "buyer-1", 10)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Wallet.State != StateActive {
		t.Fatalf("expected ACTIVE wallet, got %s", snap.Wallet.State)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].Type != ledger.TypeWalletCredit {
		t.Fatalf("expected one WALLET_CREDIT, got %+v", snap.Transactions)
	}
}

func TestAuthorizeMovesAvailableIntoEscrow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")

	rec, err := svc.Authorize(ctx, "buyer-1", 5_000, "ord-1", "purchase")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if rec.Balances.Available != 0 || rec.Balances.Held != 5_000 {
		t.Fatalf("unexpected balances after hold: %+v", rec.Balances)
	}
	if rec.Transaction.Type != ledger.TypeEscrowHold {
		t.Fatalf("expected ESCROW_HOLD, got %s", rec.Transaction.Type)
	}
}

func TestAuthorizeIsIdempotentPerOrder(t *testing.T) {
	svc, led := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")

	first, err := svc.Authorize(ctx, "buyer-1", 5_000, "ord-1", "purchase")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	second, err := svc.Authorize(ctx, "buyer-1", 5_000, "ord-1", "purchase")
	if err != nil {
		t.Fatalf("repeat authorize: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("expected duplicate flag on repeat authorize")
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatal("repeat authorize must return the original hold transaction")
	}
	if second.Balances.Available != 0 || second.Balances.Held != 5_000 {
		t.Fatalf("repeat authorize moved money: %+v", second.Balances)
	}

	txs, _ := led.TransactionsForOrder(ctx, "buyer-1", "ord-1")
	if len(txs) != 1 {
		t.Fatalf("expected exactly one ESCROW_HOLD, got %d entries", len(txs))
	}
}

func TestAuthorizeInsufficientFundsLeavesEverythingUntouched(t *testing.T) {
	svc, led := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")

	if _, err := svc.Authorize(ctx, "buyer-1", 6_000, "ord-2", ""); !errors.Is(err, fault.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}

	b, _ := led.Balances(context.Background(), "buyer-1")
	if b.Available != 5_000 || b.Held != 0 {
		t.Fatalf("declined authorize changed balances: %+v", b)
	}
	txs, _ := led.TransactionsForUser(ctx, "buyer-1", 0)
	if len(txs) != 1 {
		t.Fatalf("declined authorize appended to the log: %d entries", len(txs))
	}
}

func TestFrozenWalletRejectsAuthorizeButNotCredit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")

	if err := svc.Freeze(ctx, "buyer-1"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, err := svc.Authorize(ctx, "buyer-1", 1_000, "ord-3", ""); !errors.Is(err, fault.ErrWalletFrozen) {
		t.Fatalf("expected WalletFrozen, got %v", err)
	}
	if _, err := svc.Credit(ctx, "buyer-1", 1_000, ""); err != nil {
		t.Fatalf("frozen wallet must still accept credits: %v", err)
	}

	if err := svc.Unfreeze(ctx, "buyer-1"); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if _, err := svc.Authorize(ctx, "buyer-1", 1_000, "ord-3", ""); err != nil {
		t.Fatalf("authorize after unfreeze: %v", err)
	}
}

func TestReleaseCreditsSellerOnce(t *testing.T) {
	svc, led := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")
	svc.Authorize(ctx, "buyer-1", 5_000, "ord-1", "")

	settlement, err := svc.Release(ctx, "ord-1", "seller-1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if settlement.Amount != 5_000 || settlement.BuyerID != "buyer-1" {
		t.Fatalf("unexpected settlement: %+v", settlement)
	}
	if len(settlement.Transactions) != 2 {
		t.Fatalf("expected buyer+seller postings, got %d", len(settlement.Transactions))
	}

	buyer, _ := led.Balances(ctx, "buyer-1")
	seller, _ := led.Balances(ctx, "seller-1")
	if buyer.Held != 0 || seller.Available != 5_000 {
		t.Fatalf("unexpected balances: buyer=%+v seller=%+v", buyer, seller)
	}

	// Second release and refund-after-release must both decline without
	// balance movement.
	if _, err := svc.Release(ctx, "ord-1", "seller-1"); !errors.Is(err, fault.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved on double release, got %v", err)
	}
	if _, err := svc.Refund(ctx, "ord-1"); !errors.Is(err, fault.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved on refund after release, got %v", err)
	}
	buyer, _ = led.Balances(ctx, "buyer-1")
	seller, _ = led.Balances(ctx, "seller-1")
	if buyer.Available != 0 || buyer.Held != 0 || seller.Available != 5_000 {
		t.Fatalf("declined resolution moved money: buyer=%+v seller=%+v", buyer, seller)
	}
}

func TestRefundReturnsHeldFundsToBuyer(t *testing.T) {
	svc, led := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")
	svc.Authorize(ctx, "buyer-1", 3_000, "ord-4", "")

	settlement, err := svc.Refund(ctx, "ord-4")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if settlement.Amount != 3_000 {
		t.Fatalf("unexpected refund amount: %d", settlement.Amount)
	}

	b, _ := led.Balances(ctx, "buyer-1")
	if b.Available != 5_000 || b.Held != 0 {
		t.Fatalf("unexpected balances after refund: %+v", b)
	}

	if _, err := svc.Release(ctx, "ord-4", "seller-1"); !errors.Is(err, fault.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved on release after refund, got %v", err)
	}
}

func TestReleaseWithoutHold(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Release(context.Background(), "ord-none", "seller-1"); !errors.Is(err, fault.ErrNoEscrowFound) {
		t.Fatalf("expected NoEscrowFound, got %v", err)
	}
}

func TestFrozenBuyerEscrowStillResolves(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 2_000, "")
	svc.Authorize(ctx, "buyer-1", 2_000, "ord-5", "")

	// Freezing after the hold must not block resolution.
	svc.Freeze(ctx, "buyer-1")

	if _, err := svc.Release(ctx, "ord-5", "seller-1"); err != nil {
		t.Fatalf("release on frozen buyer: %v", err)
	}
}

func TestDebitRules(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "u1", 1_000, "")

	if _, err := svc.Debit(ctx, "u1", 2_000, "withdrawal"); !errors.Is(err, fault.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}

	rec, err := svc.Debit(ctx, "u1", 400, "withdrawal")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if rec.Balances.Available != 600 {
		t.Fatalf("unexpected balance after debit: %+v", rec.Balances)
	}

	svc.Limit(ctx, "u1")
	if _, err := svc.Debit(ctx, "u1", 100, "withdrawal"); !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("limited wallet must reject withdrawals, got %v", err)
	}
	// Spending is still allowed while limited.
	if _, err := svc.Authorize(ctx, "u1", 100, "ord-l", ""); err != nil {
		t.Fatalf("limited wallet must still authorize: %v", err)
	}
}

func TestConcurrentAuthorizeNoDoubleSpend(t *testing.T) {
	svc, led := newTestService()
	ctx := context.Background()
	svc.Credit(ctx, "buyer-1", 5_000, "")

	const workers = 10
	var wg sync.WaitGroup
	succeeded := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderID := fmt.Sprintf("ord-%d", i)
			if _, err := svc.Authorize(ctx, "buyer-1", 4_000, orderID, ""); err == nil {
				succeeded <- orderID
			}
		}(i)
	}
	wg.Wait()
	close(succeeded)

	var wins int
	for range succeeded {
		wins++
	}
	if wins != 1 {
		t.Fatalf("expected exactly one hold to win, got %d", wins)
	}

	b, _ := led.Balances(ctx, "buyer-1")
	if b.Available+b.Held != 5_000 {
		t.Fatalf("value created or destroyed: %+v", b)
	}
	if b.Held != 4_000 {
		t.Fatalf("expected 4000 held, got %+v", b)
	}
}
