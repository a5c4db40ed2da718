package ledger

import "context"

// SeedCredit is a test helper that tops up a user on any ledger backend by
// recording an external WALLET_CREDIT.
func SeedCredit(l Store, userID string, amount int64) {
	_, _ = l.Record(context.Background(), Entry{
		UserID:      userID,
		Type:        TypeWalletCredit,
		From:        "external",
		To:          userID,
		Amount:      amount,
		Description: "test top-up",
	})
}
