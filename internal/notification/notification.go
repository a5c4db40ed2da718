// Package notification delivers lifecycle events to buyers and sellers.
// Delivery is best effort: callers fire notifications after the ledger and
// order row have been committed and ignore send failures beyond logging.
package notification

import (
	"context"
	"log/slog"
)

// Notification kinds.
const (
	KindEscrowHeld      = "escrow_held"
	KindOrderShipped    = "order_shipped"
	KindOrderDelivered  = "order_delivered"
	KindPaymentReleased = "payment_released"
	KindRefundIssued    = "refund_issued"
	KindDisputeOpened   = "dispute_opened"
	KindDisputeResolved = "dispute_resolved"
)

// Message is one event addressed to one user.
type Message struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
	OrderID   string `json:"order_id,omitempty"`
	Body      string `json:"body"`
}

// Notifier sends a message to its recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LoggerNotifier writes notifications to the log. Used in local runs and
// tests where no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("notification",
		slog.String("kind", msg.Kind),
		slog.String("recipient", msg.Recipient),
		slog.String("order_id", msg.OrderID),
		slog.String("body", msg.Body),
	)
	return nil
}
