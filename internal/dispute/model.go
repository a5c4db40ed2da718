// Package dispute stores dispute records for orders whose buyers
// contested delivery. Resolution is driven by the order service; this
// package owns the records and their status taxonomy.
package dispute

import "time"

// Status of a dispute.
type Status string

const (
	StatusOpen           Status = "open"
	StatusInvestigating  Status = "investigating"
	StatusResolvedBuyer  Status = "resolved_buyer"
	StatusResolvedSeller Status = "resolved_seller"
)

// Decision is an arbiter ruling.
type Decision string

const (
	// DecisionBuyer refunds the buyer.
	DecisionBuyer Decision = "buyer"
	// DecisionSeller pays the seller.
	DecisionSeller Decision = "seller"
)

// Dispute is one buyer-contested order.
type Dispute struct {
	ID         string
	OrderID    string
	OpenedBy   string
	Reason     string
	Evidence   []string
	Status     Status
	CreatedAt  time.Time
	ResolvedAt *time.Time
	ResolvedBy string
}

// Resolved reports whether an arbiter has ruled.
func (d Dispute) Resolved() bool {
	return d.Status == StatusResolvedBuyer || d.Status == StatusResolvedSeller
}
