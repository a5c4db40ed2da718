// Package order drives the marketplace order lifecycle. The state machine
// decides which transitions are legal; the service performs them,
// coordinating the wallet service and escrow manager inside one per-order
// critical section so ledger, escrow account and order row move together.
package order

import (
	"fmt"
	"time"

	"github.com/vouchpay/vouchpay/internal/escrow"
	"github.com/vouchpay/vouchpay/internal/fault"
)

// Order statuses.
const (
	StatusPaid      = "PAID"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusVerified  = "VERIFIED"
	StatusDisputed  = "DISPUTED"
	StatusRefunded  = "REFUNDED"
)

// ValidTransitions maps each status to the statuses reachable from it.
// VERIFIED and REFUNDED are terminal.
var ValidTransitions = map[string][]string{
	StatusPaid:      {StatusShipped},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {StatusVerified, StatusDisputed},
	StatusDisputed:  {StatusVerified, StatusRefunded},
	StatusVerified:  {},
	StatusRefunded:  {},
}

// IsValidTransition reports whether from -> to is an allowed move.
func IsValidTransition(from, to string) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func Terminal(status string) bool {
	return len(ValidTransitions[status]) == 0 && status != ""
}

// Order is one purchase moving through the lifecycle. EscrowStatus is a
// stamped projection of the order's ledger state, updated in lockstep with
// the escrow account.
type Order struct {
	ID                   string
	BuyerID              string
	SellerID             string
	ProductID            string
	Amount               int64
	Status               string
	EscrowStatus         escrow.Status
	CreatedAt            time.Time
	ShippedAt            *time.Time
	DeliveredAt          *time.Time
	VerifiedAt           *time.Time
	VerificationDeadline *time.Time
	DisputeID            string
}

// DeadlineElapsed reports whether the verification window has closed at
// now. Orders without a deadline never elapse.
func (o Order) DeadlineElapsed(now time.Time) bool {
	return o.VerificationDeadline != nil && !now.Before(*o.VerificationDeadline)
}

// Evidence is the checklist/photo set a buyer attaches to a verify or
// dispute action. The gate is a precondition above the state machine:
// buyer-submitted verification actions require it, the deadline sweep does
// not.
type Evidence struct {
	Checklist []string
	Photos    []string
	Notes     string
}

// Validate rejects an empty evidence set.
func (e Evidence) Validate() error {
	if len(e.Checklist) == 0 && len(e.Photos) == 0 {
		return fmt.Errorf("%w: verification requires a completed checklist or photos", fault.ErrValidationFailed)
	}
	return nil
}

// Refs flattens evidence into storable references.
func (e Evidence) Refs() []string {
	refs := make([]string, 0, len(e.Checklist)+len(e.Photos))
	refs = append(refs, e.Checklist...)
	refs = append(refs, e.Photos...)
	return refs
}
