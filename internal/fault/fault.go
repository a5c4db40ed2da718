// Package fault defines the business error taxonomy shared by the wallet,
// escrow, order and dispute services. Every declined operation surfaces as
// one of these sentinels so handlers can map outcomes to stable codes
// without string matching.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a declined business operation. It carries a stable machine code
// that survives wrapping.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any error in the chain carrying the same code, so wrapped
// sentinels still compare with errors.Is.
func (e *Error) Is(target error) bool {
	var fe *Error
	if errors.As(target, &fe) {
		return fe.Code == e.Code
	}
	return false
}

var (
	ErrInsufficientFunds  = &Error{Code: "insufficient_funds", Message: "available balance is lower than the requested amount"}
	ErrWalletFrozen       = &Error{Code: "wallet_frozen", Message: "wallet is frozen"}
	ErrNoEscrowFound      = &Error{Code: "no_escrow_found", Message: "no escrow hold exists for this order"}
	ErrInsufficientEscrow = &Error{Code: "insufficient_escrow", Message: "held balance is lower than the escrow amount"}
	ErrDuplicateEscrow    = &Error{Code: "duplicate_escrow", Message: "an escrow account already exists for this order"}
	ErrAlreadyResolved    = &Error{Code: "already_resolved", Message: "escrow for this order was already released or refunded"}
	ErrInvalidTransition  = &Error{Code: "invalid_transition", Message: "the requested status transition is not allowed"}
	ErrOrderNotFound      = &Error{Code: "order_not_found", Message: "order does not exist"}
	ErrDisputeNotFound    = &Error{Code: "dispute_not_found", Message: "dispute does not exist"}
	ErrValidationFailed   = &Error{Code: "validation_failed", Message: "required evidence is missing"}
	ErrWalletNotFound     = &Error{Code: "wallet_not_found", Message: "wallet does not exist"}
	ErrForbidden          = &Error{Code: "forbidden", Message: "actor is not allowed to perform this action"}

	// ErrStoreUnavailable marks infrastructure failures. Callers must never
	// read it as a business decline: no assumption about moved funds holds.
	ErrStoreUnavailable = &Error{Code: "store_unavailable", Message: "durable store unavailable"}
)

// Store wraps an infrastructure error as StoreUnavailable, preserving the
// cause for logs.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Code extracts the stable code from an error chain, or "internal" when the
// error is not part of the taxonomy.
func Code(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return "internal"
}

// HTTPStatus maps a taxonomy error to the status the API surfaces.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrWalletFrozen), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrNoEscrowFound),
		errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrDisputeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEscrow), errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInsufficientEscrow):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
