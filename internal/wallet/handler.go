package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/vouchpay/vouchpay/internal/ledger"
	"github.com/vouchpay/vouchpay/internal/middleware"
)

// Handler exposes wallet HTTP endpoints. Taxonomy errors bubble to the
// server's error handler for status mapping.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type balancesResponse struct {
	Available int64 `json:"available"`
	Held      int64 `json:"held"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id,omitempty"`
	Type        string `json:"type"`
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type snapshotResponse struct {
	UserID       string                `json:"user_id"`
	State        string                `json:"state"`
	Balances     balancesResponse      `json:"balances"`
	Transactions []transactionResponse `json:"transactions"`
}

// Me returns the caller's wallet snapshot.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	return h.snapshot(c, p.UserID)
}

// Get returns any user's wallet snapshot. Admin only by route guard.
func (h *Handler) Get(c *fiber.Ctx) error {
	return h.snapshot(c, utils.CopyString(c.Params("userId")))
}

func (h *Handler) snapshot(c *fiber.Ctx, userID string) error {
	snap, err := h.service.Snapshot(c.UserContext(), userID, 50)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(snapshotResponse{
		UserID:       snap.Wallet.UserID,
		State:        string(snap.Wallet.State),
		Balances:     balancesResponse{Available: snap.Balances.Available, Held: snap.Balances.Held},
		Transactions: toTransactionResponses(snap.Transactions),
	})
}

// Credit tops up a user's wallet from an external source.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Credit(c.UserContext(), utils.CopyString(c.Params("userId")), req.Amount, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(receiptResponse(receipt))
}

// Debit withdraws from the caller's own wallet.
func (h *Handler) Debit(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Debit(c.UserContext(), p.UserID, req.Amount, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(receiptResponse(receipt))
}

// Freeze blocks a user's wallet. Admin only by route guard.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	if err := h.service.Freeze(c.UserContext(), utils.CopyString(c.Params("userId"))); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Limit blocks withdrawals from a user's wallet while leaving purchases
// working. Admin only by route guard.
func (h *Handler) Limit(c *fiber.Ctx) error {
	if err := h.service.Limit(c.UserContext(), utils.CopyString(c.Params("userId"))); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Unfreeze reactivates a user's wallet. Admin only by route guard.
func (h *Handler) Unfreeze(c *fiber.Ctx) error {
	if err := h.service.Unfreeze(c.UserContext(), utils.CopyString(c.Params("userId"))); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func receiptResponse(r Receipt) fiber.Map {
	return fiber.Map{
		"transaction": toTransactionResponse(r.Transaction),
		"balances":    balancesResponse{Available: r.Balances.Available, Held: r.Balances.Held},
		"duplicate":   r.Duplicate,
	}
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		OrderID:     tx.OrderID,
		Type:        string(tx.Type),
		From:        tx.From,
		To:          tx.To,
		Amount:      tx.Amount,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toTransactionResponses(txs []ledger.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}
