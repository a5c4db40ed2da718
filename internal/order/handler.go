package order

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/vouchpay/vouchpay/internal/dispute"
	"github.com/vouchpay/vouchpay/internal/identity"
	"github.com/vouchpay/vouchpay/internal/middleware"
)

// Handler exposes the order lifecycle over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type placeRequest struct {
	ProductID string `json:"product_id"`
}

type evidenceRequest struct {
	Checklist []string `json:"checklist"`
	Photos    []string `json:"photos"`
	Notes     string   `json:"notes"`
}

func (r evidenceRequest) evidence() Evidence {
	return Evidence{Checklist: r.Checklist, Photos: r.Photos, Notes: r.Notes}
}

type disputeRequest struct {
	Reason string `json:"reason"`
	evidenceRequest
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

type orderResponse struct {
	ID                   string `json:"id"`
	BuyerID              string `json:"buyer_id"`
	SellerID             string `json:"seller_id"`
	ProductID            string `json:"product_id"`
	Amount               int64  `json:"amount"`
	Status               string `json:"status"`
	EscrowStatus         string `json:"escrow_status"`
	CreatedAt            string `json:"created_at"`
	ShippedAt            string `json:"shipped_at,omitempty"`
	DeliveredAt          string `json:"delivered_at,omitempty"`
	VerifiedAt           string `json:"verified_at,omitempty"`
	VerificationDeadline string `json:"verification_deadline,omitempty"`
	DisputeID            string `json:"dispute_id,omitempty"`
}

// Place creates an order for the authenticated buyer.
func (h *Handler) Place(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	var req placeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	o, err := h.service.Place(c.UserContext(), p.UserID, req.ProductID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toOrderResponse(o))
}

// Ship marks an order shipped by its seller.
func (h *Handler) Ship(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Ship)
}

// Deliver marks an order delivered by its seller.
func (h *Handler) Deliver(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Deliver)
}

func (h *Handler) lifecycle(c *fiber.Ctx, op func(ctx context.Context, orderID, actorID string) (Order, error)) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	o, err := op(c.UserContext(), utils.CopyString(c.Params("orderId")), p.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toOrderResponse(o))
}

// Verify confirms receipt with evidence and releases escrow to the seller.
func (h *Handler) Verify(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	var req evidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	o, err := h.service.Verify(c.UserContext(), utils.CopyString(c.Params("orderId")), p.UserID, req.evidence())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toOrderResponse(o))
}

// Dispute opens a dispute on a delivered order.
func (h *Handler) Dispute(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	var req disputeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	o, d, err := h.service.OpenDispute(c.UserContext(), utils.CopyString(c.Params("orderId")), p.UserID, req.Reason, req.evidence())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"order":   toOrderResponse(o),
		"dispute": toDisputeResponse(d),
	})
}

// Resolve applies an arbiter ruling to a dispute. Admin only by route guard.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	o, err := h.service.ResolveDispute(c.UserContext(), utils.CopyString(c.Params("disputeId")), dispute.Decision(req.Decision), p.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toOrderResponse(o))
}

// Get returns one order to its participants.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	o, err := h.service.Get(c.UserContext(), utils.CopyString(c.Params("orderId")))
	if err != nil {
		return err
	}
	if !participant(o, p.UserID) && p.Role != identity.RoleAdmin {
		return fiber.NewError(http.StatusForbidden, "not a participant in this order")
	}
	return c.Status(http.StatusOK).JSON(toOrderResponse(o))
}

// List returns the caller's orders, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	orders, err := h.service.List(c.UserContext(), p.UserID, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"orders": out})
}

// Transactions returns the ledger trail behind an order.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	o, txs, err := h.service.Trail(c.UserContext(), utils.CopyString(c.Params("orderId")))
	if err != nil {
		return err
	}
	if !participant(o, p.UserID) && p.Role != identity.RoleAdmin {
		return fiber.NewError(http.StatusForbidden, "not a participant in this order")
	}
	out := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		out = append(out, fiber.Map{
			"id":          tx.ID,
			"type":        string(tx.Type),
			"from":        tx.From,
			"to":          tx.To,
			"amount":      tx.Amount,
			"description": tx.Description,
			"created_at":  tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"order_id": o.ID, "transactions": out})
}

// Escrow returns the escrow account backing an order.
func (h *Handler) Escrow(c *fiber.Ctx) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	o, err := h.service.Get(c.UserContext(), utils.CopyString(c.Params("orderId")))
	if err != nil {
		return err
	}
	if !participant(o, p.UserID) && p.Role != identity.RoleAdmin {
		return fiber.NewError(http.StatusForbidden, "not a participant in this order")
	}
	acct, err := h.service.EscrowStatus(c.UserContext(), o.ID)
	if err != nil {
		return err
	}
	resp := fiber.Map{
		"id":         acct.ID,
		"order_id":   acct.OrderID,
		"amount":     acct.Amount,
		"status":     string(acct.Status),
		"created_at": acct.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if acct.ReleasedAt != nil {
		resp["released_at"] = acct.ReleasedAt.UTC().Format(time.RFC3339Nano)
	}
	if acct.RefundedAt != nil {
		resp["refunded_at"] = acct.RefundedAt.UTC().Format(time.RFC3339Nano)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func participant(o Order, userID string) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

func toOrderResponse(o Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		BuyerID:      o.BuyerID,
		SellerID:     o.SellerID,
		ProductID:    o.ProductID,
		Amount:       o.Amount,
		Status:       o.Status,
		EscrowStatus: string(o.EscrowStatus),
		CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339Nano),
		DisputeID:    o.DisputeID,
	}
	if o.ShippedAt != nil {
		resp.ShippedAt = o.ShippedAt.UTC().Format(time.RFC3339Nano)
	}
	if o.DeliveredAt != nil {
		resp.DeliveredAt = o.DeliveredAt.UTC().Format(time.RFC3339Nano)
	}
	if o.VerifiedAt != nil {
		resp.VerifiedAt = o.VerifiedAt.UTC().Format(time.RFC3339Nano)
	}
	if o.VerificationDeadline != nil {
		resp.VerificationDeadline = o.VerificationDeadline.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func toDisputeResponse(d dispute.Dispute) fiber.Map {
	return fiber.Map{
		"id":         d.ID,
		"order_id":   d.OrderID,
		"opened_by":  d.OpenedBy,
		"reason":     d.Reason,
		"status":     string(d.Status),
		"created_at": d.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
