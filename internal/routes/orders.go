package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vouchpay/vouchpay/internal/order"
)

// RegisterOrderRoutes wires the order lifecycle endpoints. Placement is
// rate limited; actor checks (buyer vs seller) live in the service.
func RegisterOrderRoutes(r fiber.Router, h *order.Handler, placementLimit fiber.Handler) {
	r.Post("/orders", placementLimit, h.Place)
	r.Get("/orders", h.List)
	r.Get("/orders/:orderId", h.Get)
	r.Get("/orders/:orderId/transactions", h.Transactions)
	r.Post("/orders/:orderId/ship", h.Ship)
	r.Post("/orders/:orderId/deliver", h.Deliver)
	r.Post("/orders/:orderId/verify", h.Verify)
	r.Post("/orders/:orderId/dispute", h.Dispute)
	r.Get("/escrow/:orderId", h.Escrow)
}
