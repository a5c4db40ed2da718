package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vouchpay/vouchpay/internal/identity"
	"github.com/vouchpay/vouchpay/internal/middleware"
	"github.com/vouchpay/vouchpay/internal/order"
)

// RegisterDisputeRoutes wires arbiter endpoints. Rulings are admin only.
func RegisterDisputeRoutes(r fiber.Router, h *order.Handler) {
	r.Post("/disputes/:disputeId/resolve", middleware.RequireRole(identity.RoleAdmin), h.Resolve)
}
