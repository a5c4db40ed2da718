package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vouchpay/vouchpay/internal/identity"
	"github.com/vouchpay/vouchpay/internal/middleware"
	"github.com/vouchpay/vouchpay/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints. Inspection of other users'
// wallets, external credits and freeze controls are admin operations.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets/me", h.Me)
	r.Post("/wallets/me/debit", h.Debit)

	admin := middleware.RequireRole(identity.RoleAdmin)
	r.Get("/wallets/:userId", admin, h.Get)
	r.Post("/wallets/:userId/credit", admin, h.Credit)
	r.Post("/wallets/:userId/freeze", admin, h.Freeze)
	r.Post("/wallets/:userId/unfreeze", admin, h.Unfreeze)
	r.Post("/wallets/:userId/limit", admin, h.Limit)
}
