package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kolopay/kolopay/internal/wallet"
)

// RegisterWalletRoutes wires wallet query endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Me)
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/transactions", h.Transactions)
}
