package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kolopay/kolopay/internal/funding"
)

// RegisterFundingRoutes wires gateway deposit endpoints for authenticated users.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/wallet/deposit", h.Deposit)
	r.Get("/wallet/deposit/:reference/status", h.DepositStatus)
}
