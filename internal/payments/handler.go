package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/money"
	"github.com/kolopay/kolopay/internal/wallet"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	WalletNumber string          `json:"wallet_number"`
	Amount       decimal.Decimal `json:"amount"`
}

// Transfer moves funds from the authenticated user's wallet to the wallet
// identified by wallet number.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderOwnerID:         uid,
		RecipientWalletNumber: req.WalletNumber,
		Amount:                req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, money.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, ErrSelfTransfer):
			return fiber.NewError(http.StatusBadRequest, "cannot transfer to your own wallet")
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "recipient wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"reference":    out.Reference,
		"balance":      out.SenderBalance,
		"completed_at": out.CompletedAt,
	})
}
