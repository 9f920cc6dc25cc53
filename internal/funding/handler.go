package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kolopay/kolopay/internal/identity"
	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/money"
	"github.com/kolopay/kolopay/internal/wallet"
)

const signatureHeader = "x-paystack-signature"

// Handler exposes deposit endpoints.
type Handler struct {
	service *Service
	idRepo  identity.Repository
}

// NewHandler builds a deposit HTTP handler.
func NewHandler(service *Service, idRepo identity.Repository) *Handler {
	return &Handler{service: service, idRepo: idRepo}
}

// Deposit opens a gateway payment session for the authenticated user.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.idRepo.FindByID(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "user not found")
	}

	intent, err := h.service.InitiateDeposit(c.UserContext(), uid, req.Amount, user.Email)
	if err != nil {
		switch {
		case errors.Is(err, money.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusBadGateway, "payment gateway unavailable")
		}
	}

	return c.Status(http.StatusCreated).JSON(DepositResponse{
		Reference:        intent.Reference,
		AuthorizationURL: intent.AuthorizationURL,
		Amount:           intent.Amount,
	})
}

// Webhook receives gateway notifications. The signature is verified against
// the raw request body, so the body must not be parsed before verification.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	res, err := h.service.HandleWebhook(c.UserContext(), c.Body(), c.Get(signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			return fiber.NewError(http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, ledger.ErrTransactionNotFound):
			return fiber.NewError(http.StatusNotFound, "unknown reference")
		case errors.Is(err, ErrAmountMismatch):
			return fiber.NewError(http.StatusBadRequest, "amount mismatch")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(WebhookResponse{Accepted: res.Accepted})
}

// DepositStatus reports a deposit's settlement state without mutating it.
func (h *Handler) DepositStatus(c *fiber.Ctx) error {
	ref := c.Params("reference")
	status, err := h.service.GetDepositStatus(c.UserContext(), ref)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "unknown reference")
	}
	return c.Status(http.StatusOK).JSON(DepositStatusResponse{
		Reference: status.Reference,
		Status:    string(status.Status),
		Amount:    status.Amount,
	})
}

// Callback handles the browser redirect after gateway checkout. It reports
// the remote status for display; settlement only ever happens via webhook.
func (h *Handler) Callback(c *fiber.Ctx) error {
	ref := c.Query("reference")
	if ref == "" {
		ref = c.Query("trxref")
	}
	if ref == "" {
		return fiber.NewError(http.StatusBadRequest, "reference is required")
	}

	verified, err := h.service.VerifyWithGateway(c.UserContext(), ref)
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, "verification unavailable, check deposit status later")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference":      verified.Reference,
		"gateway_status": verified.Status,
	})
}
