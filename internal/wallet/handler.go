package wallet

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kolopay/kolopay/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the authenticated user's wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":   balance,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Me returns the authenticated user's wallet details with its balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.GetByOwner(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":            w.ID,
		"wallet_number": w.WalletNumber,
		"balance":       balance,
		"created_at":    w.CreatedAt,
	})
}

type transactionResponse struct {
	ID                   string            `json:"id"`
	Type                 string            `json:"type"`
	Amount               string            `json:"amount"`
	Status               string            `json:"status"`
	Reference            string            `json:"reference"`
	CounterpartyWalletID string            `json:"counterparty_wallet_id,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// Transactions lists the authenticated user's wallet history, newest first.
// Supports type, status, from, to, limit, and offset query parameters.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	filter := ledger.Filter{
		Type:   ledger.TransactionType(c.Query("type")),
		Status: ledger.TransactionStatus(c.Query("status")),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "from must be RFC3339")
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "to must be RFC3339")
		}
		filter.To = t
	}

	page := ledger.Page{}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "limit must be an integer")
		}
		page.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "offset must be an integer")
		}
		page.Offset = n
	}

	txns, total, err := h.service.Transactions(c.UserContext(), uid, filter, page)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}

	items := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		items = append(items, transactionResponse{
			ID:                   txn.ID,
			Type:                 string(txn.Type),
			Amount:               txn.Amount.String(),
			Status:               string(txn.Status),
			Reference:            txn.Reference,
			CounterpartyWalletID: txn.CounterpartyWalletID,
			Metadata:             txn.Metadata,
			CreatedAt:            txn.CreatedAt,
		})
	}

	normalized := page.Normalize()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": items,
		"total":        total,
		"limit":        normalized.Limit,
		"offset":       normalized.Offset,
	})
}
