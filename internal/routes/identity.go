package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kolopay/kolopay/internal/identity"
	"github.com/kolopay/kolopay/internal/wallet"
)

// RegisterIdentityRoutes wires identity endpoints. Registration auto-provisions
// the user's wallet, so every account starts with a wallet number attached.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			if errors.Is(err, identity.ErrEmailTaken) {
				return fiber.NewError(http.StatusConflict, "email already registered")
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		var walletNumber string
		if wallets != nil {
			w, werr := wallets.Create(c.UserContext(), user.ID)
			if werr != nil {
				if logger != nil {
					logger.Error("wallet provisioning failed", "user_id", user.ID, "error", werr)
				}
			} else {
				walletNumber = w.WalletNumber
			}
		}
		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("email", user.Email),
				slog.String("wallet_number", walletNumber),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":       user.ID,
			"email":         user.Email,
			"wallet_number": walletNumber,
		})
	})
}
