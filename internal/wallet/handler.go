package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get returns the caller's balance and recent transactions.
func (h *Handler) Get(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.Wallet(c.UserContext(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(w)
}

// Reconcile replays the caller's ledger and reports any drift.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	rec, err := h.service.Reconcile(c.UserContext(), accountID)
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(fiber.Map{"consistent": true, "reconciliation": rec})
	case errors.Is(err, ErrBalanceDrift):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"consistent": false, "reconciliation": rec})
	case errors.Is(err, ledger.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, "User not found")
	default:
		return err
	}
}
