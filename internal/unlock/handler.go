package unlock

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
)

// Handler exposes unlock endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an unlock handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Spend handles POST /wallet/spend?coins=&purpose=&target_id=.
func (h *Handler) Spend(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	coins, err := strconv.ParseInt(c.Query("coins"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "coins must be an integer")
	}

	in := SpendInput{AccountID: accountID, Cost: coins, Purpose: c.Query("purpose"), TargetID: c.Query("target_id")}
	res, err := h.service.Spend(c.UserContext(), in)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientCoins):
			return fiber.NewError(http.StatusPaymentRequired,
				fmt.Sprintf("Insufficient coins. You need %d coins but have %d.", coins, res.RemainingBalance))
		case errors.Is(err, ErrInvalidPurpose), errors.Is(err, ErrInvalidCost),
			errors.Is(err, ErrTargetRequired), errors.Is(err, ErrPriceMismatch):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrTargetNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, "User not found")
		case errors.Is(err, ledger.ErrAccountInactive):
			return fiber.NewError(http.StatusForbidden, "account is inactive")
		case errors.Is(err, ledger.ErrConcurrentModification):
			return fiber.NewError(http.StatusConflict, "please retry")
		default:
			return err
		}
	}

	message := "Coins spent successfully"
	if res.Replayed {
		message = "Already unlocked"
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":          message,
		"remaining_coins":  res.RemainingBalance,
		"data":             res.Payload,
		"already_unlocked": res.Replayed,
		"transaction_id":   res.EntryID,
	})
}

// TutorAccess handles GET /check-tutor-access/:tutorId.
func (h *Handler) TutorAccess(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	out, err := h.service.Access(c.UserContext(), accountID, c.Params("tutorId"))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(out)
}

// HasAccess handles GET /unlocks/:purpose/:targetId.
func (h *Handler) HasAccess(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	ok, err := h.service.HasAccess(c.UserContext(), accountID, c.Params("purpose"), c.Params("targetId"))
	if err != nil {
		if errors.Is(err, ErrInvalidPurpose) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"has_access": ok})
}

// RebuildAccess handles POST /unlocks/rebuild.
func (h *Handler) RebuildAccess(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	n, err := h.service.RebuildAccess(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"grants": n})
}

// Prices handles GET /wallet/prices.
func (h *Handler) Prices(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.Prices())
}
