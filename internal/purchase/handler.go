package purchase

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/catalog"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
)

// Handler exposes HTTP endpoints for coin purchases.
type Handler struct {
	service *Service
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Purchase handles POST /wallet/purchase.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.InitiatePurchase(c.UserContext(), accountID, req.Package)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownPackage):
			return fiber.NewError(http.StatusBadRequest, "Invalid package")
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, "User not found")
		case errors.Is(err, ledger.ErrAccountInactive):
			return fiber.NewError(http.StatusForbidden, "account is inactive")
		default:
			return fiber.NewError(http.StatusInternalServerError, "Order creation failed: "+err.Error())
		}
	}
	if res.Mock != nil {
		return c.Status(http.StatusOK).JSON(res.Mock)
	}
	return c.Status(http.StatusOK).JSON(res.Checkout)
}

// Verify handles POST /wallet/verify-payment.
func (h *Handler) Verify(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.VerifyPurchase(c.UserContext(), VerifyInput{
		AccountID:      accountID,
		OrderID:        req.TransactionID,
		GatewayOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentVerificationFailed):
			return fiber.NewError(http.StatusBadRequest, "Invalid payment signature")
		case errors.Is(err, ledger.ErrOrderNotFound):
			return fiber.NewError(http.StatusNotFound, "Transaction not found")
		case errors.Is(err, ErrOrderNotOwned):
			return fiber.NewError(http.StatusForbidden, "Unauthorized")
		case errors.Is(err, ErrOrderClosed):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrConcurrentModification):
			return fiber.NewError(http.StatusConflict, "please retry")
		default:
			return err
		}
	}

	message := "Payment verified successfully"
	if res.Replayed {
		message = "Payment already verified"
	}
	return c.Status(http.StatusOK).JSON(VerifyResponse{
		Message:    message,
		CoinsAdded: res.CoinsAdded,
		NewBalance: res.NewBalance,
		Replayed:   res.Replayed,
	})
}

// Packages handles GET /wallet/packages.
func (h *Handler) Packages(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.Packages())
}
