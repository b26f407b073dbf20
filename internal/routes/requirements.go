package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/requirement"
)

// RegisterRequirementRoutes wires the authenticated requirement endpoints.
func RegisterRequirementRoutes(r fiber.Router, h *requirement.Handler) {
	r.Post("/requirements", h.Create)
	r.Get("/requirements/my", h.Mine)
}
