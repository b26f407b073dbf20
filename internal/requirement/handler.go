package requirement

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/directory"
	"github.com/tutorconnect/coin_ledger/internal/identity"
)

// Profiles resolves the poster's name and default contact details.
type Profiles interface {
	Get(ctx context.Context, id string) (identity.User, error)
}

// Handler lets students, parents and organisations post the requirements
// that tutors later unlock with view_requirement.
type Handler struct {
	dir      directory.Repository
	profiles Profiles
	logger   *slog.Logger
}

// NewHandler constructs a requirement handler.
func NewHandler(dir directory.Repository, profiles Profiles, logger *slog.Logger) *Handler {
	return &Handler{dir: dir, profiles: profiles, logger: logger}
}

type createRequest struct {
	Subject      string `json:"subject"`
	Grade        string `json:"grade"`
	Location     string `json:"location"`
	Budget       string `json:"budget"`
	Description  string `json:"description"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
}

func canPost(role string) bool {
	switch role {
	case identity.RoleStudent, identity.RoleParent, identity.RoleCoaching, identity.RoleCompany:
		return true
	}
	return false
}

// Create handles POST /requirements.
func (h *Handler) Create(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if !canPost(auth.Role(c)) {
		return fiber.NewError(http.StatusForbidden, "Only students, parents and organisations can post requirements")
	}

	var body createRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(body.Subject) == "" {
		return fiber.NewError(http.StatusBadRequest, "subject is required")
	}

	user, err := h.profiles.Get(c.UserContext(), accountID)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "User not found")
	}
	req := directory.Requirement{
		ID:           uuid.NewString(),
		StudentID:    accountID,
		StudentName:  user.Name,
		Subject:      strings.TrimSpace(body.Subject),
		Grade:        body.Grade,
		Location:     body.Location,
		Budget:       body.Budget,
		Description:  body.Description,
		ContactPhone: body.ContactPhone,
		ContactEmail: body.ContactEmail,
	}
	if req.ContactPhone == "" {
		req.ContactPhone = user.Mobile
	}
	if req.ContactEmail == "" {
		req.ContactEmail = user.Email
	}
	if err := h.dir.SaveRequirement(c.UserContext(), req); err != nil {
		return err
	}

	if h.logger != nil {
		h.logger.Info("requirement.posted", slog.String("requirement_id", req.ID), slog.String("student_id", accountID))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Requirement posted successfully", "id": req.ID})
}

// Mine handles GET /requirements/my.
func (h *Handler) Mine(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	reqs, err := h.dir.RequirementsByStudent(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(reqs)
}
