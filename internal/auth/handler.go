package auth

import (
    "context"
    "errors"
    "log/slog"
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/tutorconnect/coin_ledger/internal/directory"
    "github.com/tutorconnect/coin_ledger/internal/identity"
)

// Fiber locals set by the JWT middleware.
const (
    LocalAccountID = "account_id"
    LocalRole      = "role"
)

// AccountID returns the authenticated account id set by the JWT middleware.
func AccountID(c *fiber.Ctx) string {
    id, _ := c.Locals(LocalAccountID).(string)
    return id
}

// Role returns the authenticated caller's marketplace role.
func Role(c *fiber.Ctx) string {
    role, _ := c.Locals(LocalRole).(string)
    return role
}

// BalanceReader reads the coin balance shown next to the profile.
type BalanceReader interface {
    Balance(ctx context.Context, accountID string) (int64, error)
}

// TutorDirectory receives the contact details of newly registered tutors.
type TutorDirectory interface {
    SaveTutor(ctx context.Context, contact directory.TutorContact) error
}

// Handler exposes signup, login, logout and profile endpoints.
type Handler struct {
    ids    *identity.Service
    svc    *Service
    coins  BalanceReader
    tutors TutorDirectory
    logger *slog.Logger
}

func NewHandler(ids *identity.Service, svc *Service, coins BalanceReader, tutors TutorDirectory, logger *slog.Logger) *Handler {
    return &Handler{ids: ids, svc: svc, coins: coins, tutors: tutors, logger: logger}
}

type signupRequest struct {
    Email    string `json:"email"`
    Password string `json:"password"`
    Name     string `json:"name"`
    Role     string `json:"role"`
    Mobile   string `json:"mobile"`
}

type loginRequest struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type userView struct {
    ID    string `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
    Name  string `json:"name"`
    Coins int64  `json:"coins"`
}

// Signup registers a user, opens the coin account and returns a token.
func (h *Handler) Signup(c *fiber.Ctx) error {
    var req signupRequest
    if err := c.BodyParser(&req); err != nil {
        return fiber.NewError(http.StatusBadRequest, err.Error())
    }
    user, err := h.ids.Register(c.UserContext(), identity.Signup{
        Email: req.Email, Password: req.Password, Name: req.Name, Role: req.Role, Mobile: req.Mobile,
    })
    switch {
    case errors.Is(err, identity.ErrUserExists):
        return fiber.NewError(http.StatusBadRequest, "Email already registered")
    case errors.Is(err, identity.ErrInvalidSignup), errors.Is(err, identity.ErrInvalidRole):
        return fiber.NewError(http.StatusBadRequest, err.Error())
    case err != nil:
        return err
    }

    if user.Role == identity.RoleTutor && h.tutors != nil {
        contact := directory.TutorContact{TutorID: user.ID, Name: user.Name, Mobile: user.Mobile, Email: user.Email}
        if err := h.tutors.SaveTutor(c.UserContext(), contact); err != nil && h.logger != nil {
            h.logger.Warn("tutor contact not saved", slog.String("user_id", user.ID), slog.Any("error", err))
        }
    }

    token, err := h.svc.Issue(user)
    if err != nil {
        return err
    }
    if h.logger != nil {
        h.logger.Info("auth.signup completed", slog.String("user_id", user.ID), slog.String("role", user.Role))
    }
    return c.Status(http.StatusOK).JSON(fiber.Map{
        "message": "Signup successful",
        "token":   token.AccessToken,
        "user":    userView{ID: user.ID, Email: user.Email, Role: user.Role, Name: user.Name},
    })
}

// Login validates credentials and returns a token.
func (h *Handler) Login(c *fiber.Ctx) error {
    var req loginRequest
    if err := c.BodyParser(&req); err != nil {
        return fiber.NewError(http.StatusBadRequest, err.Error())
    }
    user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
    if err != nil {
        if errors.Is(err, identity.ErrInvalidCredentials) {
            return fiber.NewError(http.StatusUnauthorized, "Invalid credentials")
        }
        return err
    }
    token, err := h.svc.Issue(user)
    if err != nil {
        return err
    }
    return c.Status(http.StatusOK).JSON(fiber.Map{
        "message": "Login successful",
        "token":   token.AccessToken,
        "user":    h.view(c.UserContext(), user),
    })
}

// Logout invalidates the caller's outstanding tokens.
func (h *Handler) Logout(c *fiber.Ctx) error {
    uid := AccountID(c)
    if uid == "" {
        return fiber.NewError(http.StatusUnauthorized, "unauthorized")
    }
    if err := h.svc.Logout(c.UserContext(), uid); err != nil {
        return err
    }
    return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out"})
}

// Me returns the authenticated user's profile and coin balance.
func (h *Handler) Me(c *fiber.Ctx) error {
    uid := AccountID(c)
    if uid == "" {
        return fiber.NewError(http.StatusUnauthorized, "unauthorized")
    }
    user, err := h.ids.Get(c.UserContext(), uid)
    if err != nil {
        return fiber.NewError(http.StatusUnauthorized, "User not found")
    }
    return c.JSON(fiber.Map{
        "id":         user.ID,
        "email":      user.Email,
        "role":       user.Role,
        "name":       user.Name,
        "mobile":     user.Mobile,
        "coins":      h.view(c.UserContext(), user).Coins,
        "created_at": user.CreatedAt,
        "last_login": user.LastLogin,
    })
}

func (h *Handler) view(ctx context.Context, user identity.User) userView {
    v := userView{ID: user.ID, Email: user.Email, Role: user.Role, Name: user.Name}
    if h.coins != nil {
        if coins, err := h.coins.Balance(ctx, user.ID); err == nil {
            v.Coins = coins
        }
    }
    return v
}
