package middleware

import (
    "errors"
    "net/http"
    "strings"

    "github.com/gofiber/fiber/v2"

    "github.com/tutorconnect/coin_ledger/internal/auth"
)

// JWTAuth returns a middleware that validates bearer tokens and stores the
// caller's account id in the request locals.
func JWTAuth(svc *auth.Service) fiber.Handler {
    return func(c *fiber.Ctx) error {
        authz := c.Get(fiber.HeaderAuthorization)
        if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
            return fiber.NewError(http.StatusUnauthorized, "Not authenticated")
        }
        tokenStr := strings.TrimSpace(authz[len("Bearer "):])
        user, err := svc.Verify(c.UserContext(), tokenStr)
        switch {
        case errors.Is(err, auth.ErrTokenExpired):
            return fiber.NewError(http.StatusUnauthorized, "Token expired")
        case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
            return fiber.NewError(http.StatusUnauthorized, "Invalid token")
        case err != nil:
            return fiber.NewError(http.StatusUnauthorized, "User not found")
        }

        c.Locals(auth.LocalAccountID, user.ID)
        c.Locals(auth.LocalRole, user.Role)
        return c.Next()
    }
}
