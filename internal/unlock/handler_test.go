package unlock

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/logging"
	"github.com/tutorconnect/coin_ledger/internal/middleware"
)

func newTestApp(f fixture) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.LocalAccountID, "acc-1")
		return c.Next()
	})
	h := NewHandler(f.svc)
	app.Post("/wallet/spend", h.Spend)
	app.Get("/check-tutor-access/:tutorId", h.TutorAccess)
	return app
}

func decode(t *testing.T, app *fiber.App, method, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestSpendHandlerInsufficientIs402(t *testing.T) {
	app := newTestApp(newFixture(t, 50))
	status, body := decode(t, app, fiber.MethodPost, "/wallet/spend?coins=100&purpose=contact_tutor&target_id=tutor-1")
	if status != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", status)
	}
	if body["detail"] != "Insufficient coins. You need 100 coins but have 50." {
		t.Fatalf("unexpected detail %v", body["detail"])
	}
}

func TestSpendHandlerSuccessAndReplay(t *testing.T) {
	app := newTestApp(newFixture(t, 300))
	target := "/wallet/spend?coins=100&purpose=contact_tutor&target_id=tutor-1"

	status, body := decode(t, app, fiber.MethodPost, target)
	if status != fiber.StatusOK || body["remaining_coins"] != float64(200) || body["already_unlocked"] != false {
		t.Fatalf("unexpected first response %d %v", status, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["mobile"] != "+919800000000" {
		t.Fatalf("expected contact payload, got %v", body["data"])
	}

	status, body = decode(t, app, fiber.MethodPost, target)
	if status != fiber.StatusOK || body["remaining_coins"] != float64(200) || body["already_unlocked"] != true {
		t.Fatalf("unexpected replay response %d %v", status, body)
	}

	status, body = decode(t, app, fiber.MethodGet, "/check-tutor-access/tutor-1")
	if status != fiber.StatusOK || body["has_contact_access"] != true || body["has_message_access"] != false {
		t.Fatalf("unexpected access response %d %v", status, body)
	}
}

func TestSpendHandlerRejectsBadInput(t *testing.T) {
	app := newTestApp(newFixture(t, 300))
	tests := []string{
		"/wallet/spend?coins=abc&purpose=contact_tutor&target_id=tutor-1",
		"/wallet/spend?coins=100&purpose=nope&target_id=tutor-1",
		"/wallet/spend?coins=50&purpose=contact_tutor&target_id=tutor-1",
	}
	for _, target := range tests {
		if status, _ := decode(t, app, fiber.MethodPost, target); status != fiber.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, status)
		}
	}
}

func TestSpendHandlerUnreadableBalanceIsNot402(t *testing.T) {
	f := newFixture(t, 50)
	f.svc.ledger = balanceFailingStore{Store: f.ledger, err: errors.New("connection reset")}
	app := newTestApp(f)

	status, body := decode(t, app, fiber.MethodPost, "/wallet/spend?coins=100&purpose=contact_tutor&target_id=tutor-1")
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %v", status, body)
	}
}
