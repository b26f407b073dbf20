package server

import (
    "encoding/json"
    "io"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gofiber/fiber/v2"

    "github.com/tutorconnect/coin_ledger/internal/config"
    "github.com/tutorconnect/coin_ledger/internal/logging"
)

func newTestServer(t *testing.T) *fiber.App {
    t.Helper()
    cfg := config.Config{
        AppName:         "CoinLedger",
        AppEnv:          "test",
        Port:            "0",
        JWTSecret:       "test-secret",
        TokenTTL:        time.Hour,
        MockPayments:    true,
        PendingOrderTTL: 30 * time.Minute,
        IdempotencyTTL:  time.Minute,
    }
    srv, err := New(cfg, nil, nil, logging.Discard())
    if err != nil {
        t.Fatalf("new server: %v", err)
    }
    return srv.App()
}

func call(t *testing.T, app *fiber.App, method, target, token, body string) (int, map[string]any) {
    t.Helper()
    var r io.Reader
    if body != "" {
        r = strings.NewReader(body)
    }
    req := httptest.NewRequest(method, target, r)
    if body != "" {
        req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
    }
    if token != "" {
        req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
    }
    resp, err := app.Test(req, -1)
    if err != nil {
        t.Fatalf("%s %s: %v", method, target, err)
    }
    defer resp.Body.Close()
    var out map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        t.Fatalf("%s %s: decode: %v", method, target, err)
    }
    return resp.StatusCode, out
}

func signup(t *testing.T, app *fiber.App, email, role string) (token, id string) {
    t.Helper()
    body := `{"email":"` + email + `","password":"secret123","name":"Test","role":"` + role + `","mobile":"+919800000000"}`
    status, out := call(t, app, fiber.MethodPost, "/api/auth/signup", "", body)
    if status != fiber.StatusOK {
        t.Fatalf("signup %s: %d %v", email, status, out)
    }
    user, _ := out["user"].(map[string]any)
    token, _ = out["token"].(string)
    id, _ = user["id"].(string)
    if token == "" || id == "" {
        t.Fatalf("signup %s: missing token or id in %v", email, out)
    }
    return token, id
}

func TestCoinFlowOverHTTP(t *testing.T) {
    app := newTestServer(t)
    tutorToken, tutorID := signup(t, app, "tutor@example.com", "tutor")
    token, _ := signup(t, app, "parent@example.com", "parent")

    spend := "/api/wallet/spend?coins=100&purpose=contact_tutor&target_id=" + tutorID
    status, out := call(t, app, fiber.MethodPost, spend, token, "")
    if status != fiber.StatusPaymentRequired {
        t.Fatalf("expected 402 with no coins, got %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodPost, "/api/wallet/purchase", token, `{"package":250}`)
    if status != fiber.StatusOK || out["new_balance"] != float64(250) {
        t.Fatalf("mock purchase: %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodPost, spend, token, "")
    if status != fiber.StatusOK || out["remaining_coins"] != float64(150) {
        t.Fatalf("spend: %d %v", status, out)
    }
    data, _ := out["data"].(map[string]any)
    if data["mobile"] != "+919800000000" || data["email"] != "tutor@example.com" {
        t.Fatalf("expected tutor contact, got %v", out["data"])
    }

    status, out = call(t, app, fiber.MethodPost, spend, token, "")
    if status != fiber.StatusOK || out["already_unlocked"] != true || out["remaining_coins"] != float64(150) {
        t.Fatalf("repeat spend: %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodGet, "/api/check-tutor-access/"+tutorID, token, "")
    if status != fiber.StatusOK || out["has_contact_access"] != true || out["has_message_access"] != false {
        t.Fatalf("tutor access: %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodGet, "/api/wallet", token, "")
    if status != fiber.StatusOK || out["coins"] != float64(150) {
        t.Fatalf("wallet: %d %v", status, out)
    }
    if txs, _ := out["transactions"].([]any); len(txs) != 2 {
        t.Fatalf("expected purchase and spend in history, got %v", out["transactions"])
    }

    status, out = call(t, app, fiber.MethodPost, "/api/unlocks/rebuild", token, "")
    if status != fiber.StatusOK || out["grants"] != float64(1) {
        t.Fatalf("rebuild: %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodGet, "/api/wallet/reconcile", token, "")
    if status != fiber.StatusOK || out["consistent"] != true {
        t.Fatalf("reconcile: %d %v", status, out)
    }

    // A posted requirement is unlocked by a tutor with view_requirement.
    studentToken, studentID := signup(t, app, "student@example.com", "student")
    status, out = call(t, app, fiber.MethodPost, "/api/requirements", tutorToken, `{"subject":"Physics"}`)
    if status != fiber.StatusForbidden {
        t.Fatalf("tutor must not post requirements, got %d %v", status, out)
    }
    status, out = call(t, app, fiber.MethodPost, "/api/requirements", studentToken, `{"subject":"Physics","grade":"12","location":"Pune"}`)
    if status != fiber.StatusOK {
        t.Fatalf("post requirement: %d %v", status, out)
    }
    jobID, _ := out["id"].(string)
    if jobID == "" {
        t.Fatalf("post requirement returned no id: %v", out)
    }

    view := "/api/wallet/spend?coins=200&purpose=view_requirement&target_id=" + jobID
    status, out = call(t, app, fiber.MethodPost, view, tutorToken, "")
    if status != fiber.StatusPaymentRequired || out["detail"] != "Insufficient coins. You need 200 coins but have 0." {
        t.Fatalf("expected 402 before top-up, got %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodPost, "/api/wallet/purchase", tutorToken, `{"package":250}`)
    if status != fiber.StatusOK || out["new_balance"] != float64(250) {
        t.Fatalf("tutor top-up: %d %v", status, out)
    }

    status, out = call(t, app, fiber.MethodPost, view, tutorToken, "")
    if status != fiber.StatusOK || out["remaining_coins"] != float64(50) || out["already_unlocked"] != false {
        t.Fatalf("requirement unlock: %d %v", status, out)
    }
    data, _ = out["data"].(map[string]any)
    if data["id"] != jobID || data["student_id"] != studentID || data["contact_phone"] != "+919800000000" ||
        data["contact_email"] != "student@example.com" {
        t.Fatalf("expected requirement contact, got %v", out["data"])
    }

    status, out = call(t, app, fiber.MethodPost, view, tutorToken, "")
    if status != fiber.StatusOK || out["already_unlocked"] != true || out["remaining_coins"] != float64(50) {
        t.Fatalf("repeat requirement unlock: %d %v", status, out)
    }

    req := httptest.NewRequest(fiber.MethodGet, "/api/requirements/my", nil)
    req.Header.Set(fiber.HeaderAuthorization, "Bearer "+studentToken)
    resp, err := app.Test(req, -1)
    if err != nil {
        t.Fatalf("my requirements: %v", err)
    }
    defer resp.Body.Close()
    var mine []map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&mine); err != nil {
        t.Fatalf("decode my requirements: %v", err)
    }
    if len(mine) != 1 || mine[0]["id"] != jobID {
        t.Fatalf("unexpected my requirements %v", mine)
    }
}

func TestProtectedRoutesRequireToken(t *testing.T) {
    app := newTestServer(t)
    token, _ := signup(t, app, "student@example.com", "student")

    tests := []struct {
        name   string
        token  string
        status int
        detail string
    }{
        {"missing", "", fiber.StatusUnauthorized, "Not authenticated"},
        {"garbage", "not-a-jwt", fiber.StatusUnauthorized, "Invalid token"},
        {"valid", token, fiber.StatusOK, ""},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            status, out := call(t, app, fiber.MethodGet, "/api/me", tt.token, "")
            if status != tt.status {
                t.Fatalf("expected %d, got %d %v", tt.status, status, out)
            }
            if tt.detail != "" && out["detail"] != tt.detail {
                t.Fatalf("expected detail %q, got %v", tt.detail, out["detail"])
            }
        })
    }

    status, _ := call(t, app, fiber.MethodPost, "/api/auth/logout", token, "")
    if status != fiber.StatusOK {
        t.Fatalf("logout: %d", status)
    }
    status, out := call(t, app, fiber.MethodGet, "/api/me", token, "")
    if status != fiber.StatusUnauthorized || out["detail"] != "Invalid token" {
        t.Fatalf("expected revoked token to be rejected, got %d %v", status, out)
    }
}

func TestPublicCatalogRoutes(t *testing.T) {
    app := newTestServer(t)

    status, out := call(t, app, fiber.MethodGet, "/api/wallet/prices", "", "")
    if status != fiber.StatusOK || out["view_requirement"] != float64(200) || out["contact_tutor"] != float64(100) {
        t.Fatalf("prices: %d %v", status, out)
    }

    req := httptest.NewRequest(fiber.MethodGet, "/api/wallet/packages", nil)
    resp, err := app.Test(req, -1)
    if err != nil {
        t.Fatalf("packages: %v", err)
    }
    defer resp.Body.Close()
    var pkgs []map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&pkgs); err != nil {
        t.Fatalf("decode packages: %v", err)
    }
    if len(pkgs) != 9 || pkgs[0]["coins"] != float64(50) {
        t.Fatalf("unexpected packages %v", pkgs)
    }
}
