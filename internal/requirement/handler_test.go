package requirement

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/auth"
	"github.com/tutorconnect/coin_ledger/internal/directory"
	"github.com/tutorconnect/coin_ledger/internal/identity"
	"github.com/tutorconnect/coin_ledger/internal/logging"
	"github.com/tutorconnect/coin_ledger/internal/middleware"
)

type stubProfiles map[string]identity.User

func (s stubProfiles) Get(_ context.Context, id string) (identity.User, error) {
	u, ok := s[id]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	return u, nil
}

func newTestApp(dir directory.Repository, accountID, role string) *fiber.App {
	profiles := stubProfiles{
		"stu-1": {ID: "stu-1", Name: "Asha", Email: "asha@example.com", Mobile: "+919800000001", Role: identity.RoleStudent},
	}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.LocalAccountID, accountID)
		c.Locals(auth.LocalRole, role)
		return c.Next()
	})
	h := NewHandler(dir, profiles, logging.Discard())
	app.Post("/requirements", h.Create)
	app.Get("/requirements/my", h.Mine)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/requirements", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestCreateRoles(t *testing.T) {
	tests := []struct {
		role   string
		status int
	}{
		{identity.RoleStudent, fiber.StatusOK},
		{identity.RoleParent, fiber.StatusOK},
		{identity.RoleCoaching, fiber.StatusOK},
		{identity.RoleCompany, fiber.StatusOK},
		{identity.RoleTutor, fiber.StatusForbidden},
		{"", fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			app := newTestApp(directory.NewMemoryRepository(), "stu-1", tt.role)
			status, out := post(t, app, `{"subject":"Physics"}`)
			if status != tt.status {
				t.Fatalf("expected %d, got %d %v", tt.status, status, out)
			}
		})
	}
}

func TestCreateStoresRequirementWithProfileContact(t *testing.T) {
	dir := directory.NewMemoryRepository()
	app := newTestApp(dir, "stu-1", identity.RoleStudent)

	status, out := post(t, app, `{"subject":" Maths ","grade":"10","location":"Pune","budget":"500/hr"}`)
	if status != fiber.StatusOK || out["message"] != "Requirement posted successfully" {
		t.Fatalf("create: %d %v", status, out)
	}
	id, _ := out["id"].(string)
	req, err := dir.Requirement(context.Background(), id)
	if err != nil {
		t.Fatalf("requirement %q not stored: %v", id, err)
	}
	if req.StudentID != "stu-1" || req.StudentName != "Asha" || req.Subject != "Maths" {
		t.Fatalf("unexpected requirement %+v", req)
	}
	if req.ContactPhone != "+919800000001" || req.ContactEmail != "asha@example.com" {
		t.Fatalf("expected profile contact, got %q %q", req.ContactPhone, req.ContactEmail)
	}
}

func TestCreateRejectsMissingSubject(t *testing.T) {
	app := newTestApp(directory.NewMemoryRepository(), "stu-1", identity.RoleStudent)
	status, out := post(t, app, `{"grade":"10"}`)
	if status != fiber.StatusBadRequest || out["detail"] != "subject is required" {
		t.Fatalf("expected 400, got %d %v", status, out)
	}
}

func TestMineListsOnlyOwnRequirements(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryRepository()
	dir.SaveRequirement(ctx, directory.Requirement{ID: "job-1", StudentID: "stu-1", Subject: "Maths"})
	dir.SaveRequirement(ctx, directory.Requirement{ID: "job-2", StudentID: "stu-2", Subject: "Physics"})
	app := newTestApp(dir, "stu-1", identity.RoleStudent)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/requirements/my", nil))
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	defer resp.Body.Close()
	var reqs []directory.Requirement
	if err := json.NewDecoder(resp.Body).Decode(&reqs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK || len(reqs) != 1 || reqs[0].ID != "job-1" {
		t.Fatalf("unexpected listing %d %+v", resp.StatusCode, reqs)
	}
}
