package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhouston2019/claimrecon/internal/config"
	"github.com/jhouston2019/claimrecon/internal/middleware"
	"github.com/jhouston2019/claimrecon/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret: "unit-test-secret",
		JWTExpiry: time.Hour,
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Adjuster@Example.COM", "adjuster@example.com"},
		{"  padded@example.com  ", "padded@example.com"},
		{"already@example.com", "already@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeEmail(tt.input); got != tt.want {
			t.Errorf("normalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantOK   bool
	}{
		{"valid", "user@example.com", "longenough", true},
		{"bad email", "not-an-email", "longenough", false},
		{"short password", "user@example.com", "short", false},
		{"empty email", "", "longenough", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validateCredentials(tt.email, tt.password)
			if (msg == "") != tt.wantOK {
				t.Errorf("validateCredentials(%q, %q) = %q, wantOK %v", tt.email, tt.password, msg, tt.wantOK)
			}
		})
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h := New(nil, testConfig(), nil)
	app := fiber.New()
	app.Post("/register", h.Register)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"email":`},
		{"invalid email", `{"email":"nope","password":"longenough"}`},
		{"short password", `{"email":"user@example.com","password":"short"}`},
		{"username too short", `{"email":"user@example.com","password":"longenough","username":"ab"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/register", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != fiber.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
			}

			raw, _ := io.ReadAll(resp.Body)
			var body APIResponse
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Success || body.Error == "" {
				t.Errorf("expected error envelope, got %+v", body)
			}
		})
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	h := New(nil, testConfig(), nil)
	app := fiber.New()
	app.Post("/login", h.Login)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"","password":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
}

func TestIssueTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	h := New(nil, cfg, nil)

	user := &models.User{
		ID:    42,
		Email: "adjuster@example.com",
		Role:  models.RoleAdmin,
	}

	token, err := h.issueToken(user)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	app := fiber.New()
	app.Get("/whoami", middleware.AuthRequired(cfg), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    middleware.GetUserID(c),
			"email": middleware.GetUserEmail(c),
			"role":  middleware.GetUserRole(c),
		})
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}

	var body struct {
		ID    int         `json:"id"`
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != user.ID || body.Email != user.Email || body.Role != user.Role {
		t.Errorf("claims round-trip = %+v, want id=%d email=%s role=%s", body, user.ID, user.Email, user.Role)
	}
}

func TestAuthRequiredRejectsForgedToken(t *testing.T) {
	h := New(nil, testConfig(), nil)

	user := &models.User{ID: 7, Email: "user@example.com", Role: models.RoleUser}
	token, err := h.issueToken(user)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	// Middleware wired with a different secret must not accept the token.
	other := &config.Config{JWTSecret: "some-other-secret", JWTExpiry: time.Hour}
	app := fiber.New()
	app.Get("/whoami", middleware.AuthRequired(other), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
}
