package handlers

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhouston2019/claimrecon/internal/database"
	"github.com/jhouston2019/claimrecon/internal/middleware"
	"github.com/jhouston2019/claimrecon/internal/models"
)

const (
	minPasswordLen = 8
	minUsernameLen = 3
	maxUsernameLen = 50
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// normalizeEmail lowercases and trims an address so lookups and the
// unique index agree on a single canonical form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateCredentials returns an empty string when the email and
// password are acceptable for a new account, otherwise the message
// to send back to the client.
func validateCredentials(email, password string) string {
	if !emailPattern.MatchString(email) {
		return "a valid email address is required"
	}
	if len(password) < minPasswordLen {
		return "password must be at least 8 characters long"
	}
	return ""
}

// Register creates an account and signs the caller in immediately.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	req.Email = normalizeEmail(req.Email)
	if msg := validateCredentials(req.Email, req.Password); msg != "" {
		return Error(c, fiber.StatusBadRequest, msg)
	}
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if len(trimmed) < minUsernameLen || len(trimmed) > maxUsernameLen {
			return Error(c, fiber.StatusBadRequest, "username must be 3-50 characters")
		}
		req.Username = &trimmed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "could not hash password")
	}

	user, err := h.db.CreateUser(c.Context(), req.Email, string(hash), req.Username)
	switch {
	case errors.Is(err, database.ErrEmailExists):
		return Error(c, fiber.StatusConflict, "an account with that email already exists")
	case errors.Is(err, database.ErrUsernameExists):
		return Error(c, fiber.StatusConflict, "that username is taken")
	case err != nil:
		return Error(c, fiber.StatusInternalServerError, "could not create account")
	}

	token, err := h.issueToken(user)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "could not issue token")
	}

	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Login checks credentials and returns a fresh token. Lookup failures
// and password mismatches produce the same response so the endpoint
// does not leak which addresses are registered.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	user, err := h.db.GetUserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Error(c, fiber.StatusUnauthorized, "incorrect email or password")
		}
		return Error(c, fiber.StatusInternalServerError, "sign-in failed")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return Error(c, fiber.StatusUnauthorized, "incorrect email or password")
	}

	// Best effort; a failed timestamp update should not block sign-in.
	h.db.UpdateUserLastLogin(c.Context(), user.ID)

	token, err := h.issueToken(user)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "could not issue token")
	}

	return c.JSON(models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// GetCurrentUser returns the profile behind the presented token.
func (h *Handler) GetCurrentUser(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "not signed in")
	}

	user, err := h.db.GetUserByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Error(c, fiber.StatusNotFound, "account no longer exists")
		}
		return Error(c, fiber.StatusInternalServerError, "could not load profile")
	}

	return Success(c, user)
}

// RefreshToken exchanges a valid token for one with a new expiry.
// Role changes made since the old token was issued take effect here
// because the claims are rebuilt from the database row.
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "not signed in")
	}

	user, err := h.db.GetUserByID(c.Context(), userID)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, "not signed in")
	}

	token, err := h.issueToken(user)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "could not issue token")
	}

	return c.JSON(fiber.Map{"token": token})
}

// issueToken signs an HS256 token carrying the claims AuthRequired
// expects.
func (h *Handler) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &middleware.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.JWTExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
}
