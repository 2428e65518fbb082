package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhouston2019/claimrecon/internal/database"
)

// AdminListUsers returns a paginated list of all users
func (h *Handler) AdminListUsers(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := h.db.ListUsers(c.Context(), limit, offset)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list users")
	}

	return SuccessWithMeta(c, users, total, limit, offset)
}

// AdminGetUser returns a user by ID with their activity counts
func (h *Handler) AdminGetUser(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	user, err := h.db.GetUserByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Error(c, fiber.StatusNotFound, "user not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get user")
	}

	activity, err := h.db.GetUserActivity(c.Context(), id)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to get user activity")
	}

	return Success(c, fiber.Map{
		"user":     user,
		"activity": activity,
	})
}

// AdminGetStats returns platform-wide counts
func (h *Handler) AdminGetStats(c *fiber.Ctx) error {
	stats, err := h.db.GetPlatformStats(c.Context())
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to get platform stats")
	}

	return Success(c, stats)
}
