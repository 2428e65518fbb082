package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhouston2019/claimrecon/internal/database"
	"github.com/jhouston2019/claimrecon/internal/middleware"
	"github.com/jhouston2019/claimrecon/internal/models"
	"github.com/jhouston2019/claimrecon/internal/services"
)

const maxDocumentSize = 20 * 1024 * 1024

// CreateEstimate stores an estimate with its line items
func (h *Handler) CreateEstimate(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.CreateEstimateRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" {
		return Error(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Source != models.SourceContractor && req.Source != models.SourceCarrier {
		return Error(c, fiber.StatusBadRequest, "source must be 'contractor' or 'carrier'")
	}
	if len(req.Items) == 0 {
		return Error(c, fiber.StatusBadRequest, "at least one line item is required")
	}

	estimate, err := h.db.CreateEstimate(c.Context(), userID, &req)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to create estimate")
	}

	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Data:    estimate,
	})
}

// GetEstimate returns one estimate with its line items
func (h *Handler) GetEstimate(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid estimate ID")
	}

	estimate, err := h.db.GetEstimate(c.Context(), id, userID)
	if err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			return Error(c, fiber.StatusNotFound, "estimate not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get estimate")
	}

	return Success(c, estimate)
}

// ListEstimates returns the user's estimates, optionally filtered by
// source
func (h *Handler) ListEstimates(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	params := &models.EstimateListParams{
		UserID: userID,
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}

	if source := c.Query("source"); source != "" {
		s := models.EstimateSource(source)
		if s != models.SourceContractor && s != models.SourceCarrier {
			return Error(c, fiber.StatusBadRequest, "source must be 'contractor' or 'carrier'")
		}
		params.Source = &s
	}

	estimates, total, err := h.db.ListEstimates(c.Context(), params)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list estimates")
	}

	return SuccessWithMeta(c, estimates, total, params.Limit, params.Offset)
}

// DeleteEstimate removes an estimate, its line items, and its stored
// document
func (h *Handler) DeleteEstimate(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid estimate ID")
	}

	documentKey, err := h.db.DeleteEstimate(c.Context(), id, userID)
	if err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			return Error(c, fiber.StatusNotFound, "estimate not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to delete estimate")
	}

	if documentKey != nil && h.documents != nil {
		if err := h.documents.DeleteDocument(c.Context(), *documentKey); err != nil {
			log.Printf("Warning: Failed to delete document %s for estimate %d: %v", *documentKey, id, err)
		}
	}

	return Success(c, fiber.Map{"deleted": true})
}

// UploadEstimateDocument attaches a source document (PDF or scan) to an
// estimate. The document is kept as evidence only; line items are never
// derived from it here.
func (h *Handler) UploadEstimateDocument(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	if h.documents == nil {
		return Error(c, fiber.StatusServiceUnavailable, "document storage not configured")
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid estimate ID")
	}

	// Verify ownership before touching storage
	if _, err := h.db.GetEstimate(c.Context(), id, userID); err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			return Error(c, fiber.StatusNotFound, "estimate not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get estimate")
	}

	file, err := c.FormFile("document")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "document file is required")
	}

	contentType := file.Header.Get("Content-Type")
	if !isValidDocumentType(contentType) {
		return Error(c, fiber.StatusBadRequest, "invalid document type. Supported: PDF, JPEG, PNG")
	}

	if file.Size > maxDocumentSize {
		return Error(c, fiber.StatusBadRequest, "file too large. Maximum size is 20MB")
	}

	src, err := file.Open()
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}
	defer src.Close()

	key := services.DocumentKey(userID, id, file.Filename)

	uploadResult, err := h.documents.UploadDocument(c.Context(), key, src, file.Size, contentType)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to upload document")
	}

	err = h.db.SetEstimateDocument(c.Context(), id, userID, uploadResult.Bucket, key, file.Filename, contentType, file.Size)
	if err != nil {
		// Clean up storage on failure
		if deleteErr := h.documents.DeleteDocument(c.Context(), key); deleteErr != nil {
			log.Printf("Warning: Failed to clean up document %s after record update failure: %v", key, deleteErr)
		}
		return Error(c, fiber.StatusInternalServerError, "failed to record document")
	}

	return Success(c, fiber.Map{
		"bucket":       uploadResult.Bucket,
		"key":          key,
		"size":         uploadResult.Size,
		"content_type": contentType,
	})
}

// GetEstimateDocumentURL returns a time-limited download URL for an
// estimate's stored document
func (h *Handler) GetEstimateDocumentURL(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	if h.documents == nil {
		return Error(c, fiber.StatusServiceUnavailable, "document storage not configured")
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid estimate ID")
	}

	estimate, err := h.db.GetEstimate(c.Context(), id, userID)
	if err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			return Error(c, fiber.StatusNotFound, "estimate not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get estimate")
	}

	if estimate.S3Key == nil {
		return Error(c, fiber.StatusNotFound, "estimate has no stored document")
	}

	expiry := 15 * time.Minute
	if minutes := c.Query("expiry_minutes"); minutes != "" {
		if m, err := strconv.Atoi(minutes); err == nil && m > 0 && m <= 60 {
			expiry = time.Duration(m) * time.Minute
		}
	}

	url, err := h.documents.PresignedDocumentURL(c.Context(), *estimate.S3Key, expiry)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate download URL")
	}

	return Success(c, fiber.Map{
		"url":        url,
		"expires_in": int(expiry.Seconds()),
	})
}

func isValidDocumentType(contentType string) bool {
	switch contentType {
	case "application/pdf", "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}
