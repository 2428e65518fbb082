package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jhouston2019/claimrecon/internal/database"
	"github.com/jhouston2019/claimrecon/internal/middleware"
	"github.com/jhouston2019/claimrecon/internal/models"
	"github.com/jhouston2019/claimrecon/internal/services"
)

// Reconcile runs a full reconciliation over two sets of line items and
// saves the report. When the request carries no pre-matched pairs the
// deterministic matcher pairs the items first.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.ReconcileRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.ContractorItems) == 0 {
		return Error(c, fiber.StatusBadRequest, "contractor_items is required")
	}
	if len(req.CarrierItems) == 0 {
		return Error(c, fiber.StatusBadRequest, "carrier_items is required")
	}

	policy := models.PolicyData{}
	if req.Policy != nil {
		policy = *req.Policy
	}

	input := services.ReconcileInput{
		ContractorItems:      req.ContractorItems,
		CarrierItems:         req.CarrierItems,
		ContractorGrandTotal: req.ContractorGrandTotal,
		CarrierGrandTotal:    req.CarrierGrandTotal,
		Policy:               policy,
	}

	var matchStats *models.MatchStats
	if len(req.Matches) > 0 {
		input.Matches = req.Matches
	} else {
		matchSet := h.matcher.MatchLineItems(req.ContractorItems, req.CarrierItems)
		input.Matches = matchSet.Matches
		input.UnmatchedContractor = matchSet.UnmatchedContractor
		input.UnmatchedCarrier = matchSet.UnmatchedCarrier
		matchStats = &matchSet.Stats
	}

	result := h.reconciler.Reconcile(input)

	if check := h.reconciler.ValidateReconciliation(result); !check.Valid {
		log.Printf("Reconciliation self-check failed for user %d: %v", userID, check.Errors)
		return Error(c, fiber.StatusInternalServerError, "reconciliation self-check failed")
	}

	report := &models.ReconciliationReport{
		ID:                   uuid.NewString(),
		UserID:               userID,
		ContractorEstimateID: req.ContractorEstimateID,
		CarrierEstimateID:    req.CarrierEstimateID,
		Result:               result,
		Summary:              h.reconciler.Summarize(result),
		MatchStats:           matchStats,
	}

	if err := h.db.CreateReport(c.Context(), report); err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to save report")
	}

	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Data:    report,
	})
}

// ReconcileEstimates runs a reconciliation over two stored estimates
func (h *Handler) ReconcileEstimates(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req struct {
		ContractorEstimateID int                `json:"contractor_estimate_id"`
		CarrierEstimateID    int                `json:"carrier_estimate_id"`
		Policy               *models.PolicyData `json:"policy,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	contractor, err := h.db.GetEstimate(c.Context(), req.ContractorEstimateID, userID)
	if err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			return Error(c, fiber.StatusNotFound, "contractor estimate not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to load contractor estimate")
	}
	if contractor.Source != models.SourceContractor {
		return Error(c, fiber.StatusBadRequest, "contractor_estimate_id does not reference a contractor estimate")
	}

	carrier, err := h.db.GetEstimate(c.Context(), req.CarrierEstimateID, userID)
	if err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			return Error(c, fiber.StatusNotFound, "carrier estimate not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to load carrier estimate")
	}
	if carrier.Source != models.SourceCarrier {
		return Error(c, fiber.StatusBadRequest, "carrier_estimate_id does not reference a carrier estimate")
	}

	policy := models.PolicyData{}
	if req.Policy != nil {
		policy = *req.Policy
	}

	matchSet := h.matcher.MatchLineItems(contractor.Items, carrier.Items)

	result := h.reconciler.Reconcile(services.ReconcileInput{
		Matches:              matchSet.Matches,
		UnmatchedContractor:  matchSet.UnmatchedContractor,
		UnmatchedCarrier:     matchSet.UnmatchedCarrier,
		ContractorItems:      contractor.Items,
		CarrierItems:         carrier.Items,
		ContractorGrandTotal: contractor.GrandTotal,
		CarrierGrandTotal:    carrier.GrandTotal,
		Policy:               policy,
	})

	if check := h.reconciler.ValidateReconciliation(result); !check.Valid {
		log.Printf("Reconciliation self-check failed for user %d: %v", userID, check.Errors)
		return Error(c, fiber.StatusInternalServerError, "reconciliation self-check failed")
	}

	report := &models.ReconciliationReport{
		ID:                   uuid.NewString(),
		UserID:               userID,
		ContractorEstimateID: &contractor.ID,
		CarrierEstimateID:    &carrier.ID,
		Result:               result,
		Summary:              h.reconciler.Summarize(result),
		MatchStats:           &matchSet.Stats,
	}

	if err := h.db.CreateReport(c.Context(), report); err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to save report")
	}

	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Data:    report,
	})
}

// ListReports returns the user's saved reconciliation reports
// (summaries only)
func (h *Handler) ListReports(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	params := &models.ReportListParams{
		UserID: userID,
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}

	reports, total, err := h.db.ListReports(c.Context(), params)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list reports")
	}

	return SuccessWithMeta(c, reports, total, params.Limit, params.Offset)
}

// GetReport returns one saved report with its full result
func (h *Handler) GetReport(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid report ID")
	}

	report, err := h.db.GetReport(c.Context(), id, userID)
	if err != nil {
		if errors.Is(err, database.ErrReportNotFound) {
			return Error(c, fiber.StatusNotFound, "report not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get report")
	}

	return Success(c, report)
}

// DeleteReport deletes a saved report
func (h *Handler) DeleteReport(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid report ID")
	}

	if err := h.db.DeleteReport(c.Context(), id, userID); err != nil {
		if errors.Is(err, database.ErrReportNotFound) {
			return Error(c, fiber.StatusNotFound, "report not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to delete report")
	}

	return Success(c, fiber.Map{"deleted": true})
}
