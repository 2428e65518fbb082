package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/jhouston2019/claimrecon/internal/models"
)

// Matched pairs whose totals agree within this tolerance produce no
// discrepancy at all.
const totalMatchTolerance = 0.01

// Thresholds separating quantity-driven from price-driven discrepancies
const (
	quantityDeltaThreshold = 0.01
	priceDeltaThreshold    = 0.50
)

// ReconcileInput carries everything one reconciliation run needs. All
// three analyses (line deltas, O&P, depreciation) run independently
// over the same inputs and are combined only in the result.
type ReconcileInput struct {
	Matches             []models.MatchedPair
	UnmatchedContractor []models.LineItem
	UnmatchedCarrier    []models.LineItem

	// Full item lists, subtotals included, for O&P and depreciation
	// detection
	ContractorItems []models.LineItem
	CarrierItems    []models.LineItem

	ContractorGrandTotal float64
	CarrierGrandTotal    float64

	Policy models.PolicyData
}

// EstimateReconciler combines unit-normalized line deltas, O&P gap
// analysis, and depreciation validation into one settlement-gap report.
// All math is deterministic; nothing here touches I/O.
type EstimateReconciler struct {
	normalizer   *UnitNormalizer
	opDetector   *OPDetector
	depValidator *DepreciationValidator
}

// NewEstimateReconciler creates a reconciler over the default
// normalizer, detector, and validator
func NewEstimateReconciler() *EstimateReconciler {
	return &EstimateReconciler{
		normalizer:   NewUnitNormalizer(),
		opDetector:   NewOPDetector(),
		depValidator: NewDepreciationValidator(),
	}
}

// Reconcile produces the full settlement-gap report for one pair of
// estimates
func (r *EstimateReconciler) Reconcile(input ReconcileInput) models.ReconciliationResult {
	var discrepancies []models.Discrepancy
	var warnings []models.UnitConversionWarning

	for _, match := range input.Matches {
		disc := r.pairDiscrepancy(match)
		if disc == nil {
			continue
		}
		discrepancies = append(discrepancies, *disc)

		if disc.ConversionApplied {
			warnings = append(warnings, models.UnitConversionWarning{
				Line:             match.Contractor.Description,
				FromUnit:         disc.CarrierUnitOriginal,
				ToUnit:           disc.ContractorUnitOriginal,
				ConversionFactor: disc.ConversionFactor,
			})
		}
	}

	for _, item := range input.UnmatchedContractor {
		discrepancies = append(discrepancies, missingItemDiscrepancy(item))
	}
	for _, item := range input.UnmatchedCarrier {
		discrepancies = append(discrepancies, extraItemDiscrepancy(item))
	}

	totals := calculateTotals(discrepancies)
	breakdown := calculateCategoryBreakdown(discrepancies)

	contractorOP := r.opDetector.DetectOP(input.ContractorItems)
	carrierOP := r.opDetector.DetectOP(input.CarrierItems)
	opGap := r.opDetector.CalculateOPGap(contractorOP, carrierOP, totals.ContractorTotal, totals.CarrierTotal)

	contractorDep := r.depValidator.DetectDepreciation(input.ContractorItems, input.ContractorGrandTotal)
	carrierDep := r.depValidator.DetectDepreciation(input.CarrierItems, input.CarrierGrandTotal)
	validation := r.depValidator.ValidateDepreciation(carrierDep, input.Policy)
	strategy := r.depValidator.RecoveryStrategy(validation)

	return models.ReconciliationResult{
		Discrepancies:     discrepancies,
		Totals:            totals,
		CategoryBreakdown: breakdown,
		OPAnalysis:        opGap,
		Depreciation: models.DepreciationAnalysis{
			Contractor: contractorDep,
			Carrier:    carrierDep,
			Validation: validation,
			Strategy:   strategy,
		},
		UnitConversionWarnings: warnings,
		Stats: calculateStats(discrepancies, len(warnings),
			len(input.Matches)+len(input.UnmatchedContractor)+len(input.UnmatchedCarrier)),
	}
}

// pairDiscrepancy compares one matched pair with unit normalization.
// Returns nil when the totals agree within tolerance.
func (r *EstimateReconciler) pairDiscrepancy(match models.MatchedPair) *models.Discrepancy {
	contractor, carrier := match.Contractor, match.Carrier
	delta := r.normalizer.CalculateNormalizedDelta(contractor, carrier)

	cLine, kLine := contractor.LineNumber, carrier.LineNumber

	if !delta.Compatible {
		return &models.Discrepancy{
			Type:                 models.DiscrepancyUnitIncompatible,
			Description:          contractor.Description,
			Category:             contractor.Category,
			ContractorLineNumber: &cLine,
			CarrierLineNumber:    &kLine,

			ContractorUnitOriginal:     contractor.Unit,
			CarrierUnitOriginal:        carrier.Unit,
			ContractorQuantityOriginal: contractor.Quantity,
			CarrierQuantityOriginal:    carrier.Quantity,

			ContractorQuantity:  contractor.Quantity,
			CarrierQuantity:     carrier.Quantity,
			ContractorUnitPrice: contractor.UnitPrice,
			CarrierUnitPrice:    carrier.UnitPrice,
			ContractorTotal:     contractor.Total,
			CarrierTotal:        carrier.Total,

			DifferenceAmount: round2(contractor.Total - carrier.Total),

			Notes:           fmt.Sprintf("UNIT INCOMPATIBILITY: Cannot compare %s with %s", contractor.Unit, carrier.Unit),
			Error:           delta.Error,
			MatchMethod:     match.MatchMethod,
			MatchConfidence: match.MatchConfidence,
		}
	}

	if math.Abs(delta.TotalDelta) < totalMatchTolerance {
		return nil
	}

	discType := classifyDiscrepancy(contractor, carrier, delta)

	return &models.Discrepancy{
		Type:                 discType,
		Description:          contractor.Description,
		Category:             contractor.Category,
		ContractorLineNumber: &cLine,
		CarrierLineNumber:    &kLine,

		ContractorUnitOriginal:     delta.ContractorUnitOriginal,
		CarrierUnitOriginal:        delta.CarrierUnitOriginal,
		ContractorQuantityOriginal: delta.ContractorQuantityOriginal,
		CarrierQuantityOriginal:    delta.CarrierQuantityOriginal,

		StandardUnit:        delta.StandardUnit,
		ContractorQuantity:  delta.ContractorQuantity,
		CarrierQuantity:     delta.CarrierQuantity,
		ContractorUnitPrice: delta.ContractorUnitPrice,
		CarrierUnitPrice:    delta.CarrierUnitPrice,
		ContractorTotal:     delta.ContractorTotal,
		CarrierTotal:        delta.CarrierTotal,

		DifferenceAmount:     delta.TotalDelta,
		QuantityDelta:        delta.QuantityDelta,
		UnitPriceDelta:       delta.UnitPriceDelta,
		PercentageDifference: delta.TotalDiffPercent,

		ConversionApplied: delta.ConversionApplied,
		ConversionFactor:  delta.ConversionFactor,

		Notes:           discrepancyNotes(contractor, carrier, discType, delta),
		MatchMethod:     match.MatchMethod,
		MatchConfidence: match.MatchConfidence,
	}
}

// classifyDiscrepancy decides what kind of gap a matched pair shows,
// using normalized quantities and prices
func classifyDiscrepancy(contractor, carrier models.LineItem, delta models.NormalizedDelta) models.DiscrepancyType {
	qtyDiff := math.Abs(delta.ContractorQuantity - delta.CarrierQuantity)
	priceDiff := math.Abs(delta.ContractorUnitPrice - delta.CarrierUnitPrice)

	switch {
	case qtyDiff > quantityDeltaThreshold && priceDiff < priceDeltaThreshold:
		return models.DiscrepancyQuantity
	case priceDiff > priceDeltaThreshold && qtyDiff < quantityDeltaThreshold:
		return models.DiscrepancyPricing
	case qtyDiff > quantityDeltaThreshold && priceDiff > priceDeltaThreshold:
		return models.DiscrepancyScopeOmission
	case NormalizeDescription(contractor.Description) != NormalizeDescription(carrier.Description):
		return models.DiscrepancyMaterialDifference
	default:
		return models.DiscrepancyOther
	}
}

// discrepancyNotes renders the human-readable explanation for one
// discrepancy, including the conversion applied if any
func discrepancyNotes(contractor, carrier models.LineItem, discType models.DiscrepancyType, delta models.NormalizedDelta) string {
	var note string
	switch discType {
	case models.DiscrepancyQuantity:
		note = fmt.Sprintf("Quantity mismatch: Contractor has %v %s, Carrier has %v %s",
			delta.ContractorQuantity, delta.StandardUnit, delta.CarrierQuantity, delta.StandardUnit)
	case models.DiscrepancyPricing:
		note = fmt.Sprintf("Unit price mismatch: Contractor $%.2f/%s, Carrier $%.2f/%s",
			delta.ContractorUnitPrice, delta.StandardUnit, delta.CarrierUnitPrice, delta.StandardUnit)
	case models.DiscrepancyScopeOmission:
		note = "Both quantity and pricing differ significantly"
	case models.DiscrepancyMaterialDifference:
		note = fmt.Sprintf("Material or specification difference: %q vs %q", contractor.Description, carrier.Description)
	default:
		note = "Discrepancy detected between contractor and carrier estimates"
	}

	if delta.ConversionApplied {
		note += fmt.Sprintf(" [Unit conversion applied: %s -> %s, factor: %v]",
			delta.CarrierUnitOriginal, delta.ContractorUnitOriginal, delta.ConversionFactor)
	}
	return note
}

// missingItemDiscrepancy records a contractor item absent from the
// carrier estimate
func missingItemDiscrepancy(item models.LineItem) models.Discrepancy {
	line := item.LineNumber
	return models.Discrepancy{
		Type:                 models.DiscrepancyMissingItem,
		Description:          item.Description,
		Category:             item.Category,
		ContractorLineNumber: &line,

		ContractorQuantity:  item.Quantity,
		ContractorUnitPrice: item.UnitPrice,
		ContractorTotal:     item.Total,

		DifferenceAmount:     item.Total,
		QuantityDelta:        item.Quantity,
		UnitPriceDelta:       item.UnitPrice,
		PercentageDifference: 100,

		Notes: "Item present in contractor estimate but missing from carrier estimate",
	}
}

// extraItemDiscrepancy records a carrier item absent from the
// contractor estimate
func extraItemDiscrepancy(item models.LineItem) models.Discrepancy {
	line := item.LineNumber
	return models.Discrepancy{
		Type:              models.DiscrepancyExtraItem,
		Description:       item.Description,
		Category:          item.Category,
		CarrierLineNumber: &line,

		CarrierQuantity:  item.Quantity,
		CarrierUnitPrice: item.UnitPrice,
		CarrierTotal:     item.Total,

		DifferenceAmount:     -item.Total,
		QuantityDelta:        -item.Quantity,
		UnitPriceDelta:       -item.UnitPrice,
		PercentageDifference: -100,

		Notes: "Item present in carrier estimate but missing from contractor estimate",
	}
}

// calculateTotals sums the discrepancies deterministically.
// Underpayment collects positive differences (contractor above
// carrier), overpayment the magnitudes of negative ones.
func calculateTotals(discrepancies []models.Discrepancy) models.ReconciliationTotals {
	var contractorTotal, carrierTotal, totalDiscrepancy, underpayment, overpayment float64

	for _, disc := range discrepancies {
		contractorTotal += disc.ContractorTotal
		carrierTotal += disc.CarrierTotal
		totalDiscrepancy += math.Abs(disc.DifferenceAmount)

		if disc.DifferenceAmount > 0 {
			underpayment += disc.DifferenceAmount
		} else if disc.DifferenceAmount < 0 {
			overpayment += math.Abs(disc.DifferenceAmount)
		}
	}

	return models.ReconciliationTotals{
		ContractorTotal:        round2(contractorTotal),
		CarrierTotal:           round2(carrierTotal),
		TotalDiscrepancyAmount: round2(totalDiscrepancy),
		UnderpaymentAmount:     round2(underpayment),
		OverpaymentAmount:      round2(overpayment),
		NetDifference:          round2(contractorTotal - carrierTotal),
	}
}

// calculateCategoryBreakdown aggregates discrepancies per category,
// sorted by underpayment (highest first)
func calculateCategoryBreakdown(discrepancies []models.Discrepancy) []models.CategoryBreakdownEntry {
	byCategory := make(map[string]*models.CategoryBreakdownEntry)

	for _, disc := range discrepancies {
		category := disc.Category
		if category == "" {
			category = "Other"
		}

		entry, ok := byCategory[category]
		if !ok {
			entry = &models.CategoryBreakdownEntry{Category: category}
			byCategory[category] = entry
		}

		entry.ContractorTotal += disc.ContractorTotal
		entry.CarrierTotal += disc.CarrierTotal
		entry.Difference += disc.DifferenceAmount
		entry.Count++

		if disc.DifferenceAmount > 0 {
			entry.Underpayment += disc.DifferenceAmount
		} else if disc.DifferenceAmount < 0 {
			entry.Overpayment += math.Abs(disc.DifferenceAmount)
		}

		switch disc.Type {
		case models.DiscrepancyMissingItem:
			entry.MissingItems++
		case models.DiscrepancyQuantity:
			entry.QuantityIssues++
		case models.DiscrepancyPricing:
			entry.PricingIssues++
		}
	}

	breakdown := make([]models.CategoryBreakdownEntry, 0, len(byCategory))
	for _, entry := range byCategory {
		entry.ContractorTotal = round2(entry.ContractorTotal)
		entry.CarrierTotal = round2(entry.CarrierTotal)
		entry.Difference = round2(entry.Difference)
		entry.Underpayment = round2(entry.Underpayment)
		entry.Overpayment = round2(entry.Overpayment)
		if entry.CarrierTotal > 0 {
			entry.UnderpaymentPercent = round2(entry.Underpayment / entry.CarrierTotal * 100)
		}
		breakdown = append(breakdown, *entry)
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Underpayment != breakdown[j].Underpayment {
			return breakdown[i].Underpayment > breakdown[j].Underpayment
		}
		return breakdown[i].Category < breakdown[j].Category
	})

	return breakdown
}

// calculateStats counts discrepancies by type
func calculateStats(discrepancies []models.Discrepancy, conversions, compared int) models.ReconciliationStats {
	stats := models.ReconciliationStats{
		ItemsCompared:          compared,
		TotalDiscrepancies:     len(discrepancies),
		UnitConversionsApplied: conversions,
	}
	for _, disc := range discrepancies {
		switch disc.Type {
		case models.DiscrepancyMissingItem:
			stats.MissingItems++
		case models.DiscrepancyExtraItem:
			stats.ExtraItems++
		case models.DiscrepancyQuantity:
			stats.QuantityDifferences++
		case models.DiscrepancyPricing:
			stats.PricingDifferences++
		case models.DiscrepancyScopeOmission:
			stats.ScopeDifferences++
		}
	}
	return stats
}

// ValidateReconciliation re-derives the headline totals from the
// discrepancy list and reports any disagreement. A failure here means a
// bug in the engine, not bad input.
func (r *EstimateReconciler) ValidateReconciliation(result models.ReconciliationResult) models.ReconciliationCheck {
	var errs []string
	const tolerance = 0.01

	var sumContractor, sumCarrier, sumUnderpayment float64
	for _, disc := range result.Discrepancies {
		sumContractor += disc.ContractorTotal
		sumCarrier += disc.CarrierTotal
		if disc.DifferenceAmount > 0 {
			sumUnderpayment += disc.DifferenceAmount
		}
	}

	if math.Abs(sumContractor-result.Totals.ContractorTotal) > tolerance {
		errs = append(errs, fmt.Sprintf("contractor total mismatch: %v vs %v", sumContractor, result.Totals.ContractorTotal))
	}
	if math.Abs(sumCarrier-result.Totals.CarrierTotal) > tolerance {
		errs = append(errs, fmt.Sprintf("carrier total mismatch: %v vs %v", sumCarrier, result.Totals.CarrierTotal))
	}
	if math.Abs(sumUnderpayment-result.Totals.UnderpaymentAmount) > tolerance {
		errs = append(errs, fmt.Sprintf("underpayment mismatch: %v vs %v", sumUnderpayment, result.Totals.UnderpaymentAmount))
	}

	return models.ReconciliationCheck{Valid: len(errs) == 0, Errors: errs}
}

// Summarize condenses a result into the headline view with the ten
// largest discrepancies
func (r *EstimateReconciler) Summarize(result models.ReconciliationResult) models.ReconciliationSummary {
	sorted := make([]models.Discrepancy, len(result.Discrepancies))
	copy(sorted, result.Discrepancies)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].DifferenceAmount) > math.Abs(sorted[j].DifferenceAmount)
	})
	if len(sorted) > 10 {
		sorted = sorted[:10]
	}

	top := make([]models.TopDiscrepancy, 0, len(sorted))
	for _, disc := range sorted {
		top = append(top, models.TopDiscrepancy{
			Description: disc.Description,
			Category:    disc.Category,
			Type:        disc.Type,
			Difference:  disc.DifferenceAmount,
		})
	}

	return models.ReconciliationSummary{
		TotalItemsCompared:     result.Stats.ItemsCompared,
		ItemsWithDiscrepancies: result.Stats.TotalDiscrepancies,
		FinancialSummary: models.FinancialSummary{
			ContractorTotal: result.Totals.ContractorTotal,
			CarrierTotal:    result.Totals.CarrierTotal,
			NetDifference:   result.Totals.NetDifference,
			Underpayment:    result.Totals.UnderpaymentAmount,
			Overpayment:     result.Totals.OverpaymentAmount,
		},
		DiscrepancyBreakdown: result.Stats,
		TopDiscrepancies:     top,
	}
}
