package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jhouston2019/claimrecon/internal/models"
)

// Depreciation validation thresholds. The impact fractions are business
// heuristics carried from claim-negotiation practice; they are
// approximations of likely-recoverable dollars, not computed
// certainties.
const (
	// Rates above this are flagged as excessive
	excessiveRateThreshold = 50.0
	// Estimated share of an excessive depreciation likely recoverable
	excessiveImpactFraction = 0.30
	// Rates below this on claims holding back more than
	// lowRateMinAmount are flagged as informational
	lowRateThreshold = 10.0
	lowRateMinAmount = 1000.0
	// RCV - ACV may disagree with the stated depreciation by this much
	// before it counts as a math error
	depreciationMathTolerance = 10.0
)

// typicalDepreciationRates are the per-category rates used to estimate
// a breakdown when no explicit per-category depreciation is stated
var typicalDepreciationRates = map[string]float64{
	"Roofing":       0.25,
	"Siding":        0.20,
	"Interior":      0.15,
	"Flooring":      0.20,
	"Windows/Doors": 0.15,
	"Electrical":    0.10,
	"Plumbing/HVAC": 0.10,
	"Other":         0.20,
}

const defaultCategoryDepreciationRate = 0.20

// DepreciationRules are the keyword rules used to classify
// depreciation, RCV, and ACV line items
type DepreciationRules struct {
	DepreciationKeywords []string
	RCVKeywords          []string
	ACVKeywords          []string
}

// DefaultDepreciationRules matches carrier estimate wording
var DefaultDepreciationRules = DepreciationRules{
	DepreciationKeywords: []string{"depreciation", "depr", "withheld", "holdback"},
	RCVKeywords:          []string{"rcv", "replacement cost"},
	ACVKeywords:          []string{"acv", "actual cash value"},
}

// DepreciationValidator detects depreciation holdbacks in estimates and
// validates them against policy metadata
type DepreciationValidator struct {
	rules          DepreciationRules
	percentPattern *regexp.Regexp
}

// NewDepreciationValidator creates a validator with the default keyword
// rules
func NewDepreciationValidator() *DepreciationValidator {
	return NewDepreciationValidatorWithRules(DefaultDepreciationRules)
}

// NewDepreciationValidatorWithRules creates a validator with custom
// keyword rules
func NewDepreciationValidatorWithRules(rules DepreciationRules) *DepreciationValidator {
	return &DepreciationValidator{
		rules:          rules,
		percentPattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`),
	}
}

// DetectDepreciation makes a single pass over line items and resolves
// the estimate's depreciation position. Depreciation lines are summed
// by absolute value (holdbacks are usually shown negative but the
// magnitude is what matters). RCV/ACV figures, when both present, are
// more authoritative than labeled depreciation lines and override them.
// When depreciation is stated but RCV is absent, the grand total is
// assumed to be the depreciated (ACV) figure.
func (v *DepreciationValidator) DetectDepreciation(lineItems []models.LineItem, grandTotal float64) models.DepreciationProfile {
	var depreciationAmount, rcvTotal, acvTotal float64
	var depreciationPercent *float64
	var depreciationLines []models.DepreciationLineRef

	for _, item := range lineItems {
		desc := strings.ToLower(item.Description)

		if containsAny(desc, v.rules.DepreciationKeywords) {
			depreciationLines = append(depreciationLines, models.DepreciationLineRef{
				LineNumber:  item.LineNumber,
				Description: item.Description,
				Amount:      item.Total,
			})
			depreciationAmount += math.Abs(item.Total)

			if p, ok := v.lastPercent(desc); ok {
				depreciationPercent = &p
			}
		}

		if containsAny(desc, v.rules.RCVKeywords) {
			rcvTotal += item.Total
		}
		if containsAny(desc, v.rules.ACVKeywords) {
			acvTotal += item.Total
		}
	}

	// RCV and ACV together pin down the depreciation exactly
	if rcvTotal > 0 && acvTotal > 0 {
		depreciationAmount = rcvTotal - acvTotal
		p := depreciationAmount / rcvTotal * 100
		depreciationPercent = &p
	}

	// Depreciation without RCV: assume the grand total is already the
	// ACV figure
	if depreciationAmount > 0 && rcvTotal == 0 {
		rcvTotal = grandTotal + depreciationAmount
		acvTotal = grandTotal
	}

	if depreciationPercent != nil {
		p := round2(*depreciationPercent)
		depreciationPercent = &p
	}

	return models.DepreciationProfile{
		HasDepreciation:     depreciationAmount > 0,
		DepreciationAmount:  round2(depreciationAmount),
		DepreciationPercent: depreciationPercent,
		RCVTotal:            round2(rcvTotal),
		ACVTotal:            round2(acvTotal),
		Withheld:            round2(depreciationAmount),
		// All withheld depreciation is treated as recoverable until
		// policy review says otherwise
		Recoverable:       round2(depreciationAmount),
		DepreciationLines: depreciationLines,
	}
}

// ValidateDepreciation checks a carrier's depreciation position against
// policy metadata and produces issues, recommendations, and a total
// dollar impact. Impacts are summed without deduplication: overlapping
// issues over the same dollars may double-count, which callers should
// treat as an upper bound.
func (v *DepreciationValidator) ValidateDepreciation(carrierDep models.DepreciationProfile, policy models.PolicyData) models.DepreciationValidation {
	var issues []models.Issue
	var recommendations []string

	if carrierDep.DepreciationPercent != nil {
		rate := *carrierDep.DepreciationPercent

		if rate > excessiveRateThreshold {
			issues = append(issues, models.Issue{
				Type:     models.IssueExcessiveDepreciation,
				Severity: models.SeverityHigh,
				Message: fmt.Sprintf("Depreciation rate of %s%% is unusually high. Industry standard is typically 20-40%%.",
					formatPercent(rate)),
				// Heuristic estimate, not a guaranteed recoverable amount
				Impact: round2(carrierDep.DepreciationAmount * excessiveImpactFraction),
			})
			recommendations = append(recommendations, fmt.Sprintf(
				"Request justification for %s%% depreciation rate or adjustment to industry standard (25-30%%).",
				formatPercent(rate)))
		}

		if rate < lowRateThreshold && carrierDep.DepreciationAmount > lowRateMinAmount {
			issues = append(issues, models.Issue{
				Type:     models.IssueLowDepreciation,
				Severity: models.SeverityLow,
				Message: fmt.Sprintf("Depreciation rate of %s%% is unusually low for significant claim.",
					formatPercent(rate)),
				Impact: 0,
			})
		}
	}

	// RCV policies should not depreciate covered items at all
	if policy.SettlementType == "RCV" && carrierDep.HasDepreciation {
		issues = append(issues, models.Issue{
			Type:     models.IssueRCVPolicyDepreciation,
			Severity: models.SeverityCritical,
			Message:  "Policy is RCV (Replacement Cost Value) but carrier applied depreciation. This may be incorrect.",
			Impact:   carrierDep.DepreciationAmount,
		})
		recommendations = append(recommendations,
			"Review policy terms. RCV policies typically do not apply depreciation to covered items.")
	}

	if carrierDep.RCVTotal > 0 && carrierDep.ACVTotal > 0 {
		calculated := carrierDep.RCVTotal - carrierDep.ACVTotal
		difference := math.Abs(calculated - carrierDep.DepreciationAmount)

		if difference > depreciationMathTolerance {
			issues = append(issues, models.Issue{
				Type:     models.IssueDepreciationMathError,
				Severity: models.SeverityHigh,
				Message: fmt.Sprintf("Depreciation calculation appears incorrect. RCV - ACV = $%.2f, but depreciation listed as $%.2f",
					calculated, carrierDep.DepreciationAmount),
				Impact: round2(difference),
			})
			recommendations = append(recommendations, "Request carrier to correct depreciation calculation.")
		}
	}

	totalImpact := 0.0
	for _, issue := range issues {
		totalImpact += issue.Impact
	}

	return models.DepreciationValidation{
		Valid:           len(issues) == 0,
		Issues:          issues,
		Recommendations: recommendations,
		TotalImpact:     round2(totalImpact),
		Summary: models.DepreciationSummary{
			Applied:     carrierDep.DepreciationAmount,
			Withheld:    carrierDep.Withheld,
			Recoverable: carrierDep.Recoverable,
			Rate:        carrierDep.DepreciationPercent,
		},
	}
}

// DepreciationByCategory estimates a per-category depreciation
// breakdown from category carrier totals using typical rates. Used when
// the carrier states no per-category depreciation.
func (v *DepreciationValidator) DepreciationByCategory(breakdown []models.CategoryBreakdownEntry) []models.CategoryDepreciation {
	out := make([]models.CategoryDepreciation, 0, len(breakdown))
	for _, entry := range breakdown {
		rate, ok := typicalDepreciationRates[entry.Category]
		if !ok {
			rate = defaultCategoryDepreciationRate
		}
		estimated := round2(entry.CarrierTotal * rate)
		out = append(out, models.CategoryDepreciation{
			Category:              entry.Category,
			CarrierTotal:          entry.CarrierTotal,
			EstimatedDepreciation: estimated,
			DepreciationRate:      rate * 100,
			RecoverableAmount:     estimated,
		})
	}
	return out
}

// RecoveryStrategy maps each validation issue to recommended actions,
// documentation, and negotiation points, and sums issue impacts into an
// estimated recovery figure. The standard completion-triggered release
// actions are always included.
func (v *DepreciationValidator) RecoveryStrategy(validation models.DepreciationValidation) models.RecoveryStrategy {
	strategy := models.RecoveryStrategy{
		ImmediateActions:    []string{},
		DocumentationNeeded: []string{},
		NegotiationPoints:   []string{},
	}

	for _, issue := range validation.Issues {
		switch issue.Type {
		case models.IssueExcessiveDepreciation:
			strategy.ImmediateActions = append(strategy.ImmediateActions, "Challenge depreciation rate with carrier")
			strategy.DocumentationNeeded = append(strategy.DocumentationNeeded, "Industry standard depreciation schedules")
			strategy.NegotiationPoints = append(strategy.NegotiationPoints, fmt.Sprintf(
				"Request reduction from %s%% to industry standard 25-30%%",
				formatPercentPtr(validation.Summary.Rate)))
			strategy.EstimatedRecovery += issue.Impact

		case models.IssueRCVPolicyDepreciation:
			strategy.ImmediateActions = append(strategy.ImmediateActions, "Review policy declarations page")
			strategy.DocumentationNeeded = append(strategy.DocumentationNeeded, "Policy showing RCV coverage")
			strategy.NegotiationPoints = append(strategy.NegotiationPoints, "Demand full RCV payment per policy terms")
			strategy.EstimatedRecovery += issue.Impact

		case models.IssueDepreciationMathError:
			strategy.ImmediateActions = append(strategy.ImmediateActions, "Request corrected depreciation calculation")
			strategy.DocumentationNeeded = append(strategy.DocumentationNeeded, "Carrier's depreciation worksheet")
			strategy.NegotiationPoints = append(strategy.NegotiationPoints, "Correct mathematical error in depreciation calculation")
			strategy.EstimatedRecovery += issue.Impact
		}
	}

	strategy.ImmediateActions = append(strategy.ImmediateActions, "Complete repairs to trigger depreciation release")
	strategy.DocumentationNeeded = append(strategy.DocumentationNeeded, "Proof of completion (photos, invoices, certificates)")
	strategy.NegotiationPoints = append(strategy.NegotiationPoints, "Request depreciation holdback release upon completion")

	strategy.EstimatedRecovery = round2(strategy.EstimatedRecovery)
	return strategy
}

// lastPercent extracts the last NN% / NN.NN% figure in a description
func (v *DepreciationValidator) lastPercent(desc string) (float64, bool) {
	matches := v.percentPattern.FindAllStringSubmatch(desc, -1)
	if len(matches) == 0 {
		return 0, false
	}
	p, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
