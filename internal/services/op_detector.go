package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jhouston2019/claimrecon/internal/models"
)

// Industry-standard O&P rates. The missing-percentage fallback of
// 10%+10% is the one documented default this detector ever substitutes
// for absent data.
const (
	defaultOverheadPercent = 10.0
	defaultProfitPercent   = 10.0

	// Absolute dollar gate on the O&P dollar gap; differences below it
	// are treated as rounding noise, not a gap.
	opGapMaterialityThreshold = 100.0
)

// OPRules are the keyword rules used to classify O&P line items.
// Matching is case-insensitive substring matching over descriptions.
type OPRules struct {
	OverheadKeywords []string
	ProfitKeywords   []string
	CombinedKeywords []string
}

// DefaultOPRules matches the line wording seen in contractor and
// carrier estimates
var DefaultOPRules = OPRules{
	OverheadKeywords: []string{"overhead"},
	ProfitKeywords:   []string{"profit"},
	CombinedKeywords: []string{"o&p", "o & p"},
}

// OPDetector scans estimates for overhead and profit line items and
// computes the reconciliation gap between two estimates' O&P treatment
type OPDetector struct {
	rules          OPRules
	percentPattern *regexp.Regexp
}

// NewOPDetector creates a detector with the default keyword rules
func NewOPDetector() *OPDetector {
	return NewOPDetectorWithRules(DefaultOPRules)
}

// NewOPDetectorWithRules creates a detector with custom keyword rules
func NewOPDetectorWithRules(rules OPRules) *OPDetector {
	return &OPDetector{
		rules:          rules,
		percentPattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`),
	}
}

// DetectOP makes a single pass over an estimate's line items and
// summarizes how overhead and profit are itemized. A line mentioning
// only "overhead" contributes to overhead, only "profit" to profit; a
// combined line ("O&P" or "Overhead & Profit") is split between the two.
// The last subtotal line not itself mentioning O&P anchors percentage
// derivation when no percentage is stated.
func (d *OPDetector) DetectOP(lineItems []models.LineItem) models.OPProfile {
	var opLines []models.OPLineRef
	var overheadAmount, profitAmount, subtotalBeforeOP float64
	var overheadPercent, profitPercent *float64

	for _, item := range lineItems {
		desc := strings.ToLower(item.Description)
		hasOverhead := containsAny(desc, d.rules.OverheadKeywords)
		hasProfit := containsAny(desc, d.rules.ProfitKeywords)
		hasCombined := containsAny(desc, d.rules.CombinedKeywords)

		if hasOverhead || hasProfit || hasCombined {
			opLines = append(opLines, models.OPLineRef{
				LineNumber:  item.LineNumber,
				Description: item.Description,
				Amount:      item.Total,
			})
		}

		switch {
		case hasOverhead && !hasProfit && !hasCombined:
			overheadAmount += item.Total
			if p, ok := d.lastPercent(desc); ok {
				overheadPercent = &p
			}

		case hasProfit && !hasOverhead && !hasCombined:
			profitAmount += item.Total
			if p, ok := d.lastPercent(desc); ok {
				profitPercent = &p
			}

		case hasCombined || (hasOverhead && hasProfit):
			// "O&P" or "Overhead & Profit" in one line
			combined := item.Total
			percents := d.allPercents(desc)
			switch {
			case len(percents) >= 2:
				op, pp := percents[0], percents[1]
				overheadPercent, profitPercent = &op, &pp
			case len(percents) == 1:
				half := percents[0] / 2
				op, pp := half, half
				overheadPercent, profitPercent = &op, &pp
			}
			// Split the dollar amount by the stated percentages, or
			// 50/50 when none are stated
			if overheadPercent != nil && profitPercent != nil && *overheadPercent+*profitPercent > 0 {
				totalPercent := *overheadPercent + *profitPercent
				overheadAmount += combined * (*overheadPercent / totalPercent)
				profitAmount += combined * (*profitPercent / totalPercent)
			} else {
				overheadAmount += combined / 2
				profitAmount += combined / 2
			}
		}

		if item.IsSubtotal && !hasOverhead && !hasProfit && !hasCombined {
			subtotalBeforeOP = item.Total
		}
	}

	// Derive percentages from the subtotal anchor when not stated
	if subtotalBeforeOP > 0 {
		if overheadPercent == nil && overheadAmount > 0 {
			p := round2(overheadAmount / subtotalBeforeOP * 100)
			overheadPercent = &p
		}
		if profitPercent == nil && profitAmount > 0 {
			p := round2(profitAmount / subtotalBeforeOP * 100)
			profitPercent = &p
		}
	}

	var combinedPercent *float64
	if overheadPercent != nil && profitPercent != nil {
		c := round2(*overheadPercent + *profitPercent)
		combinedPercent = &c
	}
	if overheadPercent != nil {
		p := round2(*overheadPercent)
		overheadPercent = &p
	}
	if profitPercent != nil {
		p := round2(*profitPercent)
		profitPercent = &p
	}

	return models.OPProfile{
		HasOP:            len(opLines) > 0 || overheadAmount > 0 || profitAmount > 0,
		OverheadAmount:   round2(overheadAmount),
		ProfitAmount:     round2(profitAmount),
		TotalOPAmount:    round2(overheadAmount + profitAmount),
		OverheadPercent:  overheadPercent,
		ProfitPercent:    profitPercent,
		CombinedPercent:  combinedPercent,
		SubtotalBeforeOP: round2(subtotalBeforeOP),
		OPLineItems:      opLines,
	}
}

// CalculateOPGap classifies the O&P relationship between a contractor
// and carrier estimate into exactly one of none, missing_op,
// op_difference, or carrier_only_op. When the carrier is missing O&P
// the expected amount is computed from the contractor's percentages (or
// the 10%+10% industry default) against the carrier's own subtotal.
func (d *OPDetector) CalculateOPGap(contractorOP, carrierOP models.OPProfile, contractorSubtotal, carrierSubtotal float64) models.OPGap {
	contractorHasOP := contractorOP.HasOP
	carrierHasOP := carrierOP.HasOP

	var expectedCarrierOP, expectedOverhead, expectedProfit float64
	if contractorHasOP && !carrierHasOP {
		overheadPercent := percentOrDefault(contractorOP.OverheadPercent, defaultOverheadPercent)
		profitPercent := percentOrDefault(contractorOP.ProfitPercent, defaultProfitPercent)

		base := carrierSubtotal
		if base == 0 {
			base = carrierOP.SubtotalBeforeOP
		}
		expectedOverhead = base * overheadPercent / 100
		expectedProfit = base * profitPercent / 100
		expectedCarrierOP = expectedOverhead + expectedProfit
	}

	opGap := contractorOP.TotalOPAmount - carrierOP.TotalOPAmount

	gapType := models.OPGapNone
	gapDescription := ""
	switch {
	case contractorHasOP && !carrierHasOP:
		gapType = models.OPGapMissingOP
		gapDescription = fmt.Sprintf("Carrier estimate missing O&P. Contractor includes %s%% O&P.",
			formatPercent(percentOrDefault(contractorOP.CombinedPercent, defaultOverheadPercent+defaultProfitPercent)))
	case contractorHasOP && carrierHasOP && math.Abs(opGap) > opGapMaterialityThreshold:
		gapType = models.OPGapDifference
		gapDescription = fmt.Sprintf("O&P difference: Contractor %s%% vs Carrier %s%%",
			formatPercentPtr(contractorOP.CombinedPercent), formatPercentPtr(carrierOP.CombinedPercent))
	case !contractorHasOP && carrierHasOP:
		gapType = models.OPGapCarrierOnly
		gapDescription = "Carrier applied O&P but contractor did not include it separately"
	}

	return models.OPGap{
		HasGap:         math.Abs(opGap) > opGapMaterialityThreshold || (contractorHasOP && !carrierHasOP),
		GapType:        gapType,
		GapDescription: gapDescription,

		Contractor: opSide(contractorOP),
		Carrier:    opSide(carrierOP),

		Gap: models.OPGapAmounts{
			OverheadGap:       round2(contractorOP.OverheadAmount - carrierOP.OverheadAmount),
			ProfitGap:         round2(contractorOP.ProfitAmount - carrierOP.ProfitAmount),
			TotalOPGap:        round2(opGap),
			ExpectedCarrierOP: round2(expectedCarrierOP),
			ExpectedOverhead:  round2(expectedOverhead),
			ExpectedProfit:    round2(expectedProfit),
		},

		Recommendation: d.recommendation(gapType, opGap, contractorOP, carrierOP),
	}
}

// recommendation produces the templated negotiation guidance for a gap
// classification. Pure text driven by the computed numbers.
func (d *OPDetector) recommendation(gapType models.OPGapType, opGap float64, contractorOP, carrierOP models.OPProfile) string {
	switch gapType {
	case models.OPGapMissingOP:
		return fmt.Sprintf(
			"Request carrier to apply %s%% O&P to match industry standard and contractor estimate. This represents $%.2f in missing compensation.",
			formatPercent(percentOrDefault(contractorOP.CombinedPercent, defaultOverheadPercent+defaultProfitPercent)),
			math.Abs(opGap))
	case models.OPGapDifference:
		return fmt.Sprintf(
			"Carrier O&P rate (%s%%) is below contractor rate (%s%%). Request adjustment to match contractor's rate or provide justification for lower rate.",
			formatPercentPtr(carrierOP.CombinedPercent), formatPercentPtr(contractorOP.CombinedPercent))
	case models.OPGapCarrierOnly:
		return "Review if contractor's pricing already includes O&P in line item rates. If not, this may represent an overpayment by carrier."
	default:
		return "O&P rates appear aligned between estimates."
	}
}

// HasExplicitOP reports whether any line item explicitly itemizes
// overhead, profit, or combined O&P
func (d *OPDetector) HasExplicitOP(lineItems []models.LineItem) bool {
	for _, item := range lineItems {
		desc := strings.ToLower(item.Description)
		if containsAny(desc, d.rules.OverheadKeywords) ||
			containsAny(desc, d.rules.ProfitKeywords) ||
			containsAny(desc, d.rules.CombinedKeywords) {
			return true
		}
	}
	return false
}

// RecommendedOP computes industry-standard O&P for a subtotal.
// Residential claims carry 10% overhead + 10% profit; commercial 15% +
// 10%. Unknown claim types fall back to residential.
func (d *OPDetector) RecommendedOP(subtotal float64, claimType string) models.RecommendedOP {
	overheadPercent, profitPercent := defaultOverheadPercent, defaultProfitPercent
	if claimType == "commercial" {
		overheadPercent = 15
	}

	overhead := subtotal * overheadPercent / 100
	profit := subtotal * profitPercent / 100

	return models.RecommendedOP{
		OverheadPercent: overheadPercent,
		ProfitPercent:   profitPercent,
		CombinedPercent: overheadPercent + profitPercent,
		OverheadAmount:  round2(overhead),
		ProfitAmount:    round2(profit),
		TotalOPAmount:   round2(overhead + profit),
		Subtotal:        subtotal,
		TotalWithOP:     round2(subtotal + overhead + profit),
	}
}

// lastPercent extracts the last NN% / NN.NN% figure in a description
func (d *OPDetector) lastPercent(desc string) (float64, bool) {
	matches := d.percentPattern.FindAllStringSubmatch(desc, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// allPercents extracts every percentage figure in order of appearance
func (d *OPDetector) allPercents(desc string) []float64 {
	var out []float64
	for _, m := range d.percentPattern.FindAllStringSubmatch(desc, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// opSide projects a profile into its gap-report form
func opSide(p models.OPProfile) models.OPSide {
	return models.OPSide{
		HasOP:           p.HasOP,
		OverheadAmount:  p.OverheadAmount,
		ProfitAmount:    p.ProfitAmount,
		TotalOP:         p.TotalOPAmount,
		OverheadPercent: p.OverheadPercent,
		ProfitPercent:   p.ProfitPercent,
		CombinedPercent: p.CombinedPercent,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func percentOrDefault(p *float64, fallback float64) float64 {
	if p != nil && *p > 0 {
		return *p
	}
	return fallback
}

// formatPercent renders a percentage without trailing zeros ("20", not
// "20.00")
func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercentPtr(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return formatPercent(*p)
}
