package models

import (
	"time"
)

// NormalizedUnits is the result of bringing a contractor/carrier line
// item pair onto a common unit. The contractor's unit is always the
// comparison standard.
type NormalizedUnits struct {
	Compatible   bool   `json:"compatible"`
	Error        string `json:"error,omitempty"`
	StandardUnit string `json:"standard_unit,omitempty"`

	ContractorUnitOriginal      string  `json:"contractor_unit_original"`
	CarrierUnitOriginal         string  `json:"carrier_unit_original"`
	ContractorQuantityOriginal  float64 `json:"contractor_quantity_original"`
	CarrierQuantityOriginal     float64 `json:"carrier_quantity_original"`
	ContractorUnitPriceOriginal float64 `json:"contractor_unit_price_original"`
	CarrierUnitPriceOriginal    float64 `json:"carrier_unit_price_original"`

	ContractorQuantity  float64 `json:"contractor_quantity"`
	ContractorUnitPrice float64 `json:"contractor_unit_price"`
	CarrierQuantity     float64 `json:"carrier_quantity"`
	CarrierUnitPrice    float64 `json:"carrier_unit_price"`

	ConversionApplied bool    `json:"unit_conversion_applied"`
	ConversionFactor  float64 `json:"conversion_factor"`
}

// NormalizedDelta extends NormalizedUnits with contractor-minus-carrier
// deltas in the standard unit
type NormalizedDelta struct {
	NormalizedUnits

	QuantityDelta  float64 `json:"quantity_delta"`
	UnitPriceDelta float64 `json:"unit_price_delta"`
	TotalDelta     float64 `json:"total_delta"`

	ContractorTotal float64 `json:"contractor_total"`
	CarrierTotal    float64 `json:"carrier_total"`

	QuantityDiffPercent  float64 `json:"quantity_diff_percent"`
	UnitPriceDiffPercent float64 `json:"unit_price_diff_percent"`
	TotalDiffPercent     float64 `json:"total_diff_percent"`
}

// OPLineRef points at a line item that contributed to an O&P profile
type OPLineRef struct {
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// OPProfile summarizes how one estimate itemizes overhead and profit.
// Percent fields are nil when they could not be stated or derived.
type OPProfile struct {
	HasOP            bool        `json:"has_op"`
	OverheadAmount   float64     `json:"overhead_amount"`
	ProfitAmount     float64     `json:"profit_amount"`
	TotalOPAmount    float64     `json:"total_op_amount"`
	OverheadPercent  *float64    `json:"overhead_percent"`
	ProfitPercent    *float64    `json:"profit_percent"`
	CombinedPercent  *float64    `json:"combined_percent"`
	SubtotalBeforeOP float64     `json:"subtotal_before_op"`
	OPLineItems      []OPLineRef `json:"op_line_items"`
}

// OPGapType classifies the O&P relationship between two estimates
type OPGapType string

const (
	OPGapNone        OPGapType = "none"
	OPGapMissingOP   OPGapType = "missing_op"
	OPGapDifference  OPGapType = "op_difference"
	OPGapCarrierOnly OPGapType = "carrier_only_op"
)

// OPSide is one estimate's O&P position inside a gap report
type OPSide struct {
	HasOP           bool     `json:"has_op"`
	OverheadAmount  float64  `json:"overhead_amount"`
	ProfitAmount    float64  `json:"profit_amount"`
	TotalOP         float64  `json:"total_op"`
	OverheadPercent *float64 `json:"overhead_percent"`
	ProfitPercent   *float64 `json:"profit_percent"`
	CombinedPercent *float64 `json:"combined_percent"`
}

// OPGapAmounts holds the dollar gaps between the two sides
type OPGapAmounts struct {
	OverheadGap       float64 `json:"overhead_gap"`
	ProfitGap         float64 `json:"profit_gap"`
	TotalOPGap        float64 `json:"total_op_gap"`
	ExpectedCarrierOP float64 `json:"expected_carrier_op"`
	ExpectedOverhead  float64 `json:"expected_overhead"`
	ExpectedProfit    float64 `json:"expected_profit"`
}

// OPGap compares two OPProfiles
type OPGap struct {
	HasGap         bool         `json:"has_gap"`
	GapType        OPGapType    `json:"gap_type"`
	GapDescription string       `json:"gap_description"`
	Contractor     OPSide       `json:"contractor"`
	Carrier        OPSide       `json:"carrier"`
	Gap            OPGapAmounts `json:"gap"`
	Recommendation string       `json:"recommendation"`
}

// RecommendedOP is an industry-standard O&P calculation for a subtotal
type RecommendedOP struct {
	OverheadPercent float64 `json:"overhead_percent"`
	ProfitPercent   float64 `json:"profit_percent"`
	CombinedPercent float64 `json:"combined_percent"`
	OverheadAmount  float64 `json:"overhead_amount"`
	ProfitAmount    float64 `json:"profit_amount"`
	TotalOPAmount   float64 `json:"total_op_amount"`
	Subtotal        float64 `json:"subtotal"`
	TotalWithOP     float64 `json:"total_with_op"`
}

// DepreciationLineRef points at a line item carrying depreciation
type DepreciationLineRef struct {
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// DepreciationProfile summarizes one estimate's depreciation treatment
type DepreciationProfile struct {
	HasDepreciation     bool                  `json:"has_depreciation"`
	DepreciationAmount  float64               `json:"depreciation_amount"`
	DepreciationPercent *float64              `json:"depreciation_percent"`
	RCVTotal            float64               `json:"rcv_total"`
	ACVTotal            float64               `json:"acv_total"`
	Withheld            float64               `json:"depreciation_withheld"`
	Recoverable         float64               `json:"depreciation_recoverable"`
	DepreciationLines   []DepreciationLineRef `json:"depreciation_lines"`
}

// IssueSeverity ranks how serious a validation issue is
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

// IssueType identifies a depreciation validation finding
type IssueType string

const (
	IssueExcessiveDepreciation IssueType = "excessive_depreciation"
	IssueLowDepreciation       IssueType = "low_depreciation"
	IssueRCVPolicyDepreciation IssueType = "rcv_policy_depreciation"
	IssueDepreciationMathError IssueType = "depreciation_math_error"
)

// Issue is one depreciation validation finding with its estimated dollar
// impact
type Issue struct {
	Type     IssueType     `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	Impact   float64       `json:"impact"`
}

// DepreciationSummary restates the carrier's depreciation position
type DepreciationSummary struct {
	Applied     float64  `json:"applied"`
	Withheld    float64  `json:"withheld"`
	Recoverable float64  `json:"recoverable"`
	Rate        *float64 `json:"rate"`
}

// DepreciationValidation is the result of validating a carrier's
// depreciation against policy metadata. TotalImpact sums issue impacts
// without deduplication; overlapping issues (an RCV-policy finding and a
// math-error finding over the same dollars) may double-count.
type DepreciationValidation struct {
	Valid           bool                `json:"valid"`
	Issues          []Issue             `json:"issues"`
	Recommendations []string            `json:"recommendations"`
	TotalImpact     float64             `json:"total_impact"`
	Summary         DepreciationSummary `json:"depreciation_summary"`
}

// CategoryDepreciation is an estimated per-category depreciation
// breakdown based on typical industry rates
type CategoryDepreciation struct {
	Category              string  `json:"category"`
	CarrierTotal          float64 `json:"carrier_total"`
	EstimatedDepreciation float64 `json:"estimated_depreciation"`
	DepreciationRate      float64 `json:"depreciation_rate"`
	RecoverableAmount     float64 `json:"recoverable_amount"`
}

// RecoveryStrategy maps validation issues to recommended actions
type RecoveryStrategy struct {
	ImmediateActions    []string `json:"immediate_actions"`
	DocumentationNeeded []string `json:"documentation_needed"`
	NegotiationPoints   []string `json:"negotiation_points"`
	EstimatedRecovery   float64  `json:"estimated_recovery"`
}

// MatchedPair is one contractor line item matched against one carrier
// line item
type MatchedPair struct {
	Contractor      LineItem `json:"contractor"`
	Carrier         LineItem `json:"carrier"`
	MatchMethod     string   `json:"match_method"` // "exact", "fuzzy", "category"
	MatchConfidence float64  `json:"match_confidence"`
}

// MatchStats records how each matching phase performed
type MatchStats struct {
	TotalContractor     int `json:"total_contractor"`
	TotalCarrier        int `json:"total_carrier"`
	ExactMatches        int `json:"exact_matches"`
	FuzzyMatches        int `json:"fuzzy_matches"`
	CategoryMatches     int `json:"category_matches"`
	TotalMatched        int `json:"total_matched"`
	UnmatchedContractor int `json:"unmatched_contractor"`
	UnmatchedCarrier    int `json:"unmatched_carrier"`
}

// MatchSet is the full output of line item matching
type MatchSet struct {
	Matches             []MatchedPair `json:"matches"`
	UnmatchedContractor []LineItem    `json:"unmatched_contractor"`
	UnmatchedCarrier    []LineItem    `json:"unmatched_carrier"`
	Stats               MatchStats    `json:"stats"`
}

// DiscrepancyType classifies a line-level discrepancy
type DiscrepancyType string

const (
	DiscrepancyMissingItem        DiscrepancyType = "missing_item"
	DiscrepancyExtraItem          DiscrepancyType = "extra_item"
	DiscrepancyQuantity           DiscrepancyType = "quantity_difference"
	DiscrepancyPricing            DiscrepancyType = "pricing_difference"
	DiscrepancyScopeOmission      DiscrepancyType = "scope_omission"
	DiscrepancyMaterialDifference DiscrepancyType = "material_difference"
	DiscrepancyUnitIncompatible   DiscrepancyType = "unit_incompatible"
	DiscrepancyOther              DiscrepancyType = "other"
)

// Discrepancy is one line-level finding in a reconciliation
type Discrepancy struct {
	Type        DiscrepancyType `json:"discrepancy_type"`
	Description string          `json:"line_item_description"`
	Category    string          `json:"category,omitempty"`

	ContractorLineNumber *int `json:"contractor_line_number,omitempty"`
	CarrierLineNumber    *int `json:"carrier_line_number,omitempty"`

	ContractorUnitOriginal     string  `json:"contractor_unit_original,omitempty"`
	CarrierUnitOriginal        string  `json:"carrier_unit_original,omitempty"`
	ContractorQuantityOriginal float64 `json:"contractor_quantity_original,omitempty"`
	CarrierQuantityOriginal    float64 `json:"carrier_quantity_original,omitempty"`

	StandardUnit        string  `json:"standard_unit,omitempty"`
	ContractorQuantity  float64 `json:"contractor_quantity"`
	CarrierQuantity     float64 `json:"carrier_quantity"`
	ContractorUnitPrice float64 `json:"contractor_unit_price"`
	CarrierUnitPrice    float64 `json:"carrier_unit_price"`
	ContractorTotal     float64 `json:"contractor_total"`
	CarrierTotal        float64 `json:"carrier_total"`

	DifferenceAmount     float64 `json:"difference_amount"`
	QuantityDelta        float64 `json:"quantity_delta"`
	UnitPriceDelta       float64 `json:"unit_price_delta"`
	PercentageDifference float64 `json:"percentage_difference"`

	ConversionApplied bool    `json:"unit_conversion_applied,omitempty"`
	ConversionFactor  float64 `json:"conversion_factor,omitempty"`

	Notes string `json:"notes"`
	Error string `json:"error,omitempty"`

	MatchMethod     string  `json:"match_method,omitempty"`
	MatchConfidence float64 `json:"match_confidence,omitempty"`
}

// ReconciliationTotals are the deterministic dollar totals over all
// discrepancies
type ReconciliationTotals struct {
	ContractorTotal        float64 `json:"contractor_total"`
	CarrierTotal           float64 `json:"carrier_total"`
	TotalDiscrepancyAmount float64 `json:"total_discrepancy_amount"`
	UnderpaymentAmount     float64 `json:"underpayment_amount"`
	OverpaymentAmount      float64 `json:"overpayment_amount"`
	NetDifference          float64 `json:"net_difference"`
}

// CategoryBreakdownEntry aggregates discrepancies for one construction
// category. Entries are sorted by underpayment, highest first.
type CategoryBreakdownEntry struct {
	Category            string  `json:"category"`
	ContractorTotal     float64 `json:"contractor_total"`
	CarrierTotal        float64 `json:"carrier_total"`
	Difference          float64 `json:"difference"`
	Underpayment        float64 `json:"underpayment"`
	Overpayment         float64 `json:"overpayment"`
	Count               int     `json:"count"`
	MissingItems        int     `json:"missing_items"`
	QuantityIssues      int     `json:"quantity_issues"`
	PricingIssues       int     `json:"pricing_issues"`
	UnderpaymentPercent float64 `json:"underpayment_percent"`
}

// UnitConversionWarning flags a matched pair that required a unit
// conversion before comparison
type UnitConversionWarning struct {
	Line             string  `json:"line"`
	FromUnit         string  `json:"from_unit"`
	ToUnit           string  `json:"to_unit"`
	ConversionFactor float64 `json:"conversion_factor"`
}

// ReconciliationStats counts discrepancies by type
type ReconciliationStats struct {
	ItemsCompared          int `json:"items_compared"`
	TotalDiscrepancies     int `json:"total_discrepancies"`
	MissingItems           int `json:"missing_items"`
	ExtraItems             int `json:"extra_items"`
	QuantityDifferences    int `json:"quantity_differences"`
	PricingDifferences     int `json:"pricing_differences"`
	ScopeDifferences       int `json:"scope_differences"`
	UnitConversionsApplied int `json:"unit_conversions_applied"`
}

// DepreciationAnalysis groups the depreciation results in a report
type DepreciationAnalysis struct {
	Contractor DepreciationProfile    `json:"contractor"`
	Carrier    DepreciationProfile    `json:"carrier"`
	Validation DepreciationValidation `json:"validation"`
	Strategy   RecoveryStrategy       `json:"recovery_strategy"`
}

// ReconciliationResult is the combined settlement-gap report
type ReconciliationResult struct {
	Discrepancies          []Discrepancy            `json:"discrepancies"`
	Totals                 ReconciliationTotals     `json:"totals"`
	CategoryBreakdown      []CategoryBreakdownEntry `json:"category_breakdown"`
	OPAnalysis             OPGap                    `json:"op_analysis"`
	Depreciation           DepreciationAnalysis     `json:"depreciation_analysis"`
	UnitConversionWarnings []UnitConversionWarning  `json:"unit_conversion_warnings"`
	Stats                  ReconciliationStats      `json:"stats"`
}

// ReconciliationCheck is the self-check over a finished reconciliation
type ReconciliationCheck struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// TopDiscrepancy is a summary row for the largest discrepancies
type TopDiscrepancy struct {
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Type        DiscrepancyType `json:"type"`
	Difference  float64         `json:"difference"`
}

// FinancialSummary restates the headline totals
type FinancialSummary struct {
	ContractorTotal float64 `json:"contractor_total"`
	CarrierTotal    float64 `json:"carrier_total"`
	NetDifference   float64 `json:"net_difference"`
	Underpayment    float64 `json:"underpayment"`
	Overpayment     float64 `json:"overpayment"`
}

// ReconciliationSummary is the condensed view of a report
type ReconciliationSummary struct {
	TotalItemsCompared     int                 `json:"total_items_compared"`
	ItemsWithDiscrepancies int                 `json:"items_with_discrepancies"`
	FinancialSummary       FinancialSummary    `json:"financial_summary"`
	DiscrepancyBreakdown   ReconciliationStats `json:"discrepancy_breakdown"`
	TopDiscrepancies       []TopDiscrepancy    `json:"top_discrepancies"`
}

// ReconciliationReport is a persisted reconciliation run
type ReconciliationReport struct {
	ID                   string                `json:"id"`
	UserID               int                   `json:"user_id"`
	ContractorEstimateID *int                  `json:"contractor_estimate_id,omitempty"`
	CarrierEstimateID    *int                  `json:"carrier_estimate_id,omitempty"`
	Result               ReconciliationResult  `json:"result"`
	Summary              ReconciliationSummary `json:"summary"`
	MatchStats           *MatchStats           `json:"match_stats,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
}

// ReconcileRequest is the request body for POST /api/reconcile. When
// Matches is empty the service runs its own deterministic matcher over
// the two item lists; callers with pre-matched pairs supply them
// directly.
type ReconcileRequest struct {
	ContractorItems      []LineItem    `json:"contractor_items"`
	CarrierItems         []LineItem    `json:"carrier_items"`
	ContractorGrandTotal float64       `json:"contractor_grand_total"`
	CarrierGrandTotal    float64       `json:"carrier_grand_total"`
	Policy               *PolicyData   `json:"policy,omitempty"`
	Matches              []MatchedPair `json:"matches,omitempty"`
	ContractorEstimateID *int          `json:"contractor_estimate_id,omitempty"`
	CarrierEstimateID    *int          `json:"carrier_estimate_id,omitempty"`
}

// ReportListParams contains parameters for listing saved reports
type ReportListParams struct {
	UserID int
	Limit  int
	Offset int
}
