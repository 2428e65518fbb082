package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/jhouston2019/claimrecon/internal/models"
)

// Unit categories. Every recognized unit token belongs to exactly one
// category; conversion across categories is always undefined.
const (
	CategoryArea    = "area"
	CategoryLinear  = "linear"
	CategoryVolume  = "volume"
	CategoryCount   = "count"
	CategoryTime    = "time"
	CategoryWeight  = "weight"
	CategoryLumpSum = "lumpsum"
	CategoryUnknown = "unknown"
)

// UnitConversion maps a unit token to its category base unit. Factor is
// the multiplier converting 1 token unit into the base unit.
type UnitConversion struct {
	Token       string
	BaseUnit    string
	Factor      float64
	Category    string
	DisplayName string
}

// defaultUnitTable covers the unit tokens seen in Xactimate-style
// construction estimates. Base units per category: SF, LF, CY, EA, HR,
// LB, LS. Declaration order is precedence order: a token like "SQFT"
// partially matches several entries and resolves to the earliest one.
var defaultUnitTable = []UnitConversion{
	// Area (base: SF)
	{Token: "SQ", BaseUnit: "SF", Factor: 100, Category: CategoryArea, DisplayName: "Square"},
	{Token: "SQUARE", BaseUnit: "SF", Factor: 100, Category: CategoryArea, DisplayName: "Square"},
	{Token: "SF", BaseUnit: "SF", Factor: 1, Category: CategoryArea, DisplayName: "Square Foot"},
	{Token: "SY", BaseUnit: "SF", Factor: 9, Category: CategoryArea, DisplayName: "Square Yard"},

	// Linear (base: LF)
	{Token: "LF", BaseUnit: "LF", Factor: 1, Category: CategoryLinear, DisplayName: "Linear Foot"},
	{Token: "FT", BaseUnit: "LF", Factor: 1, Category: CategoryLinear, DisplayName: "Foot"},
	{Token: "IN", BaseUnit: "LF", Factor: 0.0833, Category: CategoryLinear, DisplayName: "Inch"},
	{Token: "YD", BaseUnit: "LF", Factor: 3, Category: CategoryLinear, DisplayName: "Yard"},

	// Volume (base: CY)
	{Token: "CY", BaseUnit: "CY", Factor: 1, Category: CategoryVolume, DisplayName: "Cubic Yard"},
	{Token: "CF", BaseUnit: "CY", Factor: 0.037, Category: CategoryVolume, DisplayName: "Cubic Foot"},

	// Count (base: EA)
	{Token: "EA", BaseUnit: "EA", Factor: 1, Category: CategoryCount, DisplayName: "Each"},
	{Token: "EACH", BaseUnit: "EA", Factor: 1, Category: CategoryCount, DisplayName: "Each"},
	{Token: "PC", BaseUnit: "EA", Factor: 1, Category: CategoryCount, DisplayName: "Piece"},
	{Token: "PIECE", BaseUnit: "EA", Factor: 1, Category: CategoryCount, DisplayName: "Piece"},
	{Token: "UNIT", BaseUnit: "EA", Factor: 1, Category: CategoryCount, DisplayName: "Unit"},

	// Time (base: HR)
	{Token: "HR", BaseUnit: "HR", Factor: 1, Category: CategoryTime, DisplayName: "Hour"},
	{Token: "HOUR", BaseUnit: "HR", Factor: 1, Category: CategoryTime, DisplayName: "Hour"},
	{Token: "DAY", BaseUnit: "HR", Factor: 8, Category: CategoryTime, DisplayName: "Day"},

	// Weight (base: LB)
	{Token: "LB", BaseUnit: "LB", Factor: 1, Category: CategoryWeight, DisplayName: "Pound"},
	{Token: "TON", BaseUnit: "LB", Factor: 2000, Category: CategoryWeight, DisplayName: "Ton"},

	// Lump sum
	{Token: "LS", BaseUnit: "LS", Factor: 1, Category: CategoryLumpSum, DisplayName: "Lump Sum"},
	{Token: "LUMPSUM", BaseUnit: "LS", Factor: 1, Category: CategoryLumpSum, DisplayName: "Lump Sum"},
	{Token: "ALLOWANCE", BaseUnit: "LS", Factor: 1, Category: CategoryLumpSum, DisplayName: "Allowance"},
}

// UnitNormalizer canonicalizes measurement unit tokens and converts
// quantities and prices between compatible units. All methods are pure;
// a normalizer is safe for concurrent use.
type UnitNormalizer struct {
	table map[string]UnitConversion
	order []string // declaration order, partial-match precedence
}

// NewUnitNormalizer creates a normalizer over the default conversion
// table
func NewUnitNormalizer() *UnitNormalizer {
	return NewUnitNormalizerWithTable(defaultUnitTable)
}

// NewUnitNormalizerWithTable creates a normalizer over a custom table.
// Entry order sets partial-match precedence.
func NewUnitNormalizerWithTable(entries []UnitConversion) *UnitNormalizer {
	table := make(map[string]UnitConversion, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		table[entry.Token] = entry
		order = append(order, entry.Token)
	}
	return &UnitNormalizer{table: table, order: order}
}

// NormalizeUnit returns the canonical table key for a unit token. It
// uppercases and trims, tries an exact match, then a bidirectional
// substring match against known tokens in table order, so "SQFT"
// resolves to SQ rather than the linear FT. Unrecognized tokens are
// returned uppercased rather than rejected so downstream code can flag
// them.
func (n *UnitNormalizer) NormalizeUnit(unit string) string {
	upper := strings.ToUpper(strings.TrimSpace(unit))
	if upper == "" {
		return ""
	}

	if _, ok := n.table[upper]; ok {
		return upper
	}

	for _, token := range n.order {
		if strings.Contains(upper, token) || strings.Contains(token, upper) {
			return token
		}
	}

	return upper
}

// lookup resolves a raw token to its table entry, if any
func (n *UnitNormalizer) lookup(unit string) (UnitConversion, bool) {
	conv, ok := n.table[n.NormalizeUnit(unit)]
	return conv, ok
}

// AreUnitsCompatible reports whether both units resolve to known table
// entries in the same category. Unrecognized units are never compatible
// with anything, including each other.
func (n *UnitNormalizer) AreUnitsCompatible(unit1, unit2 string) bool {
	conv1, ok1 := n.lookup(unit1)
	conv2, ok2 := n.lookup(unit2)
	if !ok1 || !ok2 {
		return false
	}
	return conv1.Category == conv2.Category
}

// ConvertQuantity converts a quantity between units of the same
// category, rounded to 4 decimal places. The identity case returns the
// input untouched to avoid float drift. The second return is false when
// either unit is unrecognized or the categories differ; no numeric
// guess is ever returned.
func (n *UnitNormalizer) ConvertQuantity(quantity float64, fromUnit, toUnit string) (float64, bool) {
	normFrom := n.NormalizeUnit(fromUnit)
	normTo := n.NormalizeUnit(toUnit)

	if normFrom == normTo {
		return quantity, true
	}

	convFrom, okFrom := n.table[normFrom]
	convTo, okTo := n.table[normTo]
	if !okFrom || !okTo {
		return 0, false
	}
	if convFrom.Category != convTo.Category {
		return 0, false
	}

	return round4(quantity * convFrom.Factor / convTo.Factor), true
}

// UnitCategory returns the category of a unit, or "unknown"
func (n *UnitNormalizer) UnitCategory(unit string) string {
	if conv, ok := n.lookup(unit); ok {
		return conv.Category
	}
	return CategoryUnknown
}

// UnitDisplayName returns the display name of a unit, or the raw token
// when unrecognized
func (n *UnitNormalizer) UnitDisplayName(unit string) string {
	if conv, ok := n.lookup(unit); ok {
		return conv.DisplayName
	}
	return unit
}

// NormalizeLineItemUnits brings a contractor/carrier pair onto a common
// unit. The contractor's unit is the comparison standard; the carrier's
// quantity is converted into it and the carrier's unit price is scaled
// inversely so quantity x unit_price stays consistent. Incompatible
// units produce a Compatible=false result rather than an error so batch
// reconciliation can continue past one bad pair.
func (n *UnitNormalizer) NormalizeLineItemUnits(contractor, carrier models.LineItem) models.NormalizedUnits {
	contractorUnit := n.NormalizeUnit(contractor.Unit)
	carrierUnit := n.NormalizeUnit(carrier.Unit)

	if !n.AreUnitsCompatible(contractorUnit, carrierUnit) {
		return models.NormalizedUnits{
			Compatible:                  false,
			Error:                       fmt.Sprintf("incompatible units: %s vs %s", contractorUnit, carrierUnit),
			ContractorUnitOriginal:      contractor.Unit,
			CarrierUnitOriginal:         carrier.Unit,
			ContractorQuantityOriginal:  contractor.Quantity,
			CarrierQuantityOriginal:     carrier.Quantity,
			ContractorUnitPriceOriginal: contractor.UnitPrice,
			CarrierUnitPriceOriginal:    carrier.UnitPrice,
		}
	}

	carrierQuantity, _ := n.ConvertQuantity(carrier.Quantity, carrierUnit, contractorUnit)

	carrierUnitPrice := carrier.UnitPrice
	conversionFactor := 1.0
	converted := contractorUnit != carrierUnit
	if converted {
		// Price per unit scales inversely to quantity per unit
		convFrom := n.table[carrierUnit]
		convTo := n.table[contractorUnit]
		conversionFactor = convFrom.Factor / convTo.Factor
		carrierUnitPrice = carrier.UnitPrice / conversionFactor
	}

	return models.NormalizedUnits{
		Compatible:   true,
		StandardUnit: contractorUnit,

		ContractorUnitOriginal:      contractor.Unit,
		CarrierUnitOriginal:         carrier.Unit,
		ContractorQuantityOriginal:  contractor.Quantity,
		CarrierQuantityOriginal:     carrier.Quantity,
		ContractorUnitPriceOriginal: contractor.UnitPrice,
		CarrierUnitPriceOriginal:    carrier.UnitPrice,

		ContractorQuantity:  contractor.Quantity,
		ContractorUnitPrice: contractor.UnitPrice,
		CarrierQuantity:     carrierQuantity,
		CarrierUnitPrice:    carrierUnitPrice,

		ConversionApplied: converted,
		ConversionFactor:  conversionFactor,
	}
}

// CalculateNormalizedDelta composes NormalizeLineItemUnits with
// contractor-minus-carrier delta math in the standard unit. Currency
// and percent outputs are rounded to 2 decimal places, quantities to 4,
// at the point of output only.
func (n *UnitNormalizer) CalculateNormalizedDelta(contractor, carrier models.LineItem) models.NormalizedDelta {
	normalized := n.NormalizeLineItemUnits(contractor, carrier)
	if !normalized.Compatible {
		return models.NormalizedDelta{NormalizedUnits: normalized}
	}

	quantityDelta := normalized.ContractorQuantity - normalized.CarrierQuantity
	unitPriceDelta := normalized.ContractorUnitPrice - normalized.CarrierUnitPrice

	contractorTotal := normalized.ContractorQuantity * normalized.ContractorUnitPrice
	carrierTotal := normalized.CarrierQuantity * normalized.CarrierUnitPrice
	totalDelta := contractorTotal - carrierTotal

	return models.NormalizedDelta{
		NormalizedUnits: normalized,

		QuantityDelta:  round4(quantityDelta),
		UnitPriceDelta: round2(unitPriceDelta),
		TotalDelta:     round2(totalDelta),

		ContractorTotal: round2(contractorTotal),
		CarrierTotal:    round2(carrierTotal),

		QuantityDiffPercent:  percentOf(quantityDelta, normalized.CarrierQuantity),
		UnitPriceDiffPercent: percentOf(unitPriceDelta, normalized.CarrierUnitPrice),
		TotalDiffPercent:     percentOf(totalDelta, carrierTotal),
	}
}

// percentOf expresses delta as a percentage of base. A zero base with a
// nonzero delta is defined as 100% (an "infinite increase" marker, not
// a division failure); zero over zero is 0%.
func percentOf(delta, base float64) float64 {
	if base != 0 {
		return round2(delta / base * 100)
	}
	if delta != 0 {
		return 100
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
