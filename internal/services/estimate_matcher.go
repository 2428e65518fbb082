package services

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jhouston2019/claimrecon/internal/models"
)

// Matching thresholds. Category matches can never reach full
// confidence; their score is capped below the fuzzy threshold.
const (
	fuzzyMatchThreshold   = 0.85
	quantityRatioMin      = 0.70
	categoryConfidenceCap = 0.75
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9 ]+`)

// EstimateMatcher pairs contractor line items with carrier line items
// deterministically: exact description matches first, then fuzzy
// matches by edit distance, then same-category same-unit matches by
// quantity similarity.
type EstimateMatcher struct{}

// NewEstimateMatcher creates a new matcher
func NewEstimateMatcher() *EstimateMatcher {
	return &EstimateMatcher{}
}

// MatchLineItems matches two estimates' line items and returns the
// matched pairs, the unmatched remainder on each side, and per-phase
// statistics. Subtotal rows are excluded from matching.
func (m *EstimateMatcher) MatchLineItems(contractorItems, carrierItems []models.LineItem) models.MatchSet {
	contractor := filterComparable(contractorItems)
	carrier := filterComparable(carrierItems)

	contractorMatched := make([]bool, len(contractor))
	carrierMatched := make([]bool, len(carrier))

	var matches []models.MatchedPair

	// Phase 1: exact matches on normalized description
	exact := 0
	for ci, cItem := range contractor {
		for ki, kItem := range carrier {
			if carrierMatched[ki] {
				continue
			}
			if NormalizeDescription(cItem.Description) == NormalizeDescription(kItem.Description) {
				matches = append(matches, models.MatchedPair{
					Contractor:      cItem,
					Carrier:         kItem,
					MatchMethod:     "exact",
					MatchConfidence: 1.0,
				})
				contractorMatched[ci] = true
				carrierMatched[ki] = true
				exact++
				break
			}
		}
	}

	// Phase 2: fuzzy matches by Levenshtein similarity
	fuzzy := 0
	for ci, cItem := range contractor {
		if contractorMatched[ci] {
			continue
		}

		bestIdx := -1
		bestScore := 0.0
		for ki, kItem := range carrier {
			if carrierMatched[ki] {
				continue
			}
			score := descriptionSimilarity(cItem.Description, kItem.Description)
			if score >= fuzzyMatchThreshold && score > bestScore {
				bestScore = score
				bestIdx = ki
			}
		}

		if bestIdx >= 0 {
			matches = append(matches, models.MatchedPair{
				Contractor:      cItem,
				Carrier:         carrier[bestIdx],
				MatchMethod:     "fuzzy",
				MatchConfidence: round2(bestScore),
			})
			contractorMatched[ci] = true
			carrierMatched[bestIdx] = true
			fuzzy++
		}
	}

	// Phase 3: same category + unit, gated by quantity similarity
	category := 0
	for ci, cItem := range contractor {
		if contractorMatched[ci] {
			continue
		}

		bestIdx := -1
		bestRatio := 0.0
		for ki, kItem := range carrier {
			if carrierMatched[ki] {
				continue
			}
			if kItem.Category != cItem.Category || kItem.Unit != cItem.Unit {
				continue
			}
			ratio := quantityRatio(cItem.Quantity, kItem.Quantity)
			if ratio >= quantityRatioMin && ratio > bestRatio {
				bestRatio = ratio
				bestIdx = ki
			}
		}

		if bestIdx >= 0 {
			matches = append(matches, models.MatchedPair{
				Contractor:      cItem,
				Carrier:         carrier[bestIdx],
				MatchMethod:     "category",
				MatchConfidence: round2(bestRatio * categoryConfidenceCap),
			})
			contractorMatched[ci] = true
			carrierMatched[bestIdx] = true
			category++
		}
	}

	var unmatchedContractor, unmatchedCarrier []models.LineItem
	for i, matched := range contractorMatched {
		if !matched {
			unmatchedContractor = append(unmatchedContractor, contractor[i])
		}
	}
	for i, matched := range carrierMatched {
		if !matched {
			unmatchedCarrier = append(unmatchedCarrier, carrier[i])
		}
	}

	return models.MatchSet{
		Matches:             matches,
		UnmatchedContractor: unmatchedContractor,
		UnmatchedCarrier:    unmatchedCarrier,
		Stats: models.MatchStats{
			TotalContractor:     len(contractor),
			TotalCarrier:        len(carrier),
			ExactMatches:        exact,
			FuzzyMatches:        fuzzy,
			CategoryMatches:     category,
			TotalMatched:        len(matches),
			UnmatchedContractor: len(unmatchedContractor),
			UnmatchedCarrier:    len(unmatchedCarrier),
		},
	}
}

// NormalizeDescription canonicalizes a line item description for
// comparison: lowercase, punctuation stripped, whitespace collapsed
func NormalizeDescription(desc string) string {
	desc = strings.ToLower(desc)
	desc = nonAlphanumeric.ReplaceAllString(desc, " ")
	return strings.Join(strings.Fields(desc), " ")
}

// descriptionSimilarity returns a 0..1 similarity score between two
// descriptions based on edit distance over the longer string
func descriptionSimilarity(a, b string) float64 {
	na, nb := NormalizeDescription(a), NormalizeDescription(b)
	longer, shorter := na, nb
	if len(nb) > len(na) {
		longer, shorter = nb, na
	}
	if len(longer) == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(longer, shorter)
	return float64(len(longer)-distance) / float64(len(longer))
}

// quantityRatio returns min/max of the two quantities, 0 when either is
// not positive
func quantityRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > b {
		return b / a
	}
	return a / b
}

// filterComparable drops subtotal rows, which anchor percentage math
// but must not take part in line-level comparison
func filterComparable(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		if !item.IsSubtotal {
			out = append(out, item)
		}
	}
	return out
}
