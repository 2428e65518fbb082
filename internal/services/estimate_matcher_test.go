package services

import (
	"testing"

	"github.com/jhouston2019/claimrecon/internal/models"
)

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"R&R Laminated Shingles - 30yr", "r r laminated shingles 30yr"},
		{"  INSTALL   Drywall  ", "install drywall"},
		{`3/4" plywood decking`, "3 4 plywood decking"},
		{"Paint walls (2 coats)", "paint walls 2 coats"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeDescription(tt.in); got != tt.want {
			t.Errorf("NormalizeDescription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchLineItems(t *testing.T) {
	m := NewEstimateMatcher()

	contractor := []models.LineItem{
		{LineNumber: 1, Description: "R&R Laminated Shingles", Quantity: 30, Unit: "SQ", Category: "Roofing", Total: 13500},
		{LineNumber: 2, Description: "Install drywall 1/2 inch", Quantity: 500, Unit: "SF", Category: "Interior", Total: 1250},
		{LineNumber: 3, Description: "Paint walls", Quantity: 500, Unit: "SF", Category: "Interior", Total: 600},
		{LineNumber: 4, Description: "Custom cabinet allowance", Quantity: 1, Unit: "LS", Category: "Other", Total: 4000},
		{LineNumber: 5, Description: "Subtotal", Total: 19350, IsSubtotal: true},
	}
	carrier := []models.LineItem{
		{LineNumber: 1, Description: "r&r laminated shingles", Quantity: 28, Unit: "SQ", Category: "Roofing", Total: 11200},
		{LineNumber: 2, Description: "Install drywall 1/2 in", Quantity: 500, Unit: "SF", Category: "Interior", Total: 1100},
		{LineNumber: 3, Description: "Wall painting", Quantity: 450, Unit: "SF", Category: "Interior", Total: 495},
		{LineNumber: 4, Description: "Gutter replacement", Quantity: 120, Unit: "LF", Category: "Exterior", Total: 960},
	}

	set := m.MatchLineItems(contractor, carrier)

	if len(set.Matches) != 3 {
		t.Fatalf("got %d matches, want 3: %+v", len(set.Matches), set.Matches)
	}

	t.Run("exact match ignores case and punctuation", func(t *testing.T) {
		pair := set.Matches[0]
		if pair.MatchMethod != "exact" {
			t.Errorf("MatchMethod = %q, want exact", pair.MatchMethod)
		}
		if pair.MatchConfidence != 1.0 {
			t.Errorf("MatchConfidence = %v, want 1.0", pair.MatchConfidence)
		}
		if pair.Contractor.LineNumber != 1 || pair.Carrier.LineNumber != 1 {
			t.Errorf("paired lines %d/%d, want 1/1", pair.Contractor.LineNumber, pair.Carrier.LineNumber)
		}
	})

	t.Run("fuzzy match on near-identical descriptions", func(t *testing.T) {
		pair := set.Matches[1]
		if pair.MatchMethod != "fuzzy" {
			t.Errorf("MatchMethod = %q, want fuzzy", pair.MatchMethod)
		}
		// "install drywall 1 2 inch" vs "install drywall 1 2 in": 2 edits over 24 chars
		if !almostEqual(pair.MatchConfidence, 0.92) {
			t.Errorf("MatchConfidence = %v, want 0.92", pair.MatchConfidence)
		}
		if pair.Contractor.LineNumber != 2 || pair.Carrier.LineNumber != 2 {
			t.Errorf("paired lines %d/%d, want 2/2", pair.Contractor.LineNumber, pair.Carrier.LineNumber)
		}
	})

	t.Run("category fallback scored by quantity similarity", func(t *testing.T) {
		pair := set.Matches[2]
		if pair.MatchMethod != "category" {
			t.Errorf("MatchMethod = %q, want category", pair.MatchMethod)
		}
		// 450/500 = 0.90, capped at 0.75 weight
		if !almostEqual(pair.MatchConfidence, 0.68) {
			t.Errorf("MatchConfidence = %v, want 0.68", pair.MatchConfidence)
		}
		if pair.Contractor.LineNumber != 3 || pair.Carrier.LineNumber != 3 {
			t.Errorf("paired lines %d/%d, want 3/3", pair.Contractor.LineNumber, pair.Carrier.LineNumber)
		}
	})

	t.Run("unmatched remainder preserved on both sides", func(t *testing.T) {
		if len(set.UnmatchedContractor) != 1 || set.UnmatchedContractor[0].LineNumber != 4 {
			t.Errorf("UnmatchedContractor = %+v, want cabinet allowance", set.UnmatchedContractor)
		}
		if len(set.UnmatchedCarrier) != 1 || set.UnmatchedCarrier[0].LineNumber != 4 {
			t.Errorf("UnmatchedCarrier = %+v, want gutter replacement", set.UnmatchedCarrier)
		}
	})

	t.Run("stats count each phase and exclude subtotals", func(t *testing.T) {
		want := models.MatchStats{
			TotalContractor:     4,
			TotalCarrier:        4,
			ExactMatches:        1,
			FuzzyMatches:        1,
			CategoryMatches:     1,
			TotalMatched:        3,
			UnmatchedContractor: 1,
			UnmatchedCarrier:    1,
		}
		if set.Stats != want {
			t.Errorf("Stats = %+v, want %+v", set.Stats, want)
		}
	})
}

func TestMatchLineItemsQuantityGate(t *testing.T) {
	m := NewEstimateMatcher()

	contractor := []models.LineItem{
		{LineNumber: 1, Description: "Paint walls", Quantity: 500, Unit: "SF", Category: "Interior"},
	}
	carrier := []models.LineItem{
		{LineNumber: 1, Description: "Wall painting", Quantity: 300, Unit: "SF", Category: "Interior"},
	}

	// 300/500 = 0.60 is below the quantity similarity floor
	set := m.MatchLineItems(contractor, carrier)
	if len(set.Matches) != 0 {
		t.Errorf("got %d matches, want 0", len(set.Matches))
	}
	if len(set.UnmatchedContractor) != 1 || len(set.UnmatchedCarrier) != 1 {
		t.Error("both items should remain unmatched")
	}
}

func TestDescriptionSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Install drywall", "install drywall", 1.0},
		{"", "", 1.0},
		{"Paint walls", "Paint wall", 10.0 / 11.0},
	}

	for _, tt := range tests {
		if got := descriptionSimilarity(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("descriptionSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
