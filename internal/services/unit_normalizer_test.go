package services

import (
	"math"
	"testing"

	"github.com/jhouston2019/claimrecon/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestNormalizeUnit(t *testing.T) {
	n := NewUnitNormalizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact match", "SF", "SF"},
		{"lowercase", "sf", "SF"},
		{"whitespace", "  sq  ", "SQ"},
		{"square word", "SQUARE", "SQUARE"},
		{"partial match", "SQS", "SQ"},
		{"sqft is area not feet", "SQFT", "SQ"},
		{"sq ft with space", "SQ FT", "SQ"},
		{"each", "each", "EACH"},
		{"unknown passes through", "WIDGET", "WIDGET"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.NormalizeUnit(tt.input); got != tt.want {
				t.Errorf("NormalizeUnit(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnitIdempotent(t *testing.T) {
	n := NewUnitNormalizer()

	tokens := []string{"SF", "sf", "  sq  ", "SQFT", "SQS", "each", "DAY", "WIDGET", ""}
	for _, token := range tokens {
		once := n.NormalizeUnit(token)
		twice := n.NormalizeUnit(once)
		if twice != once {
			t.Errorf("NormalizeUnit(%q): second application gave %q, first gave %q", token, twice, once)
		}
	}
}

func TestAreUnitsCompatible(t *testing.T) {
	n := NewUnitNormalizer()

	tests := []struct {
		name  string
		unit1 string
		unit2 string
		want  bool
	}{
		{"same unit", "SF", "SF", true},
		{"same category", "SQ", "SF", true},
		{"squares and square yards", "SQ", "SY", true},
		{"sqft against square feet", "SQFT", "SF", true},
		{"linear units", "LF", "YD", true},
		{"cross category", "EA", "SF", false},
		{"time vs area", "HR", "SF", false},
		{"unknown never compatible", "WIDGET", "WIDGET", false},
		{"unknown vs known", "WIDGET", "SF", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.AreUnitsCompatible(tt.unit1, tt.unit2); got != tt.want {
				t.Errorf("AreUnitsCompatible(%q, %q) = %v, want %v", tt.unit1, tt.unit2, got, tt.want)
			}
		})
	}
}

func TestConvertQuantity(t *testing.T) {
	n := NewUnitNormalizer()

	tests := []struct {
		name     string
		quantity float64
		from     string
		to       string
		want     float64
		ok       bool
	}{
		{"squares to square feet", 10, "SQ", "SF", 1000, true},
		{"square feet to squares", 1000, "SF", "SQ", 10, true},
		{"square yards to square feet", 1, "SY", "SF", 9, true},
		{"inches to feet", 12, "IN", "LF", 0.9996, true},
		{"yards to feet", 2, "YD", "FT", 6, true},
		{"tons to pounds", 1.5, "TON", "LB", 3000, true},
		{"days to hours", 3, "DAY", "HR", 24, true},
		{"identity untouched", 3.3333, "SF", "SF", 3.3333, true},
		{"cross category fails", 5, "EA", "SF", 0, false},
		{"unknown fails", 5, "WIDGET", "SF", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.ConvertQuantity(tt.quantity, tt.from, tt.to)
			if ok != tt.ok {
				t.Fatalf("ConvertQuantity(%v, %q, %q) ok = %v, want %v", tt.quantity, tt.from, tt.to, ok, tt.ok)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("ConvertQuantity(%v, %q, %q) = %v, want %v", tt.quantity, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestConvertQuantityRoundTrip(t *testing.T) {
	n := NewUnitNormalizer()

	pairs := []struct{ from, to string }{
		{"SQ", "SF"},
		{"SY", "SF"},
		{"YD", "LF"},
		{"TON", "LB"},
		{"DAY", "HR"},
	}

	for _, p := range pairs {
		t.Run(p.from+"_"+p.to, func(t *testing.T) {
			const quantity = 7.25
			there, ok := n.ConvertQuantity(quantity, p.from, p.to)
			if !ok {
				t.Fatalf("forward conversion %s -> %s failed", p.from, p.to)
			}
			back, ok := n.ConvertQuantity(there, p.to, p.from)
			if !ok {
				t.Fatalf("reverse conversion %s -> %s failed", p.to, p.from)
			}
			if math.Abs(back-quantity) > 0.001 {
				t.Errorf("round trip %s -> %s -> %s: got %v, want %v", p.from, p.to, p.from, back, quantity)
			}
		})
	}
}

func TestNormalizeLineItemUnits(t *testing.T) {
	n := NewUnitNormalizer()

	t.Run("squares vs square feet", func(t *testing.T) {
		contractor := models.LineItem{Quantity: 10, Unit: "SQ", UnitPrice: 300, Total: 3000}
		carrier := models.LineItem{Quantity: 1000, Unit: "SF", UnitPrice: 3, Total: 3000}

		got := n.NormalizeLineItemUnits(contractor, carrier)
		if !got.Compatible {
			t.Fatalf("expected compatible, got error %q", got.Error)
		}
		if got.StandardUnit != "SQ" {
			t.Errorf("StandardUnit = %q, want SQ (contractor unit wins)", got.StandardUnit)
		}
		if !almostEqual(got.CarrierQuantity, 10) {
			t.Errorf("CarrierQuantity = %v, want 10", got.CarrierQuantity)
		}
		if !almostEqual(got.CarrierUnitPrice, 300) {
			t.Errorf("CarrierUnitPrice = %v, want 300 (price scales inversely)", got.CarrierUnitPrice)
		}
		if !got.ConversionApplied {
			t.Error("expected ConversionApplied")
		}
	})

	t.Run("incompatible units flagged not errored", func(t *testing.T) {
		contractor := models.LineItem{Quantity: 5, Unit: "EA", UnitPrice: 100, Total: 500}
		carrier := models.LineItem{Quantity: 50, Unit: "SF", UnitPrice: 10, Total: 500}

		got := n.NormalizeLineItemUnits(contractor, carrier)
		if got.Compatible {
			t.Fatal("expected incompatible")
		}
		if got.Error == "" {
			t.Error("expected a populated Error")
		}
		if got.ContractorQuantityOriginal != 5 || got.CarrierQuantityOriginal != 50 {
			t.Error("original quantities should be preserved on incompatible pairs")
		}
	})

	t.Run("same unit no conversion", func(t *testing.T) {
		contractor := models.LineItem{Quantity: 100, Unit: "SF", UnitPrice: 2.5}
		carrier := models.LineItem{Quantity: 100, Unit: "SF", UnitPrice: 2.5}

		got := n.NormalizeLineItemUnits(contractor, carrier)
		if got.ConversionApplied {
			t.Error("no conversion expected for identical units")
		}
		if got.ConversionFactor != 1.0 {
			t.Errorf("ConversionFactor = %v, want 1.0", got.ConversionFactor)
		}
	})
}

func TestCalculateNormalizedDelta(t *testing.T) {
	n := NewUnitNormalizer()

	t.Run("equivalent totals across units cancel", func(t *testing.T) {
		contractor := models.LineItem{Quantity: 10, Unit: "SQ", UnitPrice: 300, Total: 3000}
		carrier := models.LineItem{Quantity: 1000, Unit: "SF", UnitPrice: 3, Total: 3000}

		got := n.CalculateNormalizedDelta(contractor, carrier)
		if !got.Compatible {
			t.Fatalf("expected compatible, got %q", got.Error)
		}
		if !almostEqual(got.TotalDelta, 0) {
			t.Errorf("TotalDelta = %v, want 0", got.TotalDelta)
		}
		if !almostEqual(got.QuantityDelta, 0) {
			t.Errorf("QuantityDelta = %v, want 0", got.QuantityDelta)
		}
		if !almostEqual(got.UnitPriceDelta, 0) {
			t.Errorf("UnitPriceDelta = %v, want 0", got.UnitPriceDelta)
		}
	})

	t.Run("quantity shortfall", func(t *testing.T) {
		contractor := models.LineItem{Quantity: 100, Unit: "SF", UnitPrice: 2.5}
		carrier := models.LineItem{Quantity: 80, Unit: "SF", UnitPrice: 2.5}

		got := n.CalculateNormalizedDelta(contractor, carrier)
		if !almostEqual(got.QuantityDelta, 20) {
			t.Errorf("QuantityDelta = %v, want 20", got.QuantityDelta)
		}
		if !almostEqual(got.TotalDelta, 50) {
			t.Errorf("TotalDelta = %v, want 50", got.TotalDelta)
		}
		if !almostEqual(got.TotalDiffPercent, 25) {
			t.Errorf("TotalDiffPercent = %v, want 25", got.TotalDiffPercent)
		}
	})

	t.Run("incompatible pair carries no deltas", func(t *testing.T) {
		contractor := models.LineItem{Quantity: 5, Unit: "EA", UnitPrice: 100}
		carrier := models.LineItem{Quantity: 50, Unit: "SF", UnitPrice: 10}

		got := n.CalculateNormalizedDelta(contractor, carrier)
		if got.Compatible {
			t.Fatal("expected incompatible")
		}
		if got.TotalDelta != 0 || got.QuantityDelta != 0 {
			t.Error("deltas should be zero for incompatible pairs")
		}
	})
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		base  float64
		want  float64
	}{
		{"normal", 50, 200, 25},
		{"negative delta", -25, 100, -25},
		{"zero base nonzero delta", 10, 0, 100},
		{"zero over zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentOf(tt.delta, tt.base); !almostEqual(got, tt.want) {
				t.Errorf("percentOf(%v, %v) = %v, want %v", tt.delta, tt.base, got, tt.want)
			}
		})
	}
}
