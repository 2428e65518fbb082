package services

import (
	"testing"

	"github.com/jhouston2019/claimrecon/internal/models"
)

func TestDetectDepreciation(t *testing.T) {
	v := NewDepreciationValidator()

	t.Run("rcv and acv lines pin down depreciation", func(t *testing.T) {
		items := []models.LineItem{
			{LineNumber: 1, Description: "Replacement Cost Value (RCV)", Total: 1000},
			{LineNumber: 2, Description: "Actual Cash Value (ACV)", Total: 750},
		}

		got := v.DetectDepreciation(items, 750)
		if !got.HasDepreciation {
			t.Fatal("expected HasDepreciation")
		}
		if !almostEqual(got.DepreciationAmount, 250) {
			t.Errorf("DepreciationAmount = %v, want 250", got.DepreciationAmount)
		}
		if got.DepreciationPercent == nil || !almostEqual(*got.DepreciationPercent, 25) {
			t.Errorf("DepreciationPercent = %v, want 25", got.DepreciationPercent)
		}
		if !almostEqual(got.RCVTotal, 1000) || !almostEqual(got.ACVTotal, 750) {
			t.Errorf("RCV/ACV = %v/%v, want 1000/750", got.RCVTotal, got.ACVTotal)
		}
	})

	t.Run("negative depreciation line counted by magnitude", func(t *testing.T) {
		items := []models.LineItem{
			{LineNumber: 1, Description: "Roof replacement", Total: 2500},
			{LineNumber: 2, Description: "Less Depreciation", Total: -500},
		}

		got := v.DetectDepreciation(items, 2000)
		if !almostEqual(got.DepreciationAmount, 500) {
			t.Errorf("DepreciationAmount = %v, want 500", got.DepreciationAmount)
		}
		// Grand total is assumed to be the depreciated figure
		if !almostEqual(got.RCVTotal, 2500) {
			t.Errorf("RCVTotal = %v, want 2500", got.RCVTotal)
		}
		if !almostEqual(got.ACVTotal, 2000) {
			t.Errorf("ACVTotal = %v, want 2000", got.ACVTotal)
		}
		if !almostEqual(got.Recoverable, 500) {
			t.Errorf("Recoverable = %v, want 500", got.Recoverable)
		}
	})

	t.Run("last stated percentage wins", func(t *testing.T) {
		items := []models.LineItem{
			{LineNumber: 1, Description: "Depreciation (25%) applied at 30%", Total: -300},
		}

		got := v.DetectDepreciation(items, 700)
		if got.DepreciationPercent == nil || !almostEqual(*got.DepreciationPercent, 30) {
			t.Errorf("DepreciationPercent = %v, want 30", got.DepreciationPercent)
		}
	})

	t.Run("no depreciation", func(t *testing.T) {
		items := []models.LineItem{
			{LineNumber: 1, Description: "Paint interior walls", Total: 1200},
		}

		got := v.DetectDepreciation(items, 1200)
		if got.HasDepreciation {
			t.Error("expected HasDepreciation false")
		}
		if got.DepreciationAmount != 0 {
			t.Errorf("DepreciationAmount = %v, want 0", got.DepreciationAmount)
		}
	})
}

func TestValidateDepreciation(t *testing.T) {
	v := NewDepreciationValidator()

	pct := func(p float64) *float64 { return &p }

	t.Run("depreciation on RCV policy is critical", func(t *testing.T) {
		carrierDep := models.DepreciationProfile{
			HasDepreciation:    true,
			DepreciationAmount: 15000,
			Withheld:           15000,
			Recoverable:        15000,
		}
		policy := models.PolicyData{SettlementType: "RCV"}

		got := v.ValidateDepreciation(carrierDep, policy)
		if got.Valid {
			t.Fatal("expected invalid")
		}
		issue := findIssue(got.Issues, models.IssueRCVPolicyDepreciation)
		if issue == nil {
			t.Fatal("expected rcv_policy_depreciation issue")
		}
		if issue.Severity != models.SeverityCritical {
			t.Errorf("Severity = %q, want critical", issue.Severity)
		}
		if !almostEqual(issue.Impact, 15000) {
			t.Errorf("Impact = %v, want 15000", issue.Impact)
		}
		if !almostEqual(got.TotalImpact, 15000) {
			t.Errorf("TotalImpact = %v, want 15000", got.TotalImpact)
		}
	})

	t.Run("excessive rate", func(t *testing.T) {
		carrierDep := models.DepreciationProfile{
			HasDepreciation:     true,
			DepreciationAmount:  10000,
			DepreciationPercent: pct(60),
		}

		got := v.ValidateDepreciation(carrierDep, models.PolicyData{})
		issue := findIssue(got.Issues, models.IssueExcessiveDepreciation)
		if issue == nil {
			t.Fatal("expected excessive_depreciation issue")
		}
		if issue.Severity != models.SeverityHigh {
			t.Errorf("Severity = %q, want high", issue.Severity)
		}
		if !almostEqual(issue.Impact, 3000) {
			t.Errorf("Impact = %v, want 3000 (30%% of withheld)", issue.Impact)
		}
	})

	t.Run("unusually low rate on a significant claim", func(t *testing.T) {
		carrierDep := models.DepreciationProfile{
			HasDepreciation:     true,
			DepreciationAmount:  2000,
			DepreciationPercent: pct(5),
		}

		got := v.ValidateDepreciation(carrierDep, models.PolicyData{})
		issue := findIssue(got.Issues, models.IssueLowDepreciation)
		if issue == nil {
			t.Fatal("expected low_depreciation issue")
		}
		if issue.Severity != models.SeverityLow {
			t.Errorf("Severity = %q, want low", issue.Severity)
		}
		if issue.Impact != 0 {
			t.Errorf("Impact = %v, want 0 (informational)", issue.Impact)
		}
	})

	t.Run("rcv minus acv disagrees with listed depreciation", func(t *testing.T) {
		carrierDep := models.DepreciationProfile{
			HasDepreciation:    true,
			DepreciationAmount: 1500,
			RCVTotal:           10000,
			ACVTotal:           8000,
		}

		got := v.ValidateDepreciation(carrierDep, models.PolicyData{})
		issue := findIssue(got.Issues, models.IssueDepreciationMathError)
		if issue == nil {
			t.Fatal("expected depreciation_math_error issue")
		}
		if !almostEqual(issue.Impact, 500) {
			t.Errorf("Impact = %v, want 500", issue.Impact)
		}
	})

	t.Run("clean ACV depreciation passes", func(t *testing.T) {
		carrierDep := models.DepreciationProfile{
			HasDepreciation:     true,
			DepreciationAmount:  2500,
			DepreciationPercent: pct(25),
			RCVTotal:            10000,
			ACVTotal:            7500,
		}
		policy := models.PolicyData{SettlementType: "ACV"}

		got := v.ValidateDepreciation(carrierDep, policy)
		if !got.Valid {
			t.Errorf("expected valid, got issues: %+v", got.Issues)
		}
		if got.TotalImpact != 0 {
			t.Errorf("TotalImpact = %v, want 0", got.TotalImpact)
		}
	})

	t.Run("no depreciation on RCV policy is fine", func(t *testing.T) {
		got := v.ValidateDepreciation(models.DepreciationProfile{}, models.PolicyData{SettlementType: "RCV"})
		if !got.Valid {
			t.Errorf("expected valid, got issues: %+v", got.Issues)
		}
	})
}

func TestDepreciationByCategory(t *testing.T) {
	v := NewDepreciationValidator()

	breakdown := []models.CategoryBreakdownEntry{
		{Category: "Roofing", CarrierTotal: 10000},
		{Category: "Flooring", CarrierTotal: 5000},
		{Category: "Fencing", CarrierTotal: 2000}, // not in the rate table
	}

	got := v.DepreciationByCategory(breakdown)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}

	if !almostEqual(got[0].EstimatedDepreciation, 2500) {
		t.Errorf("Roofing estimate = %v, want 2500 (25%%)", got[0].EstimatedDepreciation)
	}
	if !almostEqual(got[1].EstimatedDepreciation, 1000) {
		t.Errorf("Flooring estimate = %v, want 1000 (20%%)", got[1].EstimatedDepreciation)
	}
	if !almostEqual(got[2].EstimatedDepreciation, 400) {
		t.Errorf("Fencing estimate = %v, want 400 (default 20%%)", got[2].EstimatedDepreciation)
	}
	if !almostEqual(got[0].RecoverableAmount, got[0].EstimatedDepreciation) {
		t.Error("recoverable should equal the estimate")
	}
}

func TestRecoveryStrategy(t *testing.T) {
	v := NewDepreciationValidator()

	t.Run("issues drive actions and recovery total", func(t *testing.T) {
		validation := models.DepreciationValidation{
			Valid: false,
			Issues: []models.Issue{
				{Type: models.IssueRCVPolicyDepreciation, Severity: models.SeverityCritical, Impact: 15000},
				{Type: models.IssueDepreciationMathError, Severity: models.SeverityHigh, Impact: 500},
			},
		}

		got := v.RecoveryStrategy(validation)
		if !almostEqual(got.EstimatedRecovery, 15500) {
			t.Errorf("EstimatedRecovery = %v, want 15500", got.EstimatedRecovery)
		}
		if len(got.ImmediateActions) < 3 {
			t.Errorf("expected per-issue plus standard actions, got %v", got.ImmediateActions)
		}
	})

	t.Run("standard completion actions always present", func(t *testing.T) {
		got := v.RecoveryStrategy(models.DepreciationValidation{Valid: true})
		if len(got.ImmediateActions) == 0 || len(got.DocumentationNeeded) == 0 || len(got.NegotiationPoints) == 0 {
			t.Error("standard completion-triggered actions should always be present")
		}
		if got.EstimatedRecovery != 0 {
			t.Errorf("EstimatedRecovery = %v, want 0", got.EstimatedRecovery)
		}
	})
}

func findIssue(issues []models.Issue, issueType models.IssueType) *models.Issue {
	for i := range issues {
		if issues[i].Type == issueType {
			return &issues[i]
		}
	}
	return nil
}
