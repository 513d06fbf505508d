package llm

import (
	"strings"
	"testing"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

const validReply = `{
  "documentValidation": {"isValid": true, "validityStatus": "Valid", "confidenceScore": 92},
  "expiryAnalysis": {"hasExpiryDate": true, "expiryDate": "2030-03-01", "issueDate": "2020-03-01", "daysUntilExpiry": 1734, "isExpired": false, "isExpiringSoon": false},
  "dataQuality": {"ocrQuality": "High", "missingFields": [], "inconsistencies": [], "dataCompleteness": 100},
  "complianceCheck": {"status": "Compliant", "issues": [], "riskLevel": "Low"},
  "recommendations": {"actions": ["File with HR records"], "priority": "Low", "requiresManualReview": false}
}`

func TestParseReply_JSON(t *testing.T) {
	for _, text := range []string{validReply, "```json\n" + validReply + "\n```"} {
		r, ok := ParseReply(text)
		if !ok {
			t.Fatal("expected reply to parse")
		}
		if r.DocumentValidation.ValidityStatus != "Valid" || r.ExpiryAnalysis.ExpiryDate != "2030-03-01" {
			t.Errorf("unexpected reply %+v", r)
		}
	}
}

func TestParseReply_TextFallback(t *testing.T) {
	text := "Validity status: Expired\nExpiry date: 03/15/2024\nCompliance: Non-Compliant\nRisk level: High"

	r, ok := ParseReply(text)
	if !ok {
		t.Fatal("expected text scan to find values")
	}
	if r.DocumentValidation.ValidityStatus != "Expired" {
		t.Errorf("unexpected validity %q", r.DocumentValidation.ValidityStatus)
	}
	if r.ExpiryAnalysis.ExpiryDate != "03/15/2024" {
		t.Errorf("unexpected expiry %q", r.ExpiryAnalysis.ExpiryDate)
	}
	if r.ComplianceCheck.Status != "Non-Compliant" || r.ComplianceCheck.RiskLevel != "High" {
		t.Errorf("unexpected compliance %q / risk %q", r.ComplianceCheck.Status, r.ComplianceCheck.RiskLevel)
	}
}

func TestParseReply_Unusable(t *testing.T) {
	if _, ok := ParseReply("I cannot help with that."); ok {
		t.Error("expected no usable reply")
	}
}

func TestBuildAnalysis_Valid(t *testing.T) {
	r, _ := ParseReply(validReply)
	a := BuildAnalysis(r, validReply, passportExtraction("2030-03-01"), domain.AnalysisContext{EmployeeID: "EMP001"}, "openai", fixedNow)

	if a.IsValid == nil || !*a.IsValid {
		t.Error("expected valid document")
	}
	if a.ValidityStatus != domain.ValidityValid || a.ComplianceStatus != domain.ComplianceCompliant {
		t.Errorf("unexpected verdict %s/%s", a.ValidityStatus, a.ComplianceStatus)
	}
	if a.DocumentScore != 100 || a.RequiresManualReview {
		t.Errorf("unexpected score %d review %v", a.DocumentScore, a.RequiresManualReview)
	}
	if a.DaysUntilExpiry == nil || *a.DaysUntilExpiry != 1734 {
		t.Errorf("unexpected days until expiry %v", a.DaysUntilExpiry)
	}
	if a.ConfidenceScore != 92 || a.DataConsistency != "High" || a.Priority != "Low" {
		t.Errorf("unexpected details %d %s %s", a.ConfidenceScore, a.DataConsistency, a.Priority)
	}
	if a.RawAnalysis != validReply || a.Provider != "openai" {
		t.Error("expected raw reply and provider to be kept")
	}
}

func TestBuildAnalysis_Defaults(t *testing.T) {
	a := BuildAnalysis(&Reply{}, "{}", passportExtraction(""), domain.AnalysisContext{}, "openai", fixedNow)

	if a.ValidityStatus != domain.ValidityValid || a.IsValid == nil || !*a.IsValid {
		t.Errorf("expected default Valid, got %s", a.ValidityStatus)
	}
	if a.ConfidenceScore != 85 || a.DataCompleteness != 80 {
		t.Errorf("expected default scores 85/80, got %d/%d", a.ConfidenceScore, a.DataCompleteness)
	}
	if a.ComplianceStatus != domain.ComplianceCompliant || a.RiskLevel != domain.RiskLow {
		t.Errorf("unexpected defaults %s/%s", a.ComplianceStatus, a.RiskLevel)
	}
	if a.Priority != "Medium" || a.DataConsistency != "Medium" {
		t.Errorf("unexpected priority %s consistency %s", a.Priority, a.DataConsistency)
	}
	if a.MissingInformation == nil || a.Recommendations == nil {
		t.Error("expected empty lists, not nil")
	}
}

func TestBuildAnalysis_ClockOverridesModelExpiry(t *testing.T) {
	// The model thinks the document is fine but the date is in the past.
	reply := strings.Replace(validReply, "2030-03-01", "2025-05-02", 1)
	r, _ := ParseReply(reply)

	a := BuildAnalysis(r, reply, passportExtraction("2025-05-02"), domain.AnalysisContext{}, "openai", fixedNow)

	if !a.IsExpired || a.ValidityStatus != domain.ValidityExpired {
		t.Errorf("expected expired, got %s", a.ValidityStatus)
	}
	if a.IsValid == nil || *a.IsValid {
		t.Error("expected invalid document")
	}
	if a.ComplianceStatus != domain.ComplianceNonCompliant {
		t.Errorf("expected Non-Compliant, got %s", a.ComplianceStatus)
	}
	if !a.RequiresManualReview {
		t.Error("expired documents always need review")
	}
}

func TestBuildAnalysis_FallsBackToExtractedExpiry(t *testing.T) {
	a := BuildAnalysis(&Reply{}, "{}", passportExtraction("2025-06-11"), domain.AnalysisContext{}, "openai", fixedNow)

	if a.ExpiryDate == nil || domain.FormatDate(*a.ExpiryDate) != "2025-06-11" {
		t.Fatalf("expected expiry from extracted fields, got %v", a.ExpiryDate)
	}
	if !a.IsExpiringSoon || a.ValidityStatus != domain.ValidityExpiringSoon {
		t.Errorf("expected expiring soon, got %s", a.ValidityStatus)
	}
}

func TestBuildAnalysis_ModelRequestsReview(t *testing.T) {
	reply := strings.Replace(validReply, `"requiresManualReview": false`, `"requiresManualReview": true`, 1)
	r, _ := ParseReply(reply)

	a := BuildAnalysis(r, reply, passportExtraction("2030-03-01"), domain.AnalysisContext{}, "openai", fixedNow)
	if !a.RequiresManualReview || !a.VerificationRequired {
		t.Error("expected the model's review request to be honoured")
	}
}

func TestPrompts(t *testing.T) {
	sys := SystemPrompt(domain.DocumentTypeWorkPermit)
	if !strings.Contains(sys, "work permit") || !strings.Contains(sys, "employer") {
		t.Errorf("expected work permit focus in system prompt: %s", sys)
	}
	if SystemPrompt(domain.DocumentTypeUnknown) != baseSystemPrompt {
		t.Error("expected base prompt for unknown type")
	}

	user := UserPrompt(passportExtraction("2030-03-01"), domain.AnalysisContext{RequiresVerification: true}, "2025-06-01")
	for _, want := range []string{"Today is 2025-06-01", "P12345678", "Employee ID: not provided", "Source: unknown", "verified against HR records", `"documentValidation"`} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}
