package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentAnalyzer = (*Synthetic)(nil)

// Synthetic assesses documents with fixed rules over the extracted fields.
// It backs the model analyzers when they cannot answer and runs on its own
// when no model is configured.
type Synthetic struct {
	now func() time.Time
}

// NewSynthetic creates a rule-based analyzer. A nil clock means time.Now.
func NewSynthetic(now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}
	return &Synthetic{now: now}
}

func (s *Synthetic) Name() string                   { return domain.ProviderSynthetic }
func (s *Synthetic) Model() string                  { return "rules" }
func (s *Synthetic) Ping(ctx context.Context) error { return nil }
func (s *Synthetic) Close() error                   { return nil }

// Analyze never fails.
func (s *Synthetic) Analyze(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext) (*domain.AnalysisResult, error) {
	return s.Assess(extraction, actx), nil
}

// Assess applies the rules to one extraction.
func (s *Synthetic) Assess(ex *domain.ExtractionResult, actx domain.AnalysisContext) *domain.AnalysisResult {
	now := s.now()
	missing := ex.MissingRequiredFields()
	if missing == nil {
		missing = []string{}
	}

	a := &domain.AnalysisResult{
		DocumentID:         ex.DocumentID,
		DocumentType:       ex.DocumentType,
		EmployeeID:         actx.EmployeeID,
		Department:         actx.Department,
		AnalyzedAt:         now,
		ValidityStatus:     domain.ValidityValid,
		ComplianceStatus:   domain.ComplianceCompliant,
		RiskLevel:          domain.RiskLow,
		ExpiryDate:         extractedExpiry(ex),
		IssueDate:          domain.ParseDatePtr(ex.Field("issueDate")),
		DataConsistency:    ocrQuality(ex.Confidence),
		MissingInformation: missing,
		DataQualityIssues:  []string{},
		ComplianceIssues:   []string{},
		Recommendations:    []string{},
		Priority:           "Low",
		DataCompleteness:   completeness(ex),
		ConfidenceScore:    int(math.Round(ex.Confidence * 100)),
		OCRConfidence:      ex.Confidence,
		Provider:           domain.ProviderSynthetic,
		Degraded:           true,
	}
	a.ReconcileExpiry(now)

	switch {
	case a.IsExpired:
		a.ComplianceStatus = domain.ComplianceNonCompliant
		a.RiskLevel = domain.RiskHigh
		a.Priority = "High"
		a.ComplianceIssues = append(a.ComplianceIssues, "Document has expired")
		a.Recommendations = append(a.Recommendations, "Obtain a renewed document from the employee")
	case a.IsExpiringSoon:
		a.ComplianceStatus = domain.ComplianceNeedsReview
		a.RiskLevel = domain.RiskMedium
		a.Priority = "Medium"
		a.Recommendations = append(a.Recommendations,
			fmt.Sprintf("Start renewal, document expires in %d days", *a.DaysUntilExpiry))
	}

	if len(missing) > 0 {
		if a.ComplianceStatus == domain.ComplianceCompliant {
			a.ComplianceStatus = domain.ComplianceNeedsReview
		}
		if a.RiskLevel == domain.RiskLow {
			a.RiskLevel = domain.RiskMedium
			a.Priority = "Medium"
		}
		a.Recommendations = append(a.Recommendations, "Verify the fields OCR could not read")
	}
	if a.ExpiryDate == nil {
		a.DataQualityIssues = append(a.DataQualityIssues, "No expiry date found")
	}
	if a.IsValid == nil {
		a.IsValid = domain.BoolPtr(true)
	}

	a.ApplyScore()
	a.RequiresManualReview = domain.RequiresManualReview(a.ScoreInputs())
	a.VerificationRequired = a.RequiresManualReview || a.ComplianceStatus == domain.ComplianceNeedsReview
	a.RawAnalysis = fmt.Sprintf("rule-based assessment: validity=%s compliance=%s risk=%s missing=%d",
		a.ValidityStatus, a.ComplianceStatus, a.RiskLevel, len(missing))
	return a
}

// completeness is the share of required fields that were extracted.
func completeness(ex *domain.ExtractionResult) int {
	req, ok := domain.RequirementsFor(ex.DocumentType)
	if !ok || len(req.RequiredFields) == 0 {
		return defaultDataCompleteness
	}
	found := len(req.RequiredFields) - len(ex.MissingRequiredFields())
	return int(math.Round(float64(found) * 100 / float64(len(req.RequiredFields))))
}

func ocrQuality(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "High"
	case confidence >= 0.7:
		return "Medium"
	default:
		return "Low"
	}
}
