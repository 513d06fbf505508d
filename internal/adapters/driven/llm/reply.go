package llm

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// Reply is the JSON object models are asked to return.
type Reply struct {
	DocumentValidation struct {
		IsValid         *bool    `json:"isValid"`
		ValidityStatus  string   `json:"validityStatus"`
		ConfidenceScore *float64 `json:"confidenceScore"`
	} `json:"documentValidation"`
	ExpiryAnalysis struct {
		HasExpiryDate  *bool  `json:"hasExpiryDate"`
		ExpiryDate     string `json:"expiryDate"`
		IssueDate      string `json:"issueDate"`
		IsExpired      bool   `json:"isExpired"`
		IsExpiringSoon bool   `json:"isExpiringSoon"`
	} `json:"expiryAnalysis"`
	DataQuality struct {
		OCRQuality       string   `json:"ocrQuality"`
		MissingFields    []string `json:"missingFields"`
		Inconsistencies  []string `json:"inconsistencies"`
		DataCompleteness *float64 `json:"dataCompleteness"`
	} `json:"dataQuality"`
	ComplianceCheck struct {
		Status    string   `json:"status"`
		Issues    []string `json:"issues"`
		RiskLevel string   `json:"riskLevel"`
	} `json:"complianceCheck"`
	Recommendations struct {
		Actions              []string `json:"actions"`
		Priority             string   `json:"priority"`
		RequiresManualReview *bool    `json:"requiresManualReview"`
	} `json:"recommendations"`
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// ParseReply reads a model reply. Non-JSON replies go through a labelled
// text scan; ok is false when neither yields anything.
func ParseReply(text string) (reply *Reply, ok bool) {
	body := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	var r Reply
	if err := json.Unmarshal([]byte(body), &r); err == nil {
		return &r, true
	}
	return scanText(text)
}

const textDate = `(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`

var (
	textValidity   = regexp.MustCompile(`(?i)validity(?:\s+status)?\s*[:\-]\s*([A-Za-z][A-Za-z \-]*)`)
	textExpiry     = regexp.MustCompile(`(?i)(?:expiry|expiration|expires?)(?:\s+date)?\s*[:\-]?\s*` + textDate)
	textIssue      = regexp.MustCompile(`(?i)(?:issue|issued)(?:\s+date)?\s*[:\-]?\s*` + textDate)
	textCompliance = regexp.MustCompile(`(?i)compliance(?:\s+status)?\s*[:\-]\s*([A-Za-z][A-Za-z \-]*)`)
	textRisk       = regexp.MustCompile(`(?i)risk(?:\s+level)?\s*[:\-]\s*([A-Za-z]+)`)
)

func scanText(text string) (*Reply, bool) {
	var r Reply
	found := false

	capture := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(text); m != nil {
			found = true
			return strings.TrimSpace(m[1])
		}
		return ""
	}

	r.DocumentValidation.ValidityStatus = firstLine(capture(textValidity))
	r.ExpiryAnalysis.ExpiryDate = capture(textExpiry)
	r.ExpiryAnalysis.IssueDate = capture(textIssue)
	r.ComplianceCheck.Status = firstLine(capture(textCompliance))
	r.ComplianceCheck.RiskLevel = capture(textRisk)

	if !found {
		return nil, false
	}
	return &r, true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Defaults applied when the model leaves a value out.
const (
	defaultConfidenceScore  = 85
	defaultDataCompleteness = 80
	defaultDataConsistency  = "Medium"
	defaultPriority         = "Medium"
)

// BuildAnalysis turns a parsed reply into an AnalysisResult. Expiry flags,
// score and manual review are recomputed from the dates and the clock so
// they never contradict each other.
func BuildAnalysis(r *Reply, raw string, ex *domain.ExtractionResult, actx domain.AnalysisContext,
	provider string, now time.Time) *domain.AnalysisResult {

	a := &domain.AnalysisResult{
		DocumentID:         ex.DocumentID,
		DocumentType:       ex.DocumentType,
		EmployeeID:         actx.EmployeeID,
		Department:         actx.Department,
		AnalyzedAt:         now,
		IsValid:            r.DocumentValidation.IsValid,
		ValidityStatus:     domain.ValidityValid,
		ComplianceStatus:   domain.ComplianceCompliant,
		RiskLevel:          domain.RiskLow,
		IsExpired:          r.ExpiryAnalysis.IsExpired,
		IsExpiringSoon:     r.ExpiryAnalysis.IsExpiringSoon,
		DataConsistency:    orDefault(r.DataQuality.OCRQuality, defaultDataConsistency),
		MissingInformation: nonNil(r.DataQuality.MissingFields),
		DataQualityIssues:  nonNil(r.DataQuality.Inconsistencies),
		ComplianceIssues:   nonNil(r.ComplianceCheck.Issues),
		DataCompleteness:   percent(r.DataQuality.DataCompleteness, defaultDataCompleteness),
		ConfidenceScore:    percent(r.DocumentValidation.ConfidenceScore, defaultConfidenceScore),
		Recommendations:    nonNil(r.Recommendations.Actions),
		Priority:           orDefault(r.Recommendations.Priority, defaultPriority),
		OCRConfidence:      ex.Confidence,
		RawAnalysis:        raw,
		Provider:           provider,
		Degraded:           ex.Degraded,
	}

	if s, ok := domain.ParseValidityStatus(r.DocumentValidation.ValidityStatus); ok {
		a.ValidityStatus = s
	}
	if r.ComplianceCheck.Status != "" {
		a.ComplianceStatus = domain.ParseComplianceStatus(r.ComplianceCheck.Status)
	}
	if lvl, ok := domain.ParseRiskLevel(r.ComplianceCheck.RiskLevel); ok {
		a.RiskLevel = lvl
	}
	if a.IsValid == nil {
		a.IsValid = domain.BoolPtr(a.ValidityStatus != domain.ValidityInvalid && a.ValidityStatus != domain.ValidityExpired)
	}

	a.ExpiryDate = domain.ParseDatePtr(r.ExpiryAnalysis.ExpiryDate)
	if a.ExpiryDate == nil {
		a.ExpiryDate = extractedExpiry(ex)
	}
	a.IssueDate = domain.ParseDatePtr(r.ExpiryAnalysis.IssueDate)
	if a.IssueDate == nil {
		a.IssueDate = domain.ParseDatePtr(ex.Field("issueDate"))
	}
	a.ReconcileExpiry(now)

	a.ApplyScore()
	a.RequiresManualReview = domain.RequiresManualReview(a.ScoreInputs())
	if r.Recommendations.RequiresManualReview != nil && *r.Recommendations.RequiresManualReview {
		a.RequiresManualReview = true
	}
	a.VerificationRequired = a.RequiresManualReview || a.ComplianceStatus == domain.ComplianceNeedsReview

	return a
}

func analysisFailed(ex *domain.ExtractionResult, actx domain.AnalysisContext, raw, provider string, now time.Time) *domain.AnalysisResult {
	a := domain.NewAnalysisFailedAnalysis(ex, raw, now)
	a.EmployeeID = actx.EmployeeID
	a.Department = actx.Department
	a.Provider = provider
	return a
}

// extractedExpiry reads the expiry of a document from its OCR fields.
// Contracts expire at their end date.
func extractedExpiry(ex *domain.ExtractionResult) *time.Time {
	if t := domain.ParseDatePtr(ex.Field("expiryDate")); t != nil {
		return t
	}
	if ex.DocumentType == domain.DocumentTypeEmploymentContract {
		return domain.ParseDatePtr(ex.Field("endDate"))
	}
	return nil
}

func percent(v *float64, def int) int {
	if v == nil {
		return def
	}
	p := int(math.Round(*v))
	return max(0, min(100, p))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
