package domain

import (
	"strings"
	"time"
)

// ValidityStatus is the overall validity verdict for a document
type ValidityStatus string

const (
	ValidityValid            ValidityStatus = "Valid"
	ValidityInvalid          ValidityStatus = "Invalid"
	ValidityExpired          ValidityStatus = "Expired"
	ValidityExpiringSoon     ValidityStatus = "Expiring Soon"
	ValidityProcessingFailed ValidityStatus = "Processing Failed"
	ValidityAnalysisFailed   ValidityStatus = "Analysis Failed"
)

// ParseValidityStatus maps loose model output onto a ValidityStatus.
func ParseValidityStatus(s string) (ValidityStatus, bool) {
	switch normaliseLabel(s) {
	case "valid":
		return ValidityValid, true
	case "invalid":
		return ValidityInvalid, true
	case "expired":
		return ValidityExpired, true
	case "expiringsoon":
		return ValidityExpiringSoon, true
	case "processingfailed":
		return ValidityProcessingFailed, true
	case "analysisfailed":
		return ValidityAnalysisFailed, true
	}
	return "", false
}

// ComplianceStatus is the compliance verdict for a document
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "Compliant"
	ComplianceNonCompliant ComplianceStatus = "Non-Compliant"
	ComplianceNeedsReview  ComplianceStatus = "Needs Review"
	ComplianceUnknown      ComplianceStatus = "Unknown"
)

// ParseComplianceStatus maps loose model output onto a ComplianceStatus.
// Unrecognised values become ComplianceUnknown.
func ParseComplianceStatus(s string) ComplianceStatus {
	switch normaliseLabel(s) {
	case "compliant":
		return ComplianceCompliant
	case "noncompliant", "notcompliant":
		return ComplianceNonCompliant
	case "needsreview", "review":
		return ComplianceNeedsReview
	}
	return ComplianceUnknown
}

// RiskLevel grades how urgently a document needs attention
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel maps loose model output onto a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch normaliseLabel(s) {
	case "low":
		return RiskLow, true
	case "medium", "moderate":
		return RiskMedium, true
	case "high", "critical":
		return RiskHigh, true
	}
	return "", false
}

func normaliseLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// ExpiringSoonWindowDays is how far ahead an expiry counts as "expiring soon".
const ExpiringSoonWindowDays = 30

// AnalysisContext is what the pipeline knows about a document beyond its text.
type AnalysisContext struct {
	EmployeeID           string `json:"employee_id,omitempty"`
	Department           string `json:"department,omitempty"`
	Source               string `json:"source"`
	RequiresVerification bool   `json:"requires_verification"`
}

// AnalysisResult is the compliance assessment of one document.
// Exactly one is stored per processed document, including failed attempts.
type AnalysisResult struct {
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	EmployeeID   string       `json:"employee_id,omitempty"`
	Department   string       `json:"department,omitempty"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`

	// IsValid is nil when no verdict could be reached.
	IsValid          *bool            `json:"is_valid"`
	ValidityStatus   ValidityStatus   `json:"validity_status"`
	ComplianceStatus ComplianceStatus `json:"compliance_status"`
	RiskLevel        RiskLevel        `json:"risk_level"`

	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`
	IsExpired       bool       `json:"is_expired"`
	IsExpiringSoon  bool       `json:"is_expiring_soon"`

	DataConsistency    string   `json:"data_consistency"`
	MissingInformation []string `json:"missing_information"`
	DataQualityIssues  []string `json:"data_quality_issues"`
	ComplianceIssues   []string `json:"compliance_issues"`
	DataCompleteness   int      `json:"data_completeness"`
	ConfidenceScore    int      `json:"confidence_score"`

	Recommendations []string `json:"recommendations"`
	Priority        string   `json:"priority"`

	OCRConfidence        float64 `json:"ocr_confidence"`
	DocumentScore        int     `json:"document_score"`
	RequiresManualReview bool    `json:"requires_manual_review"`
	VerificationRequired bool    `json:"verification_required"`

	RawAnalysis string `json:"raw_analysis"`
	Provider    string `json:"provider"`
	Degraded    bool   `json:"degraded"`
}

// IsFailure reports whether the result is a placeholder for a failed attempt
func (a *AnalysisResult) IsFailure() bool {
	return a.ValidityStatus == ValidityProcessingFailed || a.ValidityStatus == ValidityAnalysisFailed
}

// ReconcileExpiry aligns the expiry flags and verdict with the expiry date
// as seen from now. The clock decides expiry: a past date forces Expired and
// a future date clears an Expired verdict. Other verdicts are kept.
func (a *AnalysisResult) ReconcileExpiry(now time.Time) {
	if a.ExpiryDate == nil {
		return
	}
	days := DaysBetween(now, *a.ExpiryDate)
	a.DaysUntilExpiry = &days

	switch {
	case days < 0:
		a.IsExpired = true
		a.IsExpiringSoon = false
		a.ValidityStatus = ValidityExpired
		a.IsValid = BoolPtr(false)
		a.ComplianceStatus = ComplianceNonCompliant
	case days <= ExpiringSoonWindowDays:
		a.IsExpired = false
		a.IsExpiringSoon = true
		if a.ValidityStatus == ValidityExpired {
			a.IsValid = BoolPtr(true)
		}
		if a.ValidityStatus == ValidityValid || a.ValidityStatus == ValidityExpired || a.ValidityStatus == "" {
			a.ValidityStatus = ValidityExpiringSoon
		}
	default:
		a.IsExpired = false
		a.IsExpiringSoon = false
		if a.ValidityStatus == ValidityExpired {
			a.ValidityStatus = ValidityValid
			a.IsValid = BoolPtr(true)
		}
	}
}

// NewProcessingFailedAnalysis builds the record stored when every attempt
// to process a document failed.
func NewProcessingFailedAnalysis(doc *DocumentReference, errMessage string, now time.Time) *AnalysisResult {
	docType := DocumentTypeUnknown
	var id, employeeID, department string
	if doc != nil {
		if doc.Type.IsValid() {
			docType = doc.Type
		}
		id = doc.ID
		employeeID = doc.EmployeeID
		department = doc.Department
	}
	return &AnalysisResult{
		DocumentID:           id,
		DocumentType:         docType,
		EmployeeID:           employeeID,
		Department:           department,
		AnalyzedAt:           now,
		ValidityStatus:       ValidityProcessingFailed,
		ComplianceStatus:     ComplianceUnknown,
		RiskLevel:            RiskHigh,
		DataConsistency:      "Unknown",
		MissingInformation:   []string{"Processing failed"},
		DataQualityIssues:    []string{errMessage},
		ComplianceIssues:     []string{},
		Recommendations:      []string{"Re-run processing or review the document manually"},
		Priority:             "High",
		OCRConfidence:        0,
		DocumentScore:        0,
		RequiresManualReview: true,
		VerificationRequired: true,
		RawAnalysis:          "Processing failed: " + errMessage,
		Provider:             "pipeline",
		Degraded:             true,
	}
}

// NewAnalysisFailedAnalysis builds the record used when an analyzer reply
// could not be interpreted at all.
func NewAnalysisFailedAnalysis(extraction *ExtractionResult, raw string, now time.Time) *AnalysisResult {
	if raw == "" {
		raw = "Analysis failed"
	}
	return &AnalysisResult{
		DocumentID:           extraction.DocumentID,
		DocumentType:         extraction.DocumentType,
		AnalyzedAt:           now,
		ValidityStatus:       ValidityAnalysisFailed,
		ComplianceStatus:     ComplianceUnknown,
		RiskLevel:            RiskMedium,
		DataConsistency:      "Unknown",
		MissingInformation:   []string{"Analysis could not be completed"},
		DataQualityIssues:    []string{"Analysis response parsing failed"},
		ComplianceIssues:     []string{},
		Recommendations:      []string{},
		Priority:             "Medium",
		OCRConfidence:        extraction.Confidence,
		DocumentScore:        50,
		RequiresManualReview: true,
		VerificationRequired: true,
		RawAnalysis:          raw,
		Degraded:             true,
	}
}

// dateLayouts are the formats accepted from OCR text and model output.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
}

// ParseDate parses a calendar date in any of the common document formats.
// The result is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return StartOfDay(t), true
		}
	}
	return time.Time{}, false
}

// ParseDatePtr is ParseDate returning nil on failure
func ParseDatePtr(s string) *time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}
	return &t
}

// FormatDate renders a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// StartOfDay truncates t to midnight UTC of its calendar day
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from "from" to "to".
func DaysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}
