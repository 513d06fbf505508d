package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

const baseSystemPrompt = `You review HR compliance documents. You receive OCR output for one document and return a structured assessment as a single JSON object. Never invent data that is not in the text.`

var typeFocus = map[domain.DocumentType][]string{
	domain.DocumentTypePassport: {
		"passport number format",
		"issue and expiry dates (adult passports run 10 years, minor passports 5)",
		"issuing country",
		"holder name consistency across the document",
	},
	domain.DocumentTypeWorkPermit: {
		"permit or authorization number",
		"employer name matching the employing company",
		"authorization period and expiry",
		"restrictions on the type of work allowed",
	},
	domain.DocumentTypeCertification: {
		"certificate number",
		"issuing authority",
		"validity period and renewal requirements",
		"continuing education obligations",
	},
	domain.DocumentTypeEmploymentContract: {
		"contract start and end dates",
		"employer and employee details",
		"compensation terms",
		"renewal or termination clauses",
	},
	domain.DocumentTypeVisa: {
		"visa number and category",
		"permitted entries and length of stay",
		"issue and expiry dates",
		"consistency with the holder's passport",
	},
}

// SystemPrompt returns the system instruction for a document type.
func SystemPrompt(docType domain.DocumentType) string {
	focus, ok := typeFocus[docType]
	if !ok {
		return baseSystemPrompt
	}
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	fmt.Fprintf(&b, "\n\nFor %s documents, check:\n", strings.ReplaceAll(string(docType), "_", " "))
	for _, f := range focus {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("Dates may appear as MM/DD/YYYY, DD/MM/YYYY or with month names. Report them as YYYY-MM-DD.")
	return b.String()
}

const replySchema = `{
  "documentValidation": {"isValid": bool, "validityStatus": "Valid|Invalid|Expired|Expiring Soon", "confidenceScore": 0-100},
  "expiryAnalysis": {"hasExpiryDate": bool, "expiryDate": "YYYY-MM-DD or null", "issueDate": "YYYY-MM-DD or null", "daysUntilExpiry": number, "isExpired": bool, "isExpiringSoon": bool},
  "dataQuality": {"ocrQuality": "High|Medium|Low", "missingFields": [string], "inconsistencies": [string], "dataCompleteness": 0-100},
  "complianceCheck": {"status": "Compliant|Non-Compliant|Needs Review", "issues": [string], "riskLevel": "Low|Medium|High"},
  "recommendations": {"actions": [string], "priority": "High|Medium|Low", "requiresManualReview": bool}
}`

// UserPrompt renders the document and its context for the model.
func UserPrompt(extraction *domain.ExtractionResult, actx domain.AnalysisContext, today string) string {
	fieldsJSON, err := json.MarshalIndent(extraction.ExtractedFields, "", "  ")
	if err != nil {
		fieldsJSON = []byte("{}")
	}

	source := actx.Source
	if source == "" {
		source = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n\n", today)
	b.WriteString("Document:\n")
	fmt.Fprintf(&b, "- Type: %s\n", extraction.DocumentType)
	fmt.Fprintf(&b, "- ID: %s\n", extraction.DocumentID)
	fmt.Fprintf(&b, "- OCR confidence: %.2f\n", extraction.Confidence)
	fmt.Fprintf(&b, "- Extracted fields: %s\n", fieldsJSON)
	fmt.Fprintf(&b, "- Text:\n%s\n\n", extraction.ExtractedText)
	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- Employee ID: %s\n", orNotProvided(actx.EmployeeID))
	fmt.Fprintf(&b, "- Department: %s\n", orNotProvided(actx.Department))
	fmt.Fprintf(&b, "- Source: %s\n", source)
	if actx.RequiresVerification {
		b.WriteString("- The document must be verified against HR records.\n")
	}
	b.WriteString("\nReturn JSON with exactly this structure:\n")
	b.WriteString(replySchema)
	return b.String()
}

func orNotProvided(s string) string {
	if s == "" {
		return "not provided"
	}
	return s
}
