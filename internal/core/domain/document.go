package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DocumentType identifies the compliance category of a document.
// It drives field extraction, analysis prompts and requirement checks.
type DocumentType string

const (
	DocumentTypePassport           DocumentType = "passport"
	DocumentTypeWorkPermit         DocumentType = "work_permit"
	DocumentTypeCertification      DocumentType = "certification"
	DocumentTypeEmploymentContract DocumentType = "employment_contract"
	DocumentTypeVisa               DocumentType = "visa"
	DocumentTypeIDCard             DocumentType = "id_card"
	DocumentTypeUnknown            DocumentType = "unknown"
)

// SupportedDocumentTypes returns the categories a sync run asks the source for.
func SupportedDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypePassport,
		DocumentTypeWorkPermit,
		DocumentTypeCertification,
		DocumentTypeEmploymentContract,
		DocumentTypeVisa,
	}
}

// IsValid checks if the document type is a known category
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePassport, DocumentTypeWorkPermit, DocumentTypeCertification,
		DocumentTypeEmploymentContract, DocumentTypeVisa, DocumentTypeIDCard, DocumentTypeUnknown:
		return true
	}
	return false
}

// ParseDocumentType normalises a free-form type string.
// Unknown values map to DocumentTypeUnknown.
func ParseDocumentType(s string) DocumentType {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return DocumentTypeUnknown
}

// idTokenPattern matches "id" only as a separate name token
var idTokenPattern = regexp.MustCompile(`(^|[_\-. ])id([_\-. ]|$)`)

// InferDocumentType classifies a document from its file name.
func InferDocumentType(filename string) DocumentType {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "passport"):
		return DocumentTypePassport
	case strings.Contains(name, "permit"), strings.Contains(name, "work_auth"):
		return DocumentTypeWorkPermit
	case strings.Contains(name, "cert"):
		return DocumentTypeCertification
	case strings.Contains(name, "contract"), strings.Contains(name, "employment"):
		return DocumentTypeEmploymentContract
	case strings.Contains(name, "visa"):
		return DocumentTypeVisa
	case strings.Contains(name, "identity"), idTokenPattern.MatchString(name):
		return DocumentTypeIDCard
	}
	return DocumentTypeUnknown
}

var (
	empIDPattern      = regexp.MustCompile(`(?i)emp[_-]?(\d+)`)
	employeeIDPattern = regexp.MustCompile(`(?i)employee[_-]?(\d+)`)
)

// ExtractEmployeeID pulls an employee identifier out of a file name.
// Returns "" when the name carries none.
func ExtractEmployeeID(filename string) string {
	if m := empIDPattern.FindStringSubmatch(filename); m != nil {
		return fmt.Sprintf("EMP-%s", m[1])
	}
	if m := employeeIDPattern.FindStringSubmatch(filename); m != nil {
		return fmt.Sprintf("EMP-%s", m[1])
	}
	return ""
}

// DocumentRequirements describes what a valid document of a type must carry.
type DocumentRequirements struct {
	RequiredFields []string `json:"required_fields"`
	// ValidityPeriodDays is zero when the period varies per document.
	ValidityPeriodDays int      `json:"validity_period_days"`
	ComplianceChecks   []string `json:"compliance_checks"`
}

var documentRequirements = map[DocumentType]DocumentRequirements{
	DocumentTypePassport: {
		RequiredFields:     []string{"passportNumber", "expiryDate", "issuingCountry", "holderName"},
		ValidityPeriodDays: 10 * 365,
		ComplianceChecks:   []string{"expiry", "issuing_authority", "holder_match"},
	},
	DocumentTypeWorkPermit: {
		RequiredFields:     []string{"permitNumber", "expiryDate", "employer", "employeeId"},
		ValidityPeriodDays: 2 * 365,
		ComplianceChecks:   []string{"expiry", "employer_match", "authorization"},
	},
	DocumentTypeCertification: {
		RequiredFields:     []string{"certificateNumber", "expiryDate", "issuingAuthority"},
		ValidityPeriodDays: 3 * 365,
		ComplianceChecks:   []string{"expiry", "issuing_authority", "professional_status"},
	},
	DocumentTypeEmploymentContract: {
		RequiredFields:   []string{"startDate", "endDate", "employer", "position"},
		ComplianceChecks: []string{"dates", "employer_match", "terms"},
	},
	DocumentTypeVisa: {
		RequiredFields:     []string{"visaNumber", "expiryDate", "visaType", "issuingCountry"},
		ValidityPeriodDays: 365,
		ComplianceChecks:   []string{"expiry", "visa_type", "entry_permissions"},
	},
}

// RequirementsFor returns the requirements of a document type.
func RequirementsFor(t DocumentType) (DocumentRequirements, bool) {
	req, ok := documentRequirements[t]
	return req, ok
}

// DocumentReference is a document as listed by the source.
// It is immutable once returned by a connector.
type DocumentReference struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       DocumentType `json:"type"`
	SizeBytes  int64        `json:"size_bytes"`
	MimeType   string       `json:"mime_type"`
	CreatedAt  time.Time    `json:"created_at"`
	ModifiedAt time.Time    `json:"modified_at"`
	EmployeeID string       `json:"employee_id,omitempty"`
	Department string       `json:"department,omitempty"`
	URL        string       `json:"url,omitempty"`
}

// DocumentContent holds the raw bytes of a downloaded document
type DocumentContent struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	Data       []byte `json:"-"`
	// Synthetic is set when the connector fabricated the content.
	Synthetic bool `json:"synthetic"`
}

// Size returns the content length in bytes
func (c *DocumentContent) Size() int64 {
	return int64(len(c.Data))
}

// DocumentMetadata holds source-side properties of a document node.
type DocumentMetadata struct {
	DocumentID       string            `json:"document_id"`
	Name             string            `json:"name"`
	Type             DocumentType      `json:"type"`
	SizeBytes        int64             `json:"size_bytes"`
	MimeType         string            `json:"mime_type"`
	CreatedAt        time.Time         `json:"created_at"`
	ModifiedAt       time.Time         `json:"modified_at"`
	CreatedBy        string            `json:"created_by,omitempty"`
	ModifiedBy       string            `json:"modified_by,omitempty"`
	Version          int               `json:"version"`
	ParentID         string            `json:"parent_id,omitempty"`
	Path             string            `json:"path,omitempty"`
	Categories       []string          `json:"categories,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
	Synthetic        bool              `json:"synthetic"`
}

// DocumentPage is one page of a source listing.
type DocumentPage struct {
	Documents  []*DocumentReference `json:"documents"`
	TotalCount int                  `json:"total_count"`
	HasMore    bool                 `json:"has_more"`
	NextCursor string               `json:"next_cursor,omitempty"`
	Synthetic  bool                 `json:"synthetic"`
}

// SourceToken is an authenticated session with the document source.
type SourceToken struct {
	Value     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Synthetic bool      `json:"synthetic"`
}

// Valid reports whether the token can still be used at the given time
func (t *SourceToken) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}

// EmployeeInfo links documents to the employee and department they belong to.
type EmployeeInfo struct {
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name,omitempty"`
	Department string    `json:"department,omitempty"`
	Email      string    `json:"email,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
