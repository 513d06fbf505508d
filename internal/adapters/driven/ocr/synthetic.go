package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
	"github.com/custodia-labs/compliance-sync/internal/fields"
)

// Ensure Synthetic implements TextExtractor
var _ driven.TextExtractor = (*Synthetic)(nil)

const syntheticConfidence = 0.92

// Days from now until the synthetic documents expire.
const (
	SyntheticPassportExpiryDays      = 1825
	SyntheticWorkPermitExpiryDays    = -120
	SyntheticCertificationExpiryDays = 45
	SyntheticContractEndDays         = 365
	SyntheticVisaExpiryDays          = 200
)

// SyntheticConfig configures the synthetic extractor.
type SyntheticConfig struct {
	Registry driven.FieldExtractorRegistry
	Now      func() time.Time
}

// Synthetic fabricates plausible OCR output per document type. Expiry dates
// are relative to the clock so the same document keeps the same standing.
// It serves as the fallback of the real engines and as a provider of its own.
type Synthetic struct {
	registry driven.FieldExtractorRegistry
	now      func() time.Time
}

// NewSynthetic creates a synthetic extractor.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Registry == nil {
		cfg.Registry = fields.DefaultRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Synthetic{registry: cfg.Registry, now: cfg.Now}
}

func (s *Synthetic) Name() string                   { return domain.ProviderSynthetic }
func (s *Synthetic) Ping(ctx context.Context) error { return nil }

// Extract never fails.
func (s *Synthetic) Extract(ctx context.Context, content *domain.DocumentContent, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	var id string
	if content != nil {
		id = content.DocumentID
	}
	return s.Result(id, docType), nil
}

// Result builds the synthetic extraction for a document.
func (s *Synthetic) Result(documentID string, docType domain.DocumentType) *domain.ExtractionResult {
	now := s.now()
	res := BuildResult(documentID, docType, Recognition{
		Text:       SyntheticText(docType, now),
		Confidence: syntheticConfidence,
		Pages:      1,
	}, domain.ProviderSynthetic, s.registry, now)
	res.Degraded = true
	return res
}

// SyntheticText returns the demo text of a document type as seen from now.
// Types without a template get the passport one.
func SyntheticText(docType domain.DocumentType, now time.Time) string {
	day := func(offset int) string {
		return domain.FormatDate(domain.StartOfDay(now).AddDate(0, 0, offset))
	}

	switch docType {
	case domain.DocumentTypeWorkPermit:
		return fmt.Sprintf(`EMPLOYMENT AUTHORIZATION DOCUMENT
Immigration Services
Permit Number: MSC1234567890
Employee Name: Maria Elena Rodriguez
Employee ID: EMP-2045
Employer: Tech Solutions Inc
Job Title: Systems Analyst
Start Date: %s
Expiry Date: %s
Work Location: Austin`, day(SyntheticWorkPermitExpiryDays-730), day(SyntheticWorkPermitExpiryDays))

	case domain.DocumentTypeCertification:
		return fmt.Sprintf(`CERTIFICATE OF COMPLETION
Certificate Name: Project Management Professional
Certificate Number: PMP-789012
Holder Name: David Chen
Issued By: Project Management Institute
Date of Issue: %s
Valid Until: %s
Level: Professional`, day(SyntheticCertificationExpiryDays-1095), day(SyntheticCertificationExpiryDays))

	case domain.DocumentTypeEmploymentContract:
		return fmt.Sprintf(`EMPLOYMENT AGREEMENT
Contract No: EC-2022-118
Employee Name: Sarah Johnson
Employee ID: EMP-4567
Employer: Innovative Tech Corp
Position: Software Engineer
Department: Engineering
Start Date: %s
End Date: %s
Annual Salary: $95,000`, day(SyntheticContractEndDays-1095), day(SyntheticContractEndDays))

	case domain.DocumentTypeVisa:
		return fmt.Sprintf(`NONIMMIGRANT VISA
Visa Number: 2023AB123456
Visa Type: H-1B
Name: Rajesh Kumar
Passport Number: J12345678
Nationality: India
Issuing Country: United States
Issued: %s
Expires: %s
Entries: Multiple`, day(SyntheticVisaExpiryDays-1095), day(SyntheticVisaExpiryDays))
	}

	return fmt.Sprintf(`PASSPORT
Passport No: A12345678
Full Name: John Michael Smith
Nationality: United States
Date of Birth: 1985-05-15
Place of Birth: New York
Sex: M
Issuing Country: USA
Date of Issue: %s
Date of Expiry: %s`, day(SyntheticPassportExpiryDays-3650), day(SyntheticPassportExpiryDays))
}
