package domain

import (
	"testing"
	"time"
)

func TestInferDocumentType(t *testing.T) {
	tests := []struct {
		filename string
		expected DocumentType
	}{
		{"passport_emp001.pdf", DocumentTypePassport},
		{"Work_Permit_EMP002.pdf", DocumentTypeWorkPermit},
		{"work_auth_scan.png", DocumentTypeWorkPermit},
		{"aws_cert_2024.pdf", DocumentTypeCertification},
		{"employment_contract.docx", DocumentTypeEmploymentContract},
		{"contract_signed.pdf", DocumentTypeEmploymentContract},
		{"visa_h1b.pdf", DocumentTypeVisa},
		{"national_identity.jpg", DocumentTypeIDCard},
		{"id_card_emp9.png", DocumentTypeIDCard},
		{"scan-ID.jpg", DocumentTypeIDCard},
		{"id", DocumentTypeIDCard},
		{"holiday_photo.jpg", DocumentTypeUnknown},
		{"video_intro.mp4", DocumentTypeUnknown},
		{"valid_scan.pdf", DocumentTypeUnknown},
		{"onboarding_guide.pdf", DocumentTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := InferDocumentType(tt.filename); got != tt.expected {
				t.Errorf("InferDocumentType(%q) = %s, want %s", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestParseDocumentType(t *testing.T) {
	if got := ParseDocumentType(" Passport "); got != DocumentTypePassport {
		t.Errorf("expected passport, got %s", got)
	}
	if got := ParseDocumentType("driving_licence"); got != DocumentTypeUnknown {
		t.Errorf("expected unknown, got %s", got)
	}
}

func TestExtractEmployeeID(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"passport_emp001.pdf", "EMP-001"},
		{"EMP-42_visa.pdf", "EMP-42"},
		{"employee_7_contract.pdf", "EMP-7"},
		{"unrelated.pdf", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := ExtractEmployeeID(tt.filename); got != tt.expected {
				t.Errorf("ExtractEmployeeID(%q) = %q, want %q", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestRequirementsFor(t *testing.T) {
	req, ok := RequirementsFor(DocumentTypePassport)
	if !ok {
		t.Fatal("expected passport requirements")
	}
	if req.ValidityPeriodDays != 3650 {
		t.Errorf("expected 3650 days, got %d", req.ValidityPeriodDays)
	}
	if len(req.RequiredFields) != 4 {
		t.Errorf("expected 4 required fields, got %d", len(req.RequiredFields))
	}

	if _, ok := RequirementsFor(DocumentTypeUnknown); ok {
		t.Error("unknown type should have no requirements")
	}
}

func TestSupportedDocumentTypes(t *testing.T) {
	types := SupportedDocumentTypes()
	if len(types) != 5 {
		t.Fatalf("expected 5 synced types, got %d", len(types))
	}
	for _, dt := range types {
		if _, ok := RequirementsFor(dt); !ok {
			t.Errorf("synced type %s has no requirements", dt)
		}
	}
}

func TestSourceTokenValid(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		token    *SourceToken
		expected bool
	}{
		{"nil token", nil, false},
		{"empty value", &SourceToken{ExpiresAt: now.Add(time.Hour)}, false},
		{"expired", &SourceToken{Value: "t", ExpiresAt: now.Add(-time.Second)}, false},
		{"valid", &SourceToken{Value: "t", ExpiresAt: now.Add(time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.token.Valid(now) != tt.expected {
				t.Errorf("expected Valid() = %v", tt.expected)
			}
		})
	}
}

func TestExtractionResult_MissingRequiredFields(t *testing.T) {
	r := &ExtractionResult{
		DocumentType: DocumentTypePassport,
		ExtractedFields: map[string]string{
			"passportNumber": "A12345678",
			"holderName":     "John Smith",
		},
	}

	missing := r.MissingRequiredFields()
	if len(missing) != 2 || missing[0] != "expiryDate" || missing[1] != "issuingCountry" {
		t.Errorf("unexpected missing fields: %v", missing)
	}
	if r.Field("nationality") != "" {
		t.Error("absent field should read as empty")
	}
}

func TestClampConfidence(t *testing.T) {
	if ClampConfidence(1.2) != 1 {
		t.Error("expected clamp to 1")
	}
	if ClampConfidence(-0.1) != 0 {
		t.Error("expected clamp to 0")
	}
	if ClampConfidence(0.42) != 0.42 {
		t.Error("expected value unchanged")
	}
}
