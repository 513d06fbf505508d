package opentext

import (
	"fmt"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// demoDocuments is served when the Content Server cannot be reached.
var demoDocuments = []domain.DocumentReference{
	{
		ID:         "DOC-001",
		Name:       "John_Smith_Passport.pdf",
		Type:       domain.DocumentTypePassport,
		SizeBytes:  2457600,
		MimeType:   "application/pdf",
		CreatedAt:  time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC),
		ModifiedAt: time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC),
		EmployeeID: "EMP-5432",
		Department: "HR",
		URL:        "demo://document/DOC-001",
	},
	{
		ID:         "DOC-002",
		Name:       "Maria_Rodriguez_WorkPermit.pdf",
		Type:       domain.DocumentTypeWorkPermit,
		SizeBytes:  1843200,
		MimeType:   "application/pdf",
		CreatedAt:  time.Date(2023, 1, 16, 9, 15, 0, 0, time.UTC),
		ModifiedAt: time.Date(2023, 1, 16, 9, 15, 0, 0, time.UTC),
		EmployeeID: "EMP-6543",
		Department: "IT",
		URL:        "demo://document/DOC-002",
	},
	{
		ID:         "DOC-003",
		Name:       "David_Chen_Certificate.pdf",
		Type:       domain.DocumentTypeCertification,
		SizeBytes:  3200000,
		MimeType:   "application/pdf",
		CreatedAt:  time.Date(2023, 1, 17, 14, 20, 0, 0, time.UTC),
		ModifiedAt: time.Date(2023, 1, 17, 14, 20, 0, 0, time.UTC),
		EmployeeID: "EMP-7654",
		Department: "Finance",
		URL:        "demo://document/DOC-003",
	},
}

// DemoPage returns the fixed demo listing.
func DemoPage() *domain.DocumentPage {
	docs := make([]*domain.DocumentReference, len(demoDocuments))
	for i := range demoDocuments {
		d := demoDocuments[i]
		docs[i] = &d
	}
	return &domain.DocumentPage{
		Documents:  docs,
		TotalCount: len(docs),
		HasMore:    false,
		Synthetic:  true,
	}
}

func demoContent(documentID string) *domain.DocumentContent {
	text := fmt.Sprintf("Demo document content for %s\n\n"+
		"Document Type: Passport\nEmployee: John Smith\nPassport Number: A12345678\n"+
		"Issue Date: 2019-05-12\nExpiry Date: 2029-05-11\nIssuing Country: United States\n", documentID)
	return &domain.DocumentContent{
		DocumentID: documentID,
		FileName:   documentID + ".txt",
		MimeType:   "text/plain",
		Data:       []byte(text),
		Synthetic:  true,
	}
}

func demoMetadata(documentID string, now time.Time) *domain.DocumentMetadata {
	for _, d := range demoDocuments {
		if d.ID == documentID {
			return &domain.DocumentMetadata{
				DocumentID: d.ID,
				Name:       d.Name,
				Type:       d.Type,
				SizeBytes:  d.SizeBytes,
				MimeType:   d.MimeType,
				CreatedAt:  d.CreatedAt,
				ModifiedAt: d.ModifiedAt,
				CreatedBy:  "system",
				ModifiedBy: "system",
				Version:    1,
				Categories: []string{"HR Documents"},
				Synthetic:  true,
			}
		}
	}
	return &domain.DocumentMetadata{
		DocumentID: documentID,
		Name:       "Demo_Document_" + documentID + ".pdf",
		Type:       domain.DocumentTypePassport,
		SizeBytes:  2457600,
		MimeType:   "application/pdf",
		CreatedAt:  now,
		ModifiedAt: now,
		CreatedBy:  "system",
		ModifiedBy: "system",
		Version:    1,
		Categories: []string{"HR Documents"},
		Synthetic:  true,
	}
}
