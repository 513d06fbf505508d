package driven

import (
	"context"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// TextExtractor turns document bytes into text and structured fields (OCR).
type TextExtractor interface {
	// Extract runs OCR over the content.
	// Transport failures and malformed replies degrade to a synthetic result;
	// domain.ErrAuthentication and domain.ErrRateLimited are returned as errors.
	Extract(ctx context.Context, content *domain.DocumentContent, docType domain.DocumentType) (*domain.ExtractionResult, error)

	// Name returns the provider name for logging and stored results.
	Name() string

	// Ping checks the provider is usable.
	Ping(ctx context.Context) error
}

// FieldExtractor pulls named fields out of OCR text for some document types.
type FieldExtractor interface {
	// Extract returns the fields found in text. Missing fields are absent keys.
	Extract(text string) map[string]string

	// DocumentTypes returns the document types this extractor handles.
	// An empty slice means it handles any type.
	DocumentTypes() []domain.DocumentType

	// Priority returns the extractor priority (higher = more specific).
	// Priority ranges:
	//   50-100: Type-specific strategies
	//   1-9:    General fallback
	Priority() int

	// Name returns the extractor name for logging/debugging.
	Name() string
}

// FieldExtractorRegistry manages field extractors.
// When multiple extractors match a document type, the highest priority one is used.
type FieldExtractorRegistry interface {
	// Get retrieves the best-matching extractor for a document type.
	// Returns nil if nothing is registered for the type.
	Get(docType domain.DocumentType) FieldExtractor

	// GetAll retrieves all extractors that match a type, sorted by priority (highest first).
	GetAll(docType domain.DocumentType) []FieldExtractor

	// Register registers an extractor.
	Register(extractor FieldExtractor)

	// List returns the names of all registered extractors.
	List() []string
}
