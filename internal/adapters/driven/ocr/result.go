package ocr

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
	"github.com/custodia-labs/compliance-sync/internal/fields"
)

const (
	// DefaultMaxFileSize is the largest document accepted for OCR.
	DefaultMaxFileSize = 10 * 1024 * 1024

	defaultLanguage = "en"
)

// supportedMimeTypes are the formats OCR providers accept.
var supportedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/tiff":      true,
	"image/bmp":       true,
}

// ValidateContent rejects empty, oversized and unsupported documents.
// An empty mime type is accepted.
func ValidateContent(content *domain.DocumentContent, maxSize int64) error {
	if content == nil || len(content.Data) == 0 {
		return fmt.Errorf("%w: empty content", domain.ErrUnsupportedDocument)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if content.Size() > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrUnsupportedDocument, content.Size(), maxSize)
	}
	if mt := baseMimeType(content.MimeType); mt != "" && !supportedMimeTypes[mt] {
		return fmt.Errorf("%w: mime type %s", domain.ErrUnsupportedDocument, mt)
	}
	return nil
}

func baseMimeType(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

// Recognition is raw engine output before field extraction.
type Recognition struct {
	Text       string
	Confidence float64
	Pages      int
	Language   string
	Blocks     []domain.TextBlock
}

// BuildResult turns engine output into an ExtractionResult, running
// field extraction and table detection over the text.
func BuildResult(documentID string, docType domain.DocumentType, rec Recognition, provider string,
	registry driven.FieldExtractorRegistry, now time.Time) *domain.ExtractionResult {

	pages := rec.Pages
	if pages < 1 {
		pages = 1
	}
	lang := rec.Language
	if lang == "" {
		lang = defaultLanguage
	}
	blocks := rec.Blocks
	if blocks == nil {
		blocks = []domain.TextBlock{}
	}

	return &domain.ExtractionResult{
		DocumentID:      documentID,
		DocumentType:    docType,
		ExtractedText:   rec.Text,
		Confidence:      domain.ClampConfidence(rec.Confidence),
		PageCount:       pages,
		ExtractedFields: fields.Extract(registry, rec.Text, docType),
		Tables:          fields.DetectTables(rec.Text),
		TextBlocks:      blocks,
		Language:        lang,
		ProcessedAt:     now,
		Provider:        provider,
	}
}

// ProviderName names an OCR service from its endpoint host.
func ProviderName(endpoint string) string {
	e := strings.ToLower(endpoint)
	switch {
	case strings.Contains(e, "ocr.space"):
		return "OCR.space"
	case strings.Contains(e, "googleapis.com"):
		return "Google Vision"
	case strings.Contains(e, "azure.com"):
		return "Azure Computer Vision"
	}
	return "Custom OCR"
}
