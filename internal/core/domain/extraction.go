package domain

import (
	"sort"
	"time"
)

// ProviderSynthetic marks extraction or analysis results that were fabricated
// because the real provider could not be used.
const ProviderSynthetic = "synthetic"

// Table is a table detected in extracted text
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// BoundingBox locates a text block on a page
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextBlock is a positioned line of recognised text
type TextBlock struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bounding_box"`
}

// ExtractionResult is the output of running OCR over one document.
// It is written once to the record store by the pipeline run that produced it.
type ExtractionResult struct {
	DocumentID    string       `json:"document_id"`
	DocumentType  DocumentType `json:"document_type"`
	ExtractedText string       `json:"extracted_text"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	PageCount  int     `json:"page_count"`
	// ExtractedFields holds only the fields that were found.
	ExtractedFields map[string]string `json:"extracted_fields"`
	Tables          []Table           `json:"tables"`
	TextBlocks      []TextBlock       `json:"text_blocks,omitempty"`
	Language        string            `json:"language"`
	ProcessedAt     time.Time         `json:"processed_at"`
	Provider        string            `json:"provider"`
	Degraded        bool              `json:"degraded"`
}

// IsSynthetic reports whether the result was fabricated
func (r *ExtractionResult) IsSynthetic() bool {
	return r.Provider == ProviderSynthetic
}

// Field returns an extracted field, or "" when absent
func (r *ExtractionResult) Field(name string) string {
	if r.ExtractedFields == nil {
		return ""
	}
	return r.ExtractedFields[name]
}

// MissingRequiredFields lists the required fields for the document type
// that the extraction did not find, sorted by name.
func (r *ExtractionResult) MissingRequiredFields() []string {
	req, ok := RequirementsFor(r.DocumentType)
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range req.RequiredFields {
		if r.Field(f) == "" {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// ClampConfidence bounds a confidence value to [0,1]
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
