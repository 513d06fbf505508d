package mocks

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*MockTextExtractor)(nil)

// MockTextExtractor returns a fixed high-confidence extraction unless ExtractFn is set.
type MockTextExtractor struct {
	ExtractFn func(ctx context.Context, content *domain.DocumentContent, docType domain.DocumentType) (*domain.ExtractionResult, error)
	PingFn    func(ctx context.Context) error

	calls atomic.Int32
}

// NewMockTextExtractor creates a new MockTextExtractor
func NewMockTextExtractor() *MockTextExtractor {
	return &MockTextExtractor{}
}

func (m *MockTextExtractor) Extract(ctx context.Context, content *domain.DocumentContent, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	m.calls.Add(1)
	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, content, docType)
	}
	return &domain.ExtractionResult{
		DocumentID:      content.DocumentID,
		DocumentType:    docType,
		ExtractedText:   string(content.Data),
		Confidence:      0.95,
		PageCount:       1,
		ExtractedFields: map[string]string{},
		Language:        "en",
		ProcessedAt:     time.Now(),
		Provider:        "mock",
	}, nil
}

func (m *MockTextExtractor) Name() string { return "mock" }

func (m *MockTextExtractor) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// Calls returns how many times Extract was called
func (m *MockTextExtractor) Calls() int {
	return int(m.calls.Load())
}
