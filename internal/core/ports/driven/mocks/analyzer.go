package mocks

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

var _ driven.DocumentAnalyzer = (*MockDocumentAnalyzer)(nil)

// MockDocumentAnalyzer returns a compliant assessment unless AnalyzeFn is set.
type MockDocumentAnalyzer struct {
	AnalyzeFn func(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext) (*domain.AnalysisResult, error)
	PingFn    func(ctx context.Context) error

	calls atomic.Int32
}

// NewMockDocumentAnalyzer creates a new MockDocumentAnalyzer
func NewMockDocumentAnalyzer() *MockDocumentAnalyzer {
	return &MockDocumentAnalyzer{}
}

func (m *MockDocumentAnalyzer) Analyze(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext) (*domain.AnalysisResult, error) {
	m.calls.Add(1)
	if m.AnalyzeFn != nil {
		return m.AnalyzeFn(ctx, extraction, actx)
	}
	a := &domain.AnalysisResult{
		DocumentID:         extraction.DocumentID,
		DocumentType:       extraction.DocumentType,
		EmployeeID:         actx.EmployeeID,
		Department:         actx.Department,
		AnalyzedAt:         time.Now(),
		IsValid:            domain.BoolPtr(true),
		ValidityStatus:     domain.ValidityValid,
		ComplianceStatus:   domain.ComplianceCompliant,
		RiskLevel:          domain.RiskLow,
		DataConsistency:    "High",
		MissingInformation: []string{},
		DataQualityIssues:  []string{},
		ComplianceIssues:   []string{},
		OCRConfidence:      extraction.Confidence,
		Provider:           "mock",
	}
	a.ApplyScore()
	return a, nil
}

func (m *MockDocumentAnalyzer) Name() string  { return "mock" }
func (m *MockDocumentAnalyzer) Model() string { return "mock-model" }
func (m *MockDocumentAnalyzer) Close() error  { return nil }

func (m *MockDocumentAnalyzer) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// Calls returns how many times Analyze was called
func (m *MockDocumentAnalyzer) Calls() int {
	return int(m.calls.Load())
}
