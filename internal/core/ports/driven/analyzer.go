package driven

import (
	"context"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// DocumentAnalyzer assesses extracted text for compliance, usually with an LLM.
type DocumentAnalyzer interface {
	// Analyze produces the compliance assessment of an extraction.
	// Transport failures and malformed replies degrade to a synthetic result;
	// domain.ErrAuthentication and domain.ErrRateLimited are returned as errors.
	Analyze(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext) (*domain.AnalysisResult, error)

	// Name returns the provider name
	Name() string

	// Model returns the model name being used
	Model() string

	// Ping verifies the analyzer is available
	Ping(ctx context.Context) error

	// Close releases resources held by the analyzer
	Close() error
}
