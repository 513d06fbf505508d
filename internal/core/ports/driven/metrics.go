package driven

import (
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// DocumentOutcome is how a document left the pipeline
type DocumentOutcome string

const (
	OutcomeProcessed DocumentOutcome = "processed"
	OutcomeDegraded  DocumentOutcome = "degraded"
	OutcomeFailed    DocumentOutcome = "failed"
)

// PipelineMetrics records pipeline throughput and how often synthetic data was served.
type PipelineMetrics interface {
	// DocumentFinished records one document leaving the pipeline.
	DocumentFinished(outcome DocumentOutcome, docType domain.DocumentType, elapsed time.Duration)

	// SyntheticResult records a stage serving fabricated data.
	SyntheticResult(stage domain.Stage)

	// RetryAttempted records a pipeline retry.
	RetryAttempted()

	// RunFinished records the end of a sync run.
	RunFinished(status domain.SyncJobStatus, elapsed time.Duration)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) DocumentFinished(DocumentOutcome, domain.DocumentType, time.Duration) {}
func (NopMetrics) SyntheticResult(domain.Stage)                                      {}
func (NopMetrics) RetryAttempted()                                                   {}
func (NopMetrics) RunFinished(domain.SyncJobStatus, time.Duration)                   {}
