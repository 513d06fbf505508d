package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// RecordStore persists pipeline results and serves dashboard queries.
// All Save methods are upserts keyed by the record's natural ID.
// Lookups of missing records return domain.ErrNotFound.
type RecordStore interface {
	// Init prepares the store (schema, migrations).
	Init(ctx context.Context) error

	// SaveExtraction upserts the OCR result of a document.
	SaveExtraction(ctx context.Context, result *domain.ExtractionResult) error

	// SaveAnalysis upserts the compliance assessment of a document.
	SaveAnalysis(ctx context.Context, result *domain.AnalysisResult) error

	// SaveEmployee upserts employee details linked to documents.
	SaveEmployee(ctx context.Context, employee *domain.EmployeeInfo) error

	// SaveJobRecord upserts a sync run record by JobID.
	SaveJobRecord(ctx context.Context, record *domain.SyncJobRecord) error

	// GetJobRecord retrieves a sync run record.
	GetJobRecord(ctx context.Context, jobID string) (*domain.SyncJobRecord, error)

	// LatestJobRecord returns the most recently started run of any status.
	LatestJobRecord(ctx context.Context) (*domain.SyncJobRecord, error)

	// LatestCompletedJobRecord returns the most recently completed run.
	LatestCompletedJobRecord(ctx context.Context) (*domain.SyncJobRecord, error)

	// ListJobRecords returns the newest runs first.
	ListJobRecords(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error)

	// SaveJobExecution appends to the scheduler execution log.
	SaveJobExecution(ctx context.Context, execution *domain.JobExecution) error

	// ListJobExecutions returns the newest executions of a job first.
	ListJobExecutions(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error)

	// GetAnalysis retrieves the stored assessment of a document.
	GetAnalysis(ctx context.Context, documentID string) (*domain.AnalysisResult, error)

	// GetExtraction retrieves the stored OCR result of a document.
	GetExtraction(ctx context.Context, documentID string) (*domain.ExtractionResult, error)

	// QueryDocuments lists assessments matching the filter, newest first.
	QueryDocuments(ctx context.Context, filter domain.DocumentFilter, now time.Time) ([]*domain.AnalysisResult, error)

	// AggregateStats computes the dashboard summary as seen from now.
	AggregateStats(ctx context.Context, now time.Time) (*domain.Stats, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// DocumentArchive keeps a copy of the raw bytes of processed documents.
type DocumentArchive interface {
	// Put stores the content and returns its location.
	// Storing the same document twice is not an error.
	Put(ctx context.Context, content *domain.DocumentContent) (string, error)

	// Ping checks the archive is reachable.
	Ping(ctx context.Context) error
}
