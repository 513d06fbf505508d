package driving

import (
	"context"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// ComplianceService is the operator and dashboard facade over the sync pipeline
type ComplianceService interface {
	// TriggerSync starts a sync in the background and returns its job ID.
	// A run already in progress suppresses it.
	TriggerSync(ctx context.Context) (*domain.TriggerResult, error)

	// GetStatus reports whether a sync is running, the last run and active schedules
	GetStatus(ctx context.Context) (*domain.ServiceStatus, error)

	// GetStats returns the dashboard summary
	GetStats(ctx context.Context) (*domain.Stats, error)

	// HealthCheck probes every collaborator
	HealthCheck(ctx context.Context) *domain.HealthReport

	// QueryDocuments lists assessments matching the filter
	QueryDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.AnalysisResult, error)

	// GetDocument returns the stored assessment and extraction of a document
	GetDocument(ctx context.Context, documentID string) (*domain.DocumentDetail, error)

	// ListSyncJobs returns recent sync runs, newest first
	ListSyncJobs(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error)

	// JobHistory returns the execution log of a schedule
	JobHistory(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error)
}
