package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driving"
)

// Ensure complianceService implements ComplianceService
var _ driving.ComplianceService = (*complianceService)(nil)

const (
	// DefaultScheduleJobName is the schedule the composition root registers
	DefaultScheduleJobName = "compliance_document_sync"

	defaultJobListLimit = 20
	maxJobListLimit     = 100
	healthProbeTimeout  = 5 * time.Second
)

type complianceService struct {
	scheduler *Scheduler
	job       *SyncJob
	store     driven.RecordStore
	connector driven.SourceConnector
	extractor driven.TextExtractor
	analyzer  driven.DocumentAnalyzer
	lock      driven.DistributedLock
	archive   driven.DocumentArchive
	runtime   *domain.RuntimeConfig
	jobName   string
	now       func() time.Time
	logger    *slog.Logger
}

// ComplianceServiceConfig holds dependencies for the compliance service.
type ComplianceServiceConfig struct {
	Scheduler *Scheduler
	Job       *SyncJob
	Store     driven.RecordStore
	Connector driven.SourceConnector
	Extractor driven.TextExtractor
	Analyzer  driven.DocumentAnalyzer
	Lock      driven.DistributedLock  // Optional
	Archive   driven.DocumentArchive  // Optional
	Runtime   *domain.RuntimeConfig   // Optional
	JobName   string                  // Job name used for manual triggers
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewComplianceService creates a new ComplianceService
func NewComplianceService(cfg ComplianceServiceConfig) driving.ComplianceService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	jobName := cfg.JobName
	if jobName == "" {
		jobName = DefaultScheduleJobName
	}
	return &complianceService{
		scheduler: cfg.Scheduler,
		job:       cfg.Job,
		store:     cfg.Store,
		connector: cfg.Connector,
		extractor: cfg.Extractor,
		analyzer:  cfg.Analyzer,
		lock:      cfg.Lock,
		archive:   cfg.Archive,
		runtime:   cfg.Runtime,
		jobName:   jobName,
		now:       now,
		logger:    logger,
	}
}

// TriggerSync claims a sync run and starts it in the background.
// A run in progress on this or another instance suppresses the trigger.
func (s *complianceService) TriggerSync(ctx context.Context) (*domain.TriggerResult, error) {
	result, err := s.scheduler.Dispatch(ctx, s.jobName)
	if err != nil {
		return nil, fmt.Errorf("trigger sync: %w", err)
	}
	return result, nil
}

// GetStatus reports on the sync service
func (s *complianceService) GetStatus(ctx context.Context) (*domain.ServiceStatus, error) {
	status := &domain.ServiceStatus{
		Running:         s.job.IsRunning(),
		ActiveSchedules: s.scheduler.ActiveJobs(),
		Providers:       s.runtime.Snapshot(),
	}

	last, err := s.store.LatestJobRecord(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("latest job record: %w", err)
	default:
		status.LastJob = last
	}
	return status, nil
}

// GetStats returns the dashboard summary
func (s *complianceService) GetStats(ctx context.Context) (*domain.Stats, error) {
	return s.store.AggregateStats(ctx, s.now())
}

// HealthCheck probes every collaborator in parallel.
// The database and lock are required; the source, OCR, LLM and archive
// degrade to synthetic data and so only degrade the report.
func (s *complianceService) HealthCheck(ctx context.Context) *domain.HealthReport {
	type probe struct {
		name     string
		required bool
		ping     func(context.Context) error
	}
	probes := []probe{
		{"database", true, s.store.Ping},
		{"opentext", false, s.connector.Ping},
		{"ocr", false, s.extractor.Ping},
		{"llm", false, s.analyzer.Ping},
	}
	if s.lock != nil {
		probes = append(probes, probe{"lock", true, s.lock.Ping})
	}
	if s.archive != nil {
		probes = append(probes, probe{"archive", false, s.archive.Ping})
	}

	results := make([]domain.SubsystemHealth, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			defer cancel()

			start := s.now()
			err := p.ping(pctx)
			h := domain.SubsystemHealth{Name: p.name, State: domain.HealthHealthy, Latency: s.now().Sub(start)}
			if err != nil {
				h.State = domain.HealthDegraded
				if p.required {
					h.State = domain.HealthUnhealthy
				}
				h.Message = err.Error()
			}
			results[i] = h
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewHealthReport(results, s.now())
	if report.State != domain.HealthHealthy {
		s.logger.Warn("health check not healthy", "state", report.State)
	}
	return report
}

// QueryDocuments lists assessments matching the filter
func (s *complianceService) QueryDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.AnalysisResult, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, domain.ErrInvalidInput
	}
	if filter.ExpiringWithinDays != nil && *filter.ExpiringWithinDays < 0 {
		return nil, domain.ErrInvalidInput
	}
	filter.Normalize()
	return s.store.QueryDocuments(ctx, filter, s.now())
}

// GetDocument returns the stored assessment and extraction of a document
func (s *complianceService) GetDocument(ctx context.Context, documentID string) (*domain.DocumentDetail, error) {
	if documentID == "" {
		return nil, domain.ErrInvalidInput
	}
	analysis, err := s.store.GetAnalysis(ctx, documentID)
	if err != nil {
		return nil, err
	}

	detail := &domain.DocumentDetail{DocumentID: documentID, Analysis: analysis}
	extraction, err := s.store.GetExtraction(ctx, documentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get extraction: %w", err)
	default:
		detail.Extraction = extraction
	}
	return detail, nil
}

// ListSyncJobs returns recent sync runs, newest first
func (s *complianceService) ListSyncJobs(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error) {
	return s.store.ListJobRecords(ctx, clampLimit(limit))
}

// JobHistory returns the execution log of a schedule
func (s *complianceService) JobHistory(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	if jobName == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.scheduler.History(ctx, jobName, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultJobListLimit
	}
	return min(limit, maxJobListLimit)
}
