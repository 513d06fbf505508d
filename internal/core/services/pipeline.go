package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

const (
	// DefaultMaxRetries is how many attempts a document gets
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is scaled by 2^attempt between attempts
	DefaultBaseBackoff = time.Second

	analysisSource = "OpenText DMS"
)

// DocumentPipeline turns one document reference into a stored compliance record:
//  1. Download bytes and metadata
//  2. Archive the bytes (optional)
//  3. Extract text (OCR)
//  4. Store the extraction
//  5. Store employee details when known
//  6. Analyze
//  7. Store the analysis
//
// Failed attempts are retried with exponential backoff. When every attempt
// fails a "Processing Failed" record is stored instead.
type DocumentPipeline struct {
	connector driven.SourceConnector
	extractor driven.TextExtractor
	analyzer  driven.DocumentAnalyzer
	store     driven.RecordStore
	archive   driven.DocumentArchive
	metrics   driven.PipelineMetrics
	runtime   *domain.RuntimeConfig
	logger    *slog.Logger

	maxRetries  int
	baseBackoff time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// DocumentPipelineConfig holds dependencies for DocumentPipeline.
type DocumentPipelineConfig struct {
	Connector driven.SourceConnector
	Extractor driven.TextExtractor
	Analyzer  driven.DocumentAnalyzer
	Store     driven.RecordStore
	Archive   driven.DocumentArchive // Optional: keeps raw bytes
	Metrics   driven.PipelineMetrics // Optional
	Runtime   *domain.RuntimeConfig  // Optional: tracks synthetic stages
	Logger    *slog.Logger

	MaxRetries  int           // Attempts per document (default: 3)
	BaseBackoff time.Duration // Backoff unit (default: 1s)

	// Sleep and Now are injectable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewDocumentPipeline creates a new document pipeline.
func NewDocumentPipeline(cfg DocumentPipelineConfig) *DocumentPipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = DefaultBaseBackoff
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &DocumentPipeline{
		connector:   cfg.Connector,
		extractor:   cfg.Extractor,
		analyzer:    cfg.Analyzer,
		store:       cfg.Store,
		archive:     cfg.Archive,
		metrics:     metrics,
		runtime:     cfg.Runtime,
		logger:      logger,
		maxRetries:  maxRetries,
		baseBackoff: backoff,
		sleep:       sleep,
		now:         now,
	}
}

// Process runs the pipeline for one document and always yields an analysis.
// It returns an error only when the context ends or the failure record
// itself cannot be stored.
func (p *DocumentPipeline) Process(ctx context.Context, doc *domain.DocumentReference) (*domain.AnalysisResult, error) {
	start := p.now()
	var lastErr error

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		result, err := p.attempt(ctx, doc)
		if err == nil {
			p.metrics.DocumentFinished(driven.OutcomeProcessed, result.DocumentType, p.now().Sub(start))
			p.logger.Debug("document processed",
				"document_id", doc.ID,
				"attempt", attempt,
				"validity", result.ValidityStatus,
				"score", result.DocumentScore,
			)
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		p.logger.Warn("document processing attempt failed",
			"document_id", doc.ID,
			"attempt", attempt,
			"max_retries", p.maxRetries,
			"error", err,
		)

		if errors.Is(err, domain.ErrAuthentication) {
			break
		}
		if attempt < p.maxRetries {
			p.metrics.RetryAttempted()
			if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	failed := domain.NewProcessingFailedAnalysis(doc, lastErr.Error(), p.now())
	if err := p.store.SaveAnalysis(ctx, failed); err != nil {
		return nil, fmt.Errorf("store failure record for %s: %w", doc.ID, err)
	}

	p.metrics.DocumentFinished(driven.OutcomeDegraded, failed.DocumentType, p.now().Sub(start))
	p.logger.Error("document processing exhausted retries",
		"document_id", doc.ID,
		"error", lastErr,
	)
	return failed, nil
}

// backoff returns the wait after failed attempt k
func (p *DocumentPipeline) backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * p.baseBackoff
}

func (p *DocumentPipeline) attempt(ctx context.Context, doc *domain.DocumentReference) (*domain.AnalysisResult, error) {
	// Step 1: Download bytes and metadata
	content, err := p.connector.Download(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	metadata, err := p.connector.GetMetadata(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	p.observe(domain.StageSource, content.Synthetic || metadata.Synthetic)

	// Step 2: Archive
	if p.archive != nil {
		if uri, err := p.archive.Put(ctx, content); err != nil {
			p.logger.Warn("failed to archive document", "document_id", doc.ID, "error", err)
		} else {
			p.logger.Debug("document archived", "document_id", doc.ID, "uri", uri)
		}
	}

	// Step 3: Extract
	docType := doc.Type
	if docType == "" || docType == domain.DocumentTypeUnknown {
		docType = domain.InferDocumentType(doc.Name)
	}
	extraction, err := p.extractor.Extract(ctx, content, docType)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	extraction.DocumentID = doc.ID
	extraction.DocumentType = docType
	p.observe(domain.StageOCR, extraction.IsSynthetic())

	// Step 4: Store the extraction before analysis
	if err := p.store.SaveExtraction(ctx, extraction); err != nil {
		return nil, fmt.Errorf("save extraction: %w", err)
	}

	// Step 5: Employee details
	if doc.EmployeeID != "" {
		employee := &domain.EmployeeInfo{
			EmployeeID: doc.EmployeeID,
			Department: doc.Department,
			UpdatedAt:  p.now(),
		}
		if err := p.store.SaveEmployee(ctx, employee); err != nil {
			p.logger.Warn("failed to save employee", "employee_id", doc.EmployeeID, "error", err)
		}
	}

	// Step 6: Analyze
	actx := domain.AnalysisContext{
		EmployeeID:           doc.EmployeeID,
		Department:           doc.Department,
		Source:               analysisSource,
		RequiresVerification: true,
	}
	analysis, err := p.analyzer.Analyze(ctx, extraction, actx)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	analysis.DocumentID = doc.ID
	analysis.DocumentType = docType
	analysis.EmployeeID = doc.EmployeeID
	analysis.Department = doc.Department
	p.observe(domain.StageAnalysis, analysis.Provider == domain.ProviderSynthetic)

	// Step 7: Store the analysis
	if err := p.store.SaveAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	return analysis, nil
}

func (p *DocumentPipeline) observe(stage domain.Stage, synthetic bool) {
	p.runtime.ObserveStage(stage, synthetic)
	if synthetic {
		p.metrics.SyntheticResult(stage)
	}
}

// sleepContext waits for d or until ctx ends
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
