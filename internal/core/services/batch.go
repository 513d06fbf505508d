package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// DefaultConcurrency is how many documents a batch processes at once
const DefaultConcurrency = 3

// DocumentProcessor processes a single document
type DocumentProcessor interface {
	Process(ctx context.Context, doc *domain.DocumentReference) (*domain.AnalysisResult, error)
}

// BatchRunner processes documents in fixed windows. Every document in a
// window runs in parallel and the next window starts only when the whole
// window has finished.
type BatchRunner struct {
	processor   DocumentProcessor
	concurrency int
	metrics     driven.PipelineMetrics
	logger      *slog.Logger
}

// BatchRunnerConfig holds dependencies for BatchRunner.
type BatchRunnerConfig struct {
	Processor   DocumentProcessor
	Concurrency int // Window size (default: 3)
	Metrics     driven.PipelineMetrics
	Logger      *slog.Logger
}

// NewBatchRunner creates a new batch runner.
func NewBatchRunner(cfg BatchRunnerConfig) *BatchRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &BatchRunner{
		processor:   cfg.Processor,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// RunBatch processes docs and counts the outcomes.
// A document whose processing errors or panics counts as failed.
func (r *BatchRunner) RunBatch(ctx context.Context, docs []*domain.DocumentReference) domain.BatchResult {
	var result domain.BatchResult

	for start := 0; start < len(docs); start += r.concurrency {
		if ctx.Err() != nil {
			r.logger.Warn("batch cancelled", "remaining", len(docs)-start)
			break
		}
		end := min(start+r.concurrency, len(docs))

		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		for _, doc := range docs[start:end] {
			g.Go(func() error {
				analysis, err := r.processOne(ctx, doc)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					r.metrics.DocumentFinished(driven.OutcomeFailed, doc.Type, 0)
					r.logger.Error("document failed", "document_id", doc.ID, "error", err)
					return nil
				}
				result.Processed++
				if analysis != nil && analysis.ValidityStatus == domain.ValidityProcessingFailed {
					result.Degraded++
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	r.logger.Info("batch finished",
		"documents", len(docs),
		"processed", result.Processed,
		"failed", result.Failed,
		"degraded", result.Degraded,
	)
	return result
}

func (r *BatchRunner) processOne(ctx context.Context, doc *domain.DocumentReference) (analysis *domain.AnalysisResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic processing %s: %v", doc.ID, rec)
		}
	}()
	return r.processor.Process(ctx, doc)
}
