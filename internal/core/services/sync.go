package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

const (
	// DefaultSyncLockName is the distributed lock guarding sync runs
	DefaultSyncLockName = "document-sync"
	// DefaultSyncLockTTL bounds how long a crashed instance blocks others
	DefaultSyncLockTTL = 10 * time.Minute
)

// Ensure SyncJob can be claimed ahead of a run
var _ JobClaimer = (*SyncJob)(nil)

// BatchProcessor processes one page of documents
type BatchProcessor interface {
	RunBatch(ctx context.Context, docs []*domain.DocumentReference) domain.BatchResult
}

// SyncJob runs an incremental sync from the source:
//  1. Create a running job record
//  2. Read the watermark of the last completed run
//  3. Page through documents modified since the watermark
//  4. Process each page through the batch runner
//  5. Mark the record completed with the completion time as the new watermark
//
// Only one run may be active per instance, and per cluster when a lock is configured.
type SyncJob struct {
	connector driven.SourceConnector
	store     driven.RecordStore
	runner    BatchProcessor
	lock      driven.DistributedLock
	metrics   driven.PipelineMetrics
	logger    *slog.Logger
	now       func() time.Time

	lockName string
	lockTTL  time.Duration

	state atomic.Int32
}

// SyncJobConfig holds dependencies for SyncJob.
type SyncJobConfig struct {
	Connector driven.SourceConnector
	Store     driven.RecordStore
	Runner    BatchProcessor
	Lock      driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Metrics   driven.PipelineMetrics
	Logger    *slog.Logger
	Now       func() time.Time

	LockName string        // default: "document-sync"
	LockTTL  time.Duration // default: 10m, extended while the run is alive
}

// NewSyncJob creates a new sync job.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lockName := cfg.LockName
	if lockName == "" {
		lockName = DefaultSyncLockName
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultSyncLockTTL
	}

	return &SyncJob{
		connector: cfg.Connector,
		store:     cfg.Store,
		runner:    cfg.Runner,
		lock:      cfg.Lock,
		metrics:   metrics,
		logger:    logger,
		now:       now,
		lockName:  lockName,
		lockTTL:   lockTTL,
	}
}

// State returns the current run state
func (j *SyncJob) State() domain.RunState {
	return domain.RunState(j.state.Load())
}

// IsRunning reports whether a run is in progress on this instance
func (j *SyncJob) IsRunning() bool {
	return j.State() == domain.RunStateRunning
}

// Run performs one sync. An empty jobID gets a generated one.
// Overlapping calls return domain.ErrSyncInProgress without touching the store.
func (j *SyncJob) Run(ctx context.Context, jobID string) (*domain.RunResult, error) {
	claim, err := j.Claim(ctx)
	if err != nil {
		return nil, err
	}
	return claim.Run(ctx, jobID)
}

// Claim takes the run guard and, when configured, the distributed lock,
// without starting the run. The claim must be finished with Run or Release.
// A run in progress here or on another instance returns domain.ErrSyncInProgress.
func (j *SyncJob) Claim(ctx context.Context) (RunClaim, error) {
	if !j.state.CompareAndSwap(int32(domain.RunStateIdle), int32(domain.RunStateRunning)) {
		j.logger.Info("sync already in progress, skipping")
		return nil, domain.ErrSyncInProgress
	}

	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, j.lockName, j.lockTTL)
		if err != nil {
			j.state.Store(int32(domain.RunStateIdle))
			return nil, fmt.Errorf("acquire sync lock: %w", err)
		}
		if !acquired {
			j.state.Store(int32(domain.RunStateIdle))
			j.logger.Info("sync lock held by another instance, skipping")
			return nil, domain.ErrSyncInProgress
		}
	}
	return &syncClaim{job: j}, nil
}

// syncClaim holds the run guard until its run ends or it is released.
type syncClaim struct {
	job  *SyncJob
	once sync.Once
	used atomic.Bool
}

func (c *syncClaim) Run(ctx context.Context, jobID string) (*domain.RunResult, error) {
	if !c.used.CompareAndSwap(false, true) {
		return nil, domain.ErrSyncInProgress
	}
	defer c.release(ctx)

	j := c.job
	if j.lock != nil {
		stop := j.keepLockAlive(ctx)
		defer stop()
	}
	return j.run(ctx, jobID)
}

func (c *syncClaim) Release() {
	c.release(context.Background())
}

func (c *syncClaim) release(ctx context.Context) {
	c.once.Do(func() {
		j := c.job
		if j.lock != nil {
			if err := j.lock.Release(context.WithoutCancel(ctx), j.lockName); err != nil {
				j.logger.Warn("failed to release sync lock", "error", err)
			}
		}
		j.state.Store(int32(domain.RunStateIdle))
	})
}

func (j *SyncJob) run(ctx context.Context, jobID string) (*domain.RunResult, error) {
	started := j.now()
	if jobID == "" {
		jobID = domain.DefaultSyncJobID(started)
	}
	record := domain.NewSyncJobRecord(jobID, started)
	if err := j.store.SaveJobRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	j.logger.Info("starting sync", "job_id", jobID)

	if err := j.execute(ctx, record); err != nil {
		record.Fail(j.now(), err)
		if saveErr := j.store.SaveJobRecord(context.WithoutCancel(ctx), record); saveErr != nil {
			j.logger.Error("failed to mark job failed", "job_id", jobID, "error", saveErr)
		}
		j.metrics.RunFinished(domain.SyncJobFailed, record.Duration())
		j.logger.Error("sync failed", "job_id", jobID, "error", err)
		return nil, err
	}

	j.metrics.RunFinished(domain.SyncJobCompleted, record.Duration())
	j.logger.Info("sync completed",
		"job_id", jobID,
		"processed", record.DocumentsProcessed,
		"failed", record.DocumentsFailed,
		"degraded", record.DocumentsDegraded,
		"duration", record.Duration(),
	)

	return &domain.RunResult{
		JobID:     jobID,
		Processed: record.DocumentsProcessed,
		Failed:    record.DocumentsFailed,
		Degraded:  record.DocumentsDegraded,
		Duration:  record.Duration(),
	}, nil
}

func (j *SyncJob) execute(ctx context.Context, record *domain.SyncJobRecord) error {
	since, err := j.watermark(ctx)
	if err != nil {
		return err
	}
	if since != nil {
		j.logger.Info("incremental sync", "job_id", record.JobID, "since", since.Format(time.RFC3339))
	} else {
		j.logger.Info("full sync", "job_id", record.JobID)
	}

	types := domain.SupportedDocumentTypes()
	cursor := ""
	for {
		page, err := j.connector.ListBatch(ctx, since, types, cursor)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if len(page.Documents) == 0 {
			break
		}

		batch := j.runner.RunBatch(ctx, page.Documents)
		record.Add(batch)
		if err := j.store.SaveJobRecord(ctx, record); err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if !page.HasMore {
			break
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			j.logger.Warn("source reported more documents without a new cursor, stopping", "cursor", cursor)
			break
		}
		cursor = page.NextCursor
	}

	record.Complete(j.now())
	if err := j.store.SaveJobRecord(ctx, record); err != nil {
		return fmt.Errorf("complete job record: %w", err)
	}
	return nil
}

// watermark returns the completion time of the last completed run, or nil
// when no run has completed yet.
func (j *SyncJob) watermark(ctx context.Context) (*time.Time, error) {
	last, err := j.store.LatestCompletedJobRecord(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	return last.LastSyncTimestamp, nil
}

// keepLockAlive extends the lock at half its TTL until stopped.
func (j *SyncJob) keepLockAlive(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(j.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := j.lock.Extend(ctx, j.lockName, j.lockTTL); err != nil {
					j.logger.Warn("failed to extend sync lock", "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
