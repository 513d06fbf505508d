package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// JobRunner runs one sync under a given run ID
type JobRunner interface {
	Run(ctx context.Context, jobID string) (*domain.RunResult, error)
}

// RunClaim is a run whose guard is held but which has not started.
// Exactly one of Run or Release must be called.
type RunClaim interface {
	Run(ctx context.Context, jobID string) (*domain.RunResult, error)
	Release()
}

// JobClaimer is a JobRunner that can reserve a run before starting it
type JobClaimer interface {
	JobRunner
	Claim(ctx context.Context) (RunClaim, error)
}

// Scheduler runs a job periodically under named schedules.
// Each schedule runs immediately on start and then on every tick. Overlap is
// left to the job, which suppresses runs while one is in progress.
type Scheduler struct {
	job    JobRunner
	store  driven.RecordStore
	logger *slog.Logger
	now    func() time.Time

	defaultInterval time.Duration

	mu   sync.Mutex
	jobs map[string]*scheduledJob
	wg   sync.WaitGroup
}

type scheduledJob struct {
	name      string
	interval  time.Duration
	startedAt time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once

	mu        sync.Mutex
	lastRun   *time.Time
	nextRun   time.Time
	runCount  int
	lastError string
}

func (sj *scheduledJob) stop() {
	sj.stopOnce.Do(func() { close(sj.stopCh) })
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Job             JobRunner
	Store           driven.RecordStore // Execution log
	Logger          *slog.Logger
	DefaultInterval time.Duration // Used when Start gets no interval (default: 4h)
	Now             func() time.Time
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.DefaultInterval
	if interval <= 0 {
		interval = domain.DefaultScheduleInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		job:             cfg.Job,
		store:           cfg.Store,
		logger:          logger,
		now:             now,
		defaultInterval: interval,
		jobs:            make(map[string]*scheduledJob),
	}
}

// Start registers a schedule and runs it immediately.
// It runs until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, jobName string, interval time.Duration) (*domain.ScheduleInfo, error) {
	if jobName == "" {
		return nil, domain.ErrInvalidInput
	}
	if interval <= 0 {
		interval = s.defaultInterval
	}

	s.mu.Lock()
	if _, exists := s.jobs[jobName]; exists {
		s.mu.Unlock()
		s.logger.Warn("schedule already running", "job_name", jobName)
		return nil, domain.ErrAlreadyExists
	}
	now := s.now()
	sj := &scheduledJob{
		name:      jobName,
		interval:  interval,
		startedAt: now,
		stopCh:    make(chan struct{}),
		nextRun:   now,
	}
	s.jobs[jobName] = sj
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("schedule starting", "job_name", jobName, "interval", interval)

	go s.loop(ctx, sj)

	return &domain.ScheduleInfo{
		JobName:   jobName,
		Interval:  interval,
		StartedAt: now,
		NextRun:   now.Add(interval),
	}, nil
}

// loop is the per-schedule ticker loop.
func (s *Scheduler) loop(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.execute(ctx, sj.name)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("schedule context cancelled", "job_name", sj.name)
			return
		case <-sj.stopCh:
			return
		case <-ticker.C:
			s.execute(ctx, sj.name)
		}
	}
}

// Stop removes a schedule. A run in flight is left to finish.
// Returns false when no schedule has that name.
func (s *Scheduler) Stop(jobName string) bool {
	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	if exists {
		delete(s.jobs, jobName)
	}
	s.mu.Unlock()

	if !exists {
		s.logger.Warn("schedule not found", "job_name", jobName)
		return false
	}
	sj.stop()
	s.logger.Info("schedule stopped", "job_name", jobName)
	return true
}

// StopAll removes every schedule and returns their names.
func (s *Scheduler) StopAll() []string {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]*scheduledJob)
	s.mu.Unlock()

	names := make([]string, 0, len(jobs))
	for name, sj := range jobs {
		sj.stop()
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		s.logger.Info("all schedules stopped", "jobs", names)
	}
	return names
}

// Wait blocks until every schedule loop has exited, including any run in flight.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// TriggerNow runs the job once, synchronously.
func (s *Scheduler) TriggerNow(ctx context.Context, jobName string) *domain.TriggerResult {
	s.logger.Info("manually triggered job", "job_name", jobName)
	return s.execute(ctx, jobName)
}

// Status reports on a schedule. Unknown names report inactive.
func (s *Scheduler) Status(jobName string) *domain.SchedulerStatus {
	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	s.mu.Unlock()

	if !exists {
		return &domain.SchedulerStatus{JobName: jobName, Active: false}
	}

	sj.mu.Lock()
	defer sj.mu.Unlock()
	next := sj.nextRun
	status := &domain.SchedulerStatus{
		JobName:   jobName,
		Active:    true,
		Interval:  sj.interval,
		NextRun:   &next,
		RunCount:  sj.runCount,
		LastError: sj.lastError,
	}
	if sj.lastRun != nil {
		last := *sj.lastRun
		status.LastRun = &last
	}
	return status
}

// ActiveJobs returns the names of registered schedules, sorted
func (s *Scheduler) ActiveJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// History returns the newest executions of a job first.
// Without an execution log there is no history.
func (s *Scheduler) History(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	if s.store == nil {
		return []*domain.JobExecution{}, nil
	}
	return s.store.ListJobExecutions(ctx, jobName, limit)
}

// Dispatch starts the job in the background and reports whether it started.
// The run is claimed before Dispatch returns, so a run in progress here or on
// another instance reports Suppressed. Jobs that cannot be claimed ahead run
// synchronously. The error is set when the claim itself failed.
func (s *Scheduler) Dispatch(ctx context.Context, jobName string) (*domain.TriggerResult, error) {
	s.logger.Info("manually triggered job", "job_name", jobName)

	started := s.now()
	runID := domain.ScheduledRunID(jobName, started)

	claimer, ok := s.job.(JobClaimer)
	if !ok {
		result, err := s.job.Run(ctx, runID)
		return s.finish(ctx, jobName, runID, started, result, err), nil
	}

	claim, err := claimer.Claim(ctx)
	if err != nil {
		trigger := s.finish(ctx, jobName, runID, started, nil, err)
		if trigger.Suppressed {
			return trigger, nil
		}
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := claim.Run(runCtx, runID)
		s.finish(runCtx, jobName, runID, started, result, err)
	}()

	return &domain.TriggerResult{JobName: jobName, JobID: runID, Triggered: true}, nil
}

// execute runs the job once and records the execution.
func (s *Scheduler) execute(ctx context.Context, jobName string) *domain.TriggerResult {
	started := s.now()
	runID := domain.ScheduledRunID(jobName, started)

	result, err := s.job.Run(ctx, runID)
	return s.finish(ctx, jobName, runID, started, result, err)
}

// finish records the outcome of a run in the execution log and schedule state.
func (s *Scheduler) finish(ctx context.Context, jobName, runID string, started time.Time, result *domain.RunResult, err error) *domain.TriggerResult {
	exec := &domain.JobExecution{
		ID:         uuid.NewString(),
		JobName:    jobName,
		JobID:      runID,
		ExecutedAt: started,
		Duration:   s.now().Sub(started),
	}
	trigger := &domain.TriggerResult{JobName: jobName}

	switch {
	case err == nil:
		exec.Status = domain.ExecutionSuccess
		exec.Result = result
		trigger.Triggered = true
		trigger.JobID = runID
		trigger.Result = result
	case errors.Is(err, domain.ErrSyncInProgress):
		exec.Status = domain.ExecutionSkipped
		exec.ErrorMessage = err.Error()
		trigger.Suppressed = true
		s.logger.Info("scheduled run suppressed", "job_name", jobName, "job_id", runID)
	default:
		exec.Status = domain.ExecutionFailed
		exec.ErrorMessage = err.Error()
		trigger.Triggered = true
		trigger.JobID = runID
		trigger.Error = err.Error()
		s.logger.Error("scheduled run failed", "job_name", jobName, "job_id", runID, "error", err)
	}

	if s.store != nil {
		if err := s.store.SaveJobExecution(context.WithoutCancel(ctx), exec); err != nil {
			s.logger.Warn("failed to log job execution", "job_name", jobName, "error", err)
		}
	}

	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	s.mu.Unlock()
	if exists {
		sj.mu.Lock()
		sj.lastRun = &started
		sj.nextRun = started.Add(sj.interval)
		sj.runCount++
		sj.lastError = exec.ErrorMessage
		if exec.Status == domain.ExecutionSkipped {
			sj.lastError = ""
		}
		sj.mu.Unlock()
	}

	return trigger
}
