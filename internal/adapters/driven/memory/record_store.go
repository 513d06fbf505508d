// Package memory keeps records in process memory. It backs single-instance
// deployments that run without PostgreSQL, and loses everything on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore implements driven.RecordStore with maps guarded by a RWMutex.
// Records are deep-copied on the way in and out.
type RecordStore struct {
	mu          sync.RWMutex
	extractions map[string]domain.ExtractionResult
	analyses    map[string]domain.AnalysisResult
	employees   map[string]domain.EmployeeInfo
	jobs        map[string]domain.SyncJobRecord
	executions  []domain.JobExecution
}

// NewRecordStore creates an empty store
func NewRecordStore() *RecordStore {
	return &RecordStore{
		extractions: make(map[string]domain.ExtractionResult),
		analyses:    make(map[string]domain.AnalysisResult),
		employees:   make(map[string]domain.EmployeeInfo),
		jobs:        make(map[string]domain.SyncJobRecord),
	}
}

func (s *RecordStore) Init(ctx context.Context) error { return nil }

func (s *RecordStore) Ping(ctx context.Context) error { return nil }

func (s *RecordStore) SaveExtraction(ctx context.Context, r *domain.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractions[r.DocumentID] = cloneExtraction(*r)
	return nil
}

func (s *RecordStore) GetExtraction(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.extractions[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r = cloneExtraction(r)
	return &r, nil
}

func (s *RecordStore) SaveAnalysis(ctx context.Context, a *domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.DocumentID] = cloneAnalysis(*a)
	return nil
}

func (s *RecordStore) GetAnalysis(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.withDepartment(a), nil
}

// withDepartment copies a record and fills a missing department from the
// employee record. Callers hold the lock.
func (s *RecordStore) withDepartment(a domain.AnalysisResult) *domain.AnalysisResult {
	a = cloneAnalysis(a)
	if a.Department == "" && a.EmployeeID != "" {
		a.Department = s.employees[a.EmployeeID].Department
	}
	return &a
}

// SaveEmployee merges non-empty fields into the stored employee
func (s *RecordStore) SaveEmployee(ctx context.Context, e *domain.EmployeeInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.employees[e.EmployeeID]
	merged.EmployeeID = e.EmployeeID
	if e.Name != "" {
		merged.Name = e.Name
	}
	if e.Department != "" {
		merged.Department = e.Department
	}
	if e.Email != "" {
		merged.Email = e.Email
	}
	merged.UpdatedAt = e.UpdatedAt
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = time.Now().UTC()
	}
	s.employees[e.EmployeeID] = merged
	return nil
}

// QueryDocuments lists assessments matching the filter, newest first
func (s *RecordStore) QueryDocuments(ctx context.Context, filter domain.DocumentFilter, now time.Time) ([]*domain.AnalysisResult, error) {
	filter.Normalize()

	s.mu.RLock()
	var matched []*domain.AnalysisResult
	for _, a := range s.analyses {
		if filter.Matches(&a, now) {
			matched = append(matched, s.withDepartment(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].AnalyzedAt.Equal(matched[j].AnalyzedAt) {
			return matched[i].AnalyzedAt.After(matched[j].AnalyzedAt)
		}
		return matched[i].DocumentID < matched[j].DocumentID
	})

	if filter.Offset >= len(matched) {
		return []*domain.AnalysisResult{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	return matched[filter.Offset:end], nil
}

func (s *RecordStore) AggregateStats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	s.mu.RLock()
	all := make([]*domain.AnalysisResult, 0, len(s.analyses))
	for _, a := range s.analyses {
		all = append(all, s.withDepartment(a))
	}
	s.mu.RUnlock()
	return domain.ComputeStats(all, now), nil
}

func (s *RecordStore) SaveJobRecord(ctx context.Context, r *domain.SyncJobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[r.JobID] = cloneJob(*r)
	return nil
}

func (s *RecordStore) GetJobRecord(ctx context.Context, jobID string) (*domain.SyncJobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r = cloneJob(r)
	return &r, nil
}

func (s *RecordStore) LatestJobRecord(ctx context.Context) (*domain.SyncJobRecord, error) {
	jobs := s.sortedJobs(func(r *domain.SyncJobRecord) bool { return true })
	if len(jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	return jobs[0], nil
}

func (s *RecordStore) LatestCompletedJobRecord(ctx context.Context) (*domain.SyncJobRecord, error) {
	jobs := s.sortedJobs(func(r *domain.SyncJobRecord) bool {
		return r.Status == domain.SyncJobCompleted && r.CompletedAt != nil
	})
	if len(jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CompletedAt.After(*jobs[j].CompletedAt) })
	return jobs[0], nil
}

func (s *RecordStore) ListJobRecords(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error) {
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}
	jobs := s.sortedJobs(func(r *domain.SyncJobRecord) bool { return true })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// sortedJobs returns copies of the matching records, newest start first
func (s *RecordStore) sortedJobs(keep func(*domain.SyncJobRecord) bool) []*domain.SyncJobRecord {
	s.mu.RLock()
	out := make([]*domain.SyncJobRecord, 0, len(s.jobs))
	for _, r := range s.jobs {
		if keep(&r) {
			c := cloneJob(r)
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].JobID > out[j].JobID
	})
	return out
}

func (s *RecordStore) SaveJobExecution(ctx context.Context, e *domain.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, cloneExecution(*e))
	return nil
}

func (s *RecordStore) ListJobExecutions(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}

	s.mu.RLock()
	var out []*domain.JobExecution
	for i := len(s.executions) - 1; i >= 0 && len(out) < limit; i-- {
		if e := s.executions[i]; e.JobName == jobName {
			c := cloneExecution(e)
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()
	return out, nil
}
