package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

var _ driven.RecordStore = (*MockRecordStore)(nil)

// MockRecordStore keeps records in maps. Hooks run before the default
// behavior and can inject errors.
type MockRecordStore struct {
	mu          sync.Mutex
	extractions map[string]*domain.ExtractionResult
	analyses    map[string]*domain.AnalysisResult
	employees   map[string]*domain.EmployeeInfo
	jobs        map[string]*domain.SyncJobRecord
	executions  []*domain.JobExecution

	// Writes counts every Save call keyed by method name
	Writes map[string]int

	SaveExtractionFn func(result *domain.ExtractionResult) error
	SaveAnalysisFn   func(result *domain.AnalysisResult) error
	SaveJobRecordFn  func(record *domain.SyncJobRecord) error
	PingFn           func() error
}

// NewMockRecordStore creates an empty store
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		extractions: make(map[string]*domain.ExtractionResult),
		analyses:    make(map[string]*domain.AnalysisResult),
		employees:   make(map[string]*domain.EmployeeInfo),
		jobs:        make(map[string]*domain.SyncJobRecord),
		Writes:      make(map[string]int),
	}
}

func (m *MockRecordStore) Init(ctx context.Context) error { return nil }

func (m *MockRecordStore) SaveExtraction(ctx context.Context, result *domain.ExtractionResult) error {
	if m.SaveExtractionFn != nil {
		if err := m.SaveExtractionFn(result); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes["SaveExtraction"]++
	cp := *result
	m.extractions[result.DocumentID] = &cp
	return nil
}

func (m *MockRecordStore) SaveAnalysis(ctx context.Context, result *domain.AnalysisResult) error {
	if m.SaveAnalysisFn != nil {
		if err := m.SaveAnalysisFn(result); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes["SaveAnalysis"]++
	cp := *result
	m.analyses[result.DocumentID] = &cp
	return nil
}

func (m *MockRecordStore) SaveEmployee(ctx context.Context, employee *domain.EmployeeInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes["SaveEmployee"]++
	cp := *employee
	m.employees[employee.EmployeeID] = &cp
	return nil
}

func (m *MockRecordStore) SaveJobRecord(ctx context.Context, record *domain.SyncJobRecord) error {
	if m.SaveJobRecordFn != nil {
		if err := m.SaveJobRecordFn(record); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes["SaveJobRecord"]++
	cp := *record
	m.jobs[record.JobID] = &cp
	return nil
}

func (m *MockRecordStore) GetJobRecord(ctx context.Context, jobID string) (*domain.SyncJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockRecordStore) sortedJobs() []*domain.SyncJobRecord {
	jobs := make([]*domain.SyncJobRecord, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.After(jobs[k].StartedAt) })
	return jobs
}

func (m *MockRecordStore) LatestJobRecord(ctx context.Context) (*domain.SyncJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := m.sortedJobs()
	if len(jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	return jobs[0], nil
}

func (m *MockRecordStore) LatestCompletedJobRecord(ctx context.Context) (*domain.SyncJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.sortedJobs() {
		if j.Status == domain.SyncJobCompleted {
			return j, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockRecordStore) ListJobRecords(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := m.sortedJobs()
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *MockRecordStore) SaveJobExecution(ctx context.Context, execution *domain.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes["SaveJobExecution"]++
	cp := *execution
	m.executions = append(m.executions, &cp)
	return nil
}

func (m *MockRecordStore) ListJobExecutions(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.JobExecution
	for i := len(m.executions) - 1; i >= 0; i-- {
		if m.executions[i].JobName == jobName {
			out = append(out, m.executions[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockRecordStore) GetAnalysis(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockRecordStore) GetExtraction(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.extractions[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockRecordStore) QueryDocuments(ctx context.Context, filter domain.DocumentFilter, now time.Time) ([]*domain.AnalysisResult, error) {
	filter.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*domain.AnalysisResult
	for _, a := range m.analyses {
		if filter.Matches(a, now) {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].DocumentID < matched[k].DocumentID })
	if filter.Offset >= len(matched) {
		return []*domain.AnalysisResult{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MockRecordStore) AggregateStats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*domain.AnalysisResult, 0, len(m.analyses))
	for _, a := range m.analyses {
		all = append(all, a)
	}
	return domain.ComputeStats(all, now), nil
}

func (m *MockRecordStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Analyses returns a copy of every stored analysis keyed by document ID
func (m *MockRecordStore) Analyses() map[string]*domain.AnalysisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.AnalysisResult, len(m.analyses))
	for k, v := range m.analyses {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Extractions returns a copy of every stored extraction keyed by document ID
func (m *MockRecordStore) Extractions() map[string]*domain.ExtractionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.ExtractionResult, len(m.extractions))
	for k, v := range m.extractions {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Employees returns a copy of every stored employee keyed by ID
func (m *MockRecordStore) Employees() map[string]*domain.EmployeeInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.EmployeeInfo, len(m.employees))
	for k, v := range m.employees {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Jobs returns every stored job record, newest first
func (m *MockRecordStore) Jobs() []*domain.SyncJobRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedJobs()
}

// WriteCount returns how many times a Save method was called
func (m *MockRecordStore) WriteCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes[method]
}
