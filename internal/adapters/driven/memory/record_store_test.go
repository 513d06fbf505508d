package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func analysis(id string, docType domain.DocumentType, status domain.ComplianceStatus, analyzedAt time.Time) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		DocumentID:       id,
		DocumentType:     docType,
		ComplianceStatus: status,
		AnalyzedAt:       analyzedAt,
		DocumentScore:    100,
	}
}

func TestRecordStore_AnalysisUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	a := analysis("DOC-001", domain.DocumentTypePassport, domain.ComplianceCompliant, now)
	require.NoError(t, s.SaveAnalysis(ctx, a))

	a.ComplianceStatus = domain.ComplianceNonCompliant
	require.NoError(t, s.SaveAnalysis(ctx, a))

	got, err := s.GetAnalysis(ctx, "DOC-001")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplianceNonCompliant, got.ComplianceStatus)

	stats, err := s.AggregateStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments, "upsert must not duplicate")

	_, err = s.GetAnalysis(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_StoredCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	a := analysis("DOC-001", domain.DocumentTypePassport, domain.ComplianceCompliant, now)
	require.NoError(t, s.SaveAnalysis(ctx, a))
	a.DocumentScore = 0

	got, err := s.GetAnalysis(ctx, "DOC-001")
	require.NoError(t, err)
	assert.Equal(t, 100, got.DocumentScore)
}

func TestRecordStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	expiry := now.AddDate(1, 0, 0)
	a := analysis("DOC-001", domain.DocumentTypePassport, domain.ComplianceCompliant, now)
	a.MissingInformation = []string{"holderName"}
	a.Recommendations = []string{"renew"}
	a.ExpiryDate = &expiry
	require.NoError(t, s.SaveAnalysis(ctx, a))

	a.MissingInformation[0] = "mutated"
	a.Recommendations = append(a.Recommendations[:0], "mutated")
	*a.ExpiryDate = now

	got, err := s.GetAnalysis(ctx, "DOC-001")
	require.NoError(t, err)
	assert.Equal(t, []string{"holderName"}, got.MissingInformation)
	assert.Equal(t, []string{"renew"}, got.Recommendations)
	assert.True(t, got.ExpiryDate.Equal(expiry))

	got.ComplianceIssues = append(got.ComplianceIssues, "leak")
	got.MissingInformation[0] = "leak"
	again, err := s.GetAnalysis(ctx, "DOC-001")
	require.NoError(t, err)
	assert.Empty(t, again.ComplianceIssues)
	assert.Equal(t, "holderName", again.MissingInformation[0])

	ex := &domain.ExtractionResult{
		DocumentID:      "DOC-001",
		ExtractedFields: map[string]string{"passportNumber": "P1"},
		Tables:          []domain.Table{{Headers: []string{"Name"}, Rows: [][]string{{"John"}}}},
	}
	require.NoError(t, s.SaveExtraction(ctx, ex))
	ex.ExtractedFields["passportNumber"] = "mutated"
	ex.Tables[0].Rows[0][0] = "mutated"

	gotEx, err := s.GetExtraction(ctx, "DOC-001")
	require.NoError(t, err)
	assert.Equal(t, "P1", gotEx.ExtractedFields["passportNumber"])
	assert.Equal(t, "John", gotEx.Tables[0].Rows[0][0])

	completed := now
	require.NoError(t, s.SaveJobRecord(ctx, &domain.SyncJobRecord{JobID: "job-1", StartedAt: now, CompletedAt: &completed}))
	completed = now.Add(time.Hour)
	job, err := s.GetJobRecord(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, job.CompletedAt.Equal(now))
}

func TestRecordStore_DepartmentFromEmployee(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	a := analysis("DOC-001", domain.DocumentTypePassport, domain.ComplianceCompliant, now)
	a.EmployeeID = "EMP-5432"
	require.NoError(t, s.SaveAnalysis(ctx, a))
	require.NoError(t, s.SaveEmployee(ctx, &domain.EmployeeInfo{EmployeeID: "EMP-5432", Name: "John Smith", Department: "HR"}))
	// A later partial update keeps the known fields.
	require.NoError(t, s.SaveEmployee(ctx, &domain.EmployeeInfo{EmployeeID: "EMP-5432", Email: "john@example.com"}))

	got, err := s.GetAnalysis(ctx, "DOC-001")
	require.NoError(t, err)
	assert.Equal(t, "HR", got.Department)

	stats, err := s.AggregateStats(ctx, now)
	require.NoError(t, err)
	require.Len(t, stats.DepartmentCompliance, 1)
	assert.Equal(t, "HR", stats.DepartmentCompliance[0].Department)
}

func TestRecordStore_QueryDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	soon := now.AddDate(0, 0, 10)
	later := now.AddDate(0, 0, 90)
	docs := []*domain.AnalysisResult{
		analysis("DOC-1", domain.DocumentTypePassport, domain.ComplianceCompliant, now.Add(-3*time.Hour)),
		analysis("DOC-2", domain.DocumentTypeWorkPermit, domain.ComplianceNeedsReview, now.Add(-2*time.Hour)),
		analysis("DOC-3", domain.DocumentTypeWorkPermit, domain.ComplianceCompliant, now.Add(-1*time.Hour)),
	}
	docs[1].ExpiryDate = &soon
	docs[1].RequiresManualReview = true
	docs[2].ExpiryDate = &later
	for _, d := range docs {
		require.NoError(t, s.SaveAnalysis(ctx, d))
	}

	within30 := 30
	review := true
	tests := []struct {
		name   string
		filter domain.DocumentFilter
		want   []string
	}{
		{"all newest first", domain.DocumentFilter{}, []string{"DOC-3", "DOC-2", "DOC-1"}},
		{"by type", domain.DocumentFilter{Type: domain.DocumentTypeWorkPermit}, []string{"DOC-3", "DOC-2"}},
		{"by status", domain.DocumentFilter{Status: domain.ComplianceCompliant}, []string{"DOC-3", "DOC-1"}},
		{"expiring within 30 days", domain.DocumentFilter{ExpiringWithinDays: &within30}, []string{"DOC-2"}},
		{"requires review", domain.DocumentFilter{RequiresReview: &review}, []string{"DOC-2"}},
		{"paged", domain.DocumentFilter{Limit: 1, Offset: 1}, []string{"DOC-2"}},
		{"offset past end", domain.DocumentFilter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryDocuments(ctx, tt.filter, now)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, a := range got {
				ids = append(ids, a.DocumentID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRecordStore_JobRecords(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	_, err := s.LatestJobRecord(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := domain.NewSyncJobRecord("sync_1", now.Add(-2*time.Hour))
	first.Complete(now.Add(-time.Hour))
	second := domain.NewSyncJobRecord("sync_2", now)
	require.NoError(t, s.SaveJobRecord(ctx, first))
	require.NoError(t, s.SaveJobRecord(ctx, second))

	latest, err := s.LatestJobRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sync_2", latest.JobID)

	completed, err := s.LatestCompletedJobRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sync_1", completed.JobID)

	jobs, err := s.ListJobRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "sync_2", jobs[0].JobID)
}

func TestRecordStore_JobExecutions(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveJobExecution(ctx, &domain.JobExecution{
			ID:         fmt.Sprintf("exec-%d", i),
			JobName:    "document-sync",
			Status:     domain.ExecutionSuccess,
			ExecutedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.SaveJobExecution(ctx, &domain.JobExecution{ID: "other", JobName: "other"}))

	got, err := s.ListJobExecutions(ctx, "document-sync", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exec-2", got[0].ID)
	assert.Equal(t, "exec-1", got[1].ID)
}

func TestRecordStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("DOC-%03d", i)
			_ = s.SaveExtraction(ctx, &domain.ExtractionResult{DocumentID: id})
			_ = s.SaveAnalysis(ctx, analysis(id, domain.DocumentTypePassport, domain.ComplianceCompliant, now))
		}(i)
	}
	wg.Wait()

	stats, err := s.AggregateStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalDocuments)
}
