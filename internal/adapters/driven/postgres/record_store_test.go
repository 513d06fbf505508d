package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*RecordStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRecordStore(&DB{DB: db}), mock
}

var analysisCols = []string{
	"document_id", "document_type", "employee_id", "department", "analyzed_at", "is_valid",
	"validity_status", "compliance_status", "risk_level", "expiry_date", "issue_date",
	"days_until_expiry", "is_expired", "is_expiring_soon", "data_consistency", "missing_information",
	"data_quality_issues", "compliance_issues", "data_completeness", "confidence_score", "recommendations",
	"priority", "ocr_confidence", "document_score", "requires_manual_review", "verification_required",
	"raw_analysis", "provider", "degraded",
}

func addAnalysisRow(rows *sqlmock.Rows, id, department string, expiry any) *sqlmock.Rows {
	return rows.AddRow(
		id, "passport", "EMP-5432", department, testNow, true,
		"Valid", "Compliant", "Low", expiry, nil,
		nil, false, false, "High", []byte("{}"),
		[]byte("{}"), []byte(`{"Document has expired"}`), 100, 95, []byte(`{"Renew passport",none}`),
		"Low", 0.95, 100, false, false,
		"{}", "openai", false,
	)
}

func TestRecordStore_SaveAnalysis(t *testing.T) {
	store, mock := newMockStore(t)
	expiry := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
	days := 2039
	a := &domain.AnalysisResult{
		DocumentID:       "DOC-001",
		DocumentType:     domain.DocumentTypePassport,
		EmployeeID:       "EMP-5432",
		Department:       "HR",
		AnalyzedAt:       testNow,
		IsValid:          domain.BoolPtr(true),
		ValidityStatus:   domain.ValidityValid,
		ComplianceStatus: domain.ComplianceCompliant,
		RiskLevel:        domain.RiskLow,
		ExpiryDate:       &expiry,
		DaysUntilExpiry:  &days,
		DataConsistency:  "High",
		DataCompleteness: 100,
		ConfidenceScore:  95,
		Priority:         "Low",
		OCRConfidence:    0.95,
		DocumentScore:    100,
		Provider:         "openai",
	}

	mock.ExpectExec("INSERT INTO document_analysis").
		WithArgs(
			"DOC-001", "passport", "EMP-5432", "HR", testNow,
			true, "Valid", "Compliant", "Low",
			expiry, nil, int64(days),
			false, false, "High",
			sqlmock.AnyArg(), // missing_information
			sqlmock.AnyArg(), // data_quality_issues
			sqlmock.AnyArg(), // compliance_issues
			100, 95,
			sqlmock.AnyArg(), // recommendations
			"Low", 0.95, 100, false, false, "", "openai", false,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveAnalysis(context.Background(), a); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestRecordStore_GetAnalysis(t *testing.T) {
	store, mock := newMockStore(t)
	expiry := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM document_analysis a").
		WithArgs("DOC-001").
		WillReturnRows(addAnalysisRow(sqlmock.NewRows(analysisCols), "DOC-001", "HR", expiry))

	a, err := store.GetAnalysis(context.Background(), "DOC-001")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if a.DocumentType != domain.DocumentTypePassport {
		t.Errorf("expected passport, got %s", a.DocumentType)
	}
	if a.IsValid == nil || !*a.IsValid {
		t.Error("expected is_valid true")
	}
	if a.ExpiryDate == nil || !a.ExpiryDate.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, a.ExpiryDate)
	}
	if a.IssueDate != nil || a.DaysUntilExpiry != nil {
		t.Error("expected NULL columns to scan as nil")
	}
	if len(a.ComplianceIssues) != 1 || a.ComplianceIssues[0] != "Document has expired" {
		t.Errorf("unexpected compliance issues %v", a.ComplianceIssues)
	}
	if len(a.Recommendations) != 2 {
		t.Errorf("expected 2 recommendations, got %v", a.Recommendations)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestRecordStore_GetAnalysis_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM document_analysis a").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(analysisCols))

	_, err := store.GetAnalysis(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_QueryDocuments_Filters(t *testing.T) {
	store, mock := newMockStore(t)
	within := 30
	review := true
	filter := domain.DocumentFilter{
		Type:               domain.DocumentTypeWorkPermit,
		Status:             domain.ComplianceNeedsReview,
		RequiresReview:     &review,
		ExpiringWithinDays: &within,
		Limit:              10,
		Offset:             20,
	}

	today := domain.StartOfDay(testNow)
	mock.ExpectQuery(`WHERE a\.document_type = \$1 AND a\.compliance_status = \$2 AND a\.requires_manual_review = \$3 AND a\.expiry_date BETWEEN \$4 AND \$5 ORDER BY a\.analyzed_at DESC, a\.document_id LIMIT \$6 OFFSET \$7`).
		WithArgs("work_permit", "Needs Review", true, today, today.AddDate(0, 0, 30), 10, 20).
		WillReturnRows(sqlmock.NewRows(analysisCols))

	docs, err := store.QueryDocuments(context.Background(), filter, testNow)
	if err != nil {
		t.Fatalf("QueryDocuments: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestRecordStore_QueryDocuments_DefaultPaging(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(domain.DefaultQueryLimit, 0).
		WillReturnRows(addAnalysisRow(sqlmock.NewRows(analysisCols), "DOC-001", "HR", nil))

	docs, err := store.QueryDocuments(context.Background(), domain.DocumentFilter{}, testNow)
	if err != nil {
		t.Fatalf("QueryDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].DocumentID != "DOC-001" {
		t.Fatalf("unexpected documents %+v", docs)
	}
}

func TestRecordStore_AggregateStats(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows(analysisCols)
	addAnalysisRow(rows, "DOC-001", "HR", nil)
	addAnalysisRow(rows, "DOC-002", "IT", nil)
	mock.ExpectQuery("FROM document_analysis a").WillReturnRows(rows)

	stats, err := store.AggregateStats(context.Background(), testNow)
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("expected 2 documents, got %d", stats.TotalDocuments)
	}
	if len(stats.DepartmentCompliance) != 2 {
		t.Errorf("expected 2 departments, got %d", len(stats.DepartmentCompliance))
	}
}

func TestRecordStore_SaveExtraction(t *testing.T) {
	store, mock := newMockStore(t)
	r := &domain.ExtractionResult{
		DocumentID:      "DOC-001",
		DocumentType:    domain.DocumentTypePassport,
		ExtractedText:   "PASSPORT",
		Confidence:      0.95,
		PageCount:       1,
		ExtractedFields: map[string]string{"passportNumber": "A1234567"},
		Language:        "en",
		ProcessedAt:     testNow,
		Provider:        "ocrspace",
	}

	mock.ExpectExec("INSERT INTO ocr_metadata").
		WithArgs("DOC-001", "passport", "PASSPORT", 0.95, 1,
			[]byte(`{"passportNumber":"A1234567"}`), []byte("null"), []byte("null"),
			"en", "ocrspace", false, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveExtraction(context.Background(), r); err != nil {
		t.Fatalf("SaveExtraction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestRecordStore_GetExtraction(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{"document_id", "document_type", "extracted_text", "confidence", "page_count",
		"extracted_fields", "tables", "text_blocks", "language", "provider", "degraded", "processed_at"}
	mock.ExpectQuery("FROM ocr_metadata").
		WithArgs("DOC-001").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"DOC-001", "passport", "PASSPORT", 0.95, 1,
			[]byte(`{"passportNumber":"A1234567"}`), []byte(`[]`), []byte(`[]`),
			"en", "synthetic", true, testNow,
		))

	r, err := store.GetExtraction(context.Background(), "DOC-001")
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if r.Field("passportNumber") != "A1234567" {
		t.Errorf("expected passport number, got %q", r.Field("passportNumber"))
	}
	if !r.IsSynthetic() {
		t.Error("expected synthetic extraction")
	}
}

var jobCols = []string{"job_id", "job_type", "status", "started_at", "completed_at", "documents_processed",
	"documents_failed", "documents_degraded", "last_sync_timestamp", "error_message"}

func TestRecordStore_SaveJobRecord(t *testing.T) {
	store, mock := newMockStore(t)
	r := domain.NewSyncJobRecord("sync_1", testNow)
	r.Add(domain.BatchResult{Processed: 3, Degraded: 1})
	r.Complete(testNow.Add(time.Minute))

	mock.ExpectExec("INSERT INTO sync_jobs").
		WithArgs("sync_1", domain.JobTypeDocumentSync, "completed", testNow,
			testNow.Add(time.Minute), 3, 0, 1, sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveJobRecord(context.Background(), r); err != nil {
		t.Fatalf("SaveJobRecord: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestRecordStore_LatestCompletedJobRecord(t *testing.T) {
	store, mock := newMockStore(t)
	done := testNow.Add(time.Minute)
	mock.ExpectQuery("FROM sync_jobs WHERE status = \\$1").
		WithArgs("completed").
		WillReturnRows(sqlmock.NewRows(jobCols).AddRow(
			"sync_1", "document_sync", "completed", testNow, done, 3, 0, 1, done, "",
		))

	r, err := store.LatestCompletedJobRecord(context.Background())
	if err != nil {
		t.Fatalf("LatestCompletedJobRecord: %v", err)
	}
	if r.LastSyncTimestamp == nil || !r.LastSyncTimestamp.Equal(done) {
		t.Errorf("expected watermark %v, got %v", done, r.LastSyncTimestamp)
	}
	if r.DocumentsProcessed != 3 || r.DocumentsDegraded != 1 {
		t.Errorf("unexpected counts %+v", r)
	}
}

func TestRecordStore_LatestJobRecord_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM sync_jobs").WillReturnError(sql.ErrNoRows)

	if _, err := store.LatestJobRecord(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_JobExecutions(t *testing.T) {
	store, mock := newMockStore(t)
	e := &domain.JobExecution{
		ID:         "exec-1",
		JobName:    "document-sync",
		JobID:      "document-sync_1",
		Status:     domain.ExecutionSuccess,
		ExecutedAt: testNow,
		Duration:   1500 * time.Millisecond,
		Result:     &domain.RunResult{JobID: "document-sync_1", Processed: 3},
	}

	mock.ExpectExec("INSERT INTO job_execution_log").
		WithArgs("exec-1", "document-sync", "document-sync_1", "success", testNow, int64(1500), sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM job_execution_log").
		WithArgs("document-sync", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_name", "job_id", "status", "executed_at", "duration_ms", "result", "error_message"}).
			AddRow("exec-1", "document-sync", "document-sync_1", "success", testNow, int64(1500),
				[]byte(`{"job_id":"document-sync_1","processed":3}`), "").
			AddRow("exec-0", "document-sync", "", "skipped", testNow.Add(-time.Hour), int64(0), nil, ""))

	if err := store.SaveJobExecution(context.Background(), e); err != nil {
		t.Fatalf("SaveJobExecution: %v", err)
	}
	got, err := store.ListJobExecutions(context.Background(), "document-sync", 5)
	if err != nil {
		t.Fatalf("ListJobExecutions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(got))
	}
	if got[0].Duration != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", got[0].Duration)
	}
	if got[0].Result == nil || got[0].Result.Processed != 3 {
		t.Errorf("expected decoded result, got %+v", got[0].Result)
	}
	if got[1].Result != nil || got[1].Status != domain.ExecutionSkipped {
		t.Errorf("unexpected skipped execution %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestRecordStore_SaveEmployee(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO employee_info").
		WithArgs("EMP-5432", "John Smith", "HR", "", testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveEmployee(context.Background(), &domain.EmployeeInfo{
		EmployeeID: "EMP-5432", Name: "John Smith", Department: "HR", UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("SaveEmployee: %v", err)
	}
}
