package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore implements driven.RecordStore using PostgreSQL
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new RecordStore
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Init applies the schema migrations
func (s *RecordStore) Init(ctx context.Context) error {
	return s.db.Migrate(ctx)
}

// Ping checks the database is reachable
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveExtraction upserts an OCR result
func (s *RecordStore) SaveExtraction(ctx context.Context, r *domain.ExtractionResult) error {
	fieldsJSON, err := json.Marshal(r.ExtractedFields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	tablesJSON, err := json.Marshal(r.Tables)
	if err != nil {
		return fmt.Errorf("failed to marshal tables: %w", err)
	}
	blocksJSON, err := json.Marshal(r.TextBlocks)
	if err != nil {
		return fmt.Errorf("failed to marshal text blocks: %w", err)
	}

	query := `
		INSERT INTO ocr_metadata (document_id, document_type, extracted_text, confidence, page_count,
			extracted_fields, tables, text_blocks, language, provider, degraded, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (document_id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			extracted_text = EXCLUDED.extracted_text,
			confidence = EXCLUDED.confidence,
			page_count = EXCLUDED.page_count,
			extracted_fields = EXCLUDED.extracted_fields,
			tables = EXCLUDED.tables,
			text_blocks = EXCLUDED.text_blocks,
			language = EXCLUDED.language,
			provider = EXCLUDED.provider,
			degraded = EXCLUDED.degraded,
			processed_at = EXCLUDED.processed_at
	`

	_, err = s.db.ExecContext(ctx, query,
		r.DocumentID,
		string(r.DocumentType),
		r.ExtractedText,
		r.Confidence,
		r.PageCount,
		fieldsJSON,
		tablesJSON,
		blocksJSON,
		r.Language,
		r.Provider,
		r.Degraded,
		r.ProcessedAt,
	)
	return err
}

// GetExtraction retrieves the OCR result of a document
func (s *RecordStore) GetExtraction(ctx context.Context, documentID string) (*domain.ExtractionResult, error) {
	query := `
		SELECT document_id, document_type, extracted_text, confidence, page_count,
			extracted_fields, tables, text_blocks, language, provider, degraded, processed_at
		FROM ocr_metadata
		WHERE document_id = $1
	`

	var r domain.ExtractionResult
	var docType string
	var fieldsJSON, tablesJSON, blocksJSON []byte

	err := s.db.QueryRowContext(ctx, query, documentID).Scan(
		&r.DocumentID,
		&docType,
		&r.ExtractedText,
		&r.Confidence,
		&r.PageCount,
		&fieldsJSON,
		&tablesJSON,
		&blocksJSON,
		&r.Language,
		&r.Provider,
		&r.Degraded,
		&r.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.DocumentType = domain.DocumentType(docType)
	r.ProcessedAt = r.ProcessedAt.UTC()
	if err := json.Unmarshal(fieldsJSON, &r.ExtractedFields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(tablesJSON, &r.Tables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tables: %w", err)
	}
	if err := json.Unmarshal(blocksJSON, &r.TextBlocks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal text blocks: %w", err)
	}
	return &r, nil
}

// SaveAnalysis upserts a compliance assessment
func (s *RecordStore) SaveAnalysis(ctx context.Context, a *domain.AnalysisResult) error {
	query := `
		INSERT INTO document_analysis (document_id, document_type, employee_id, department, analyzed_at,
			is_valid, validity_status, compliance_status, risk_level, expiry_date, issue_date,
			days_until_expiry, is_expired, is_expiring_soon, data_consistency, missing_information,
			data_quality_issues, compliance_issues, data_completeness, confidence_score, recommendations,
			priority, ocr_confidence, document_score, requires_manual_review, verification_required,
			raw_analysis, provider, degraded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		ON CONFLICT (document_id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			employee_id = EXCLUDED.employee_id,
			department = EXCLUDED.department,
			analyzed_at = EXCLUDED.analyzed_at,
			is_valid = EXCLUDED.is_valid,
			validity_status = EXCLUDED.validity_status,
			compliance_status = EXCLUDED.compliance_status,
			risk_level = EXCLUDED.risk_level,
			expiry_date = EXCLUDED.expiry_date,
			issue_date = EXCLUDED.issue_date,
			days_until_expiry = EXCLUDED.days_until_expiry,
			is_expired = EXCLUDED.is_expired,
			is_expiring_soon = EXCLUDED.is_expiring_soon,
			data_consistency = EXCLUDED.data_consistency,
			missing_information = EXCLUDED.missing_information,
			data_quality_issues = EXCLUDED.data_quality_issues,
			compliance_issues = EXCLUDED.compliance_issues,
			data_completeness = EXCLUDED.data_completeness,
			confidence_score = EXCLUDED.confidence_score,
			recommendations = EXCLUDED.recommendations,
			priority = EXCLUDED.priority,
			ocr_confidence = EXCLUDED.ocr_confidence,
			document_score = EXCLUDED.document_score,
			requires_manual_review = EXCLUDED.requires_manual_review,
			verification_required = EXCLUDED.verification_required,
			raw_analysis = EXCLUDED.raw_analysis,
			provider = EXCLUDED.provider,
			degraded = EXCLUDED.degraded
	`

	_, err := s.db.ExecContext(ctx, query,
		a.DocumentID,
		string(a.DocumentType),
		a.EmployeeID,
		a.Department,
		a.AnalyzedAt,
		NullBool(a.IsValid),
		string(a.ValidityStatus),
		string(a.ComplianceStatus),
		string(a.RiskLevel),
		NullTime(a.ExpiryDate),
		NullTime(a.IssueDate),
		NullInt(a.DaysUntilExpiry),
		a.IsExpired,
		a.IsExpiringSoon,
		a.DataConsistency,
		pq.Array(nonNil(a.MissingInformation)),
		pq.Array(nonNil(a.DataQualityIssues)),
		pq.Array(nonNil(a.ComplianceIssues)),
		a.DataCompleteness,
		a.ConfidenceScore,
		pq.Array(nonNil(a.Recommendations)),
		a.Priority,
		a.OCRConfidence,
		a.DocumentScore,
		a.RequiresManualReview,
		a.VerificationRequired,
		a.RawAnalysis,
		a.Provider,
		a.Degraded,
	)
	return err
}

// analysisSelect reads assessments with the department falling back to
// the employee record.
const analysisSelect = `
	SELECT a.document_id, a.document_type, a.employee_id,
		COALESCE(NULLIF(a.department, ''), e.department, '') AS department,
		a.analyzed_at, a.is_valid, a.validity_status, a.compliance_status, a.risk_level,
		a.expiry_date, a.issue_date, a.days_until_expiry, a.is_expired, a.is_expiring_soon,
		a.data_consistency, a.missing_information, a.data_quality_issues, a.compliance_issues,
		a.data_completeness, a.confidence_score, a.recommendations, a.priority, a.ocr_confidence,
		a.document_score, a.requires_manual_review, a.verification_required, a.raw_analysis,
		a.provider, a.degraded
	FROM document_analysis a
	LEFT JOIN employee_info e ON e.employee_id = a.employee_id AND a.employee_id <> ''
`

// GetAnalysis retrieves the assessment of a document
func (s *RecordStore) GetAnalysis(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, analysisSelect+" WHERE a.document_id = $1", documentID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// QueryDocuments lists assessments matching the filter, newest first
func (s *RecordStore) QueryDocuments(ctx context.Context, filter domain.DocumentFilter, now time.Time) ([]*domain.AnalysisResult, error) {
	filter.Normalize()

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		conds = append(conds, "a.document_type = "+arg(string(filter.Type)))
	}
	if filter.Status != "" {
		conds = append(conds, "a.compliance_status = "+arg(string(filter.Status)))
	}
	if filter.RequiresReview != nil {
		conds = append(conds, "a.requires_manual_review = "+arg(*filter.RequiresReview))
	}
	if filter.ExpiringWithinDays != nil {
		today := domain.StartOfDay(now)
		conds = append(conds, "a.expiry_date BETWEEN "+arg(today)+" AND "+arg(today.AddDate(0, 0, *filter.ExpiringWithinDays)))
	}

	query := analysisSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.analyzed_at DESC, a.document_id LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

// AggregateStats computes the dashboard summary
func (s *RecordStore) AggregateStats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	rows, err := s.db.QueryContext(ctx, analysisSelect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses, err := scanAnalyses(rows)
	if err != nil {
		return nil, err
	}
	return domain.ComputeStats(analyses, now), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.AnalysisResult, error) {
	var a domain.AnalysisResult
	var docType, validity, compliance, risk string
	var isValid sql.NullBool
	var expiry, issue sql.NullTime
	var days sql.NullInt64

	err := row.Scan(
		&a.DocumentID,
		&docType,
		&a.EmployeeID,
		&a.Department,
		&a.AnalyzedAt,
		&isValid,
		&validity,
		&compliance,
		&risk,
		&expiry,
		&issue,
		&days,
		&a.IsExpired,
		&a.IsExpiringSoon,
		&a.DataConsistency,
		pq.Array(&a.MissingInformation),
		pq.Array(&a.DataQualityIssues),
		pq.Array(&a.ComplianceIssues),
		&a.DataCompleteness,
		&a.ConfidenceScore,
		pq.Array(&a.Recommendations),
		&a.Priority,
		&a.OCRConfidence,
		&a.DocumentScore,
		&a.RequiresManualReview,
		&a.VerificationRequired,
		&a.RawAnalysis,
		&a.Provider,
		&a.Degraded,
	)
	if err != nil {
		return nil, err
	}

	a.DocumentType = domain.DocumentType(docType)
	a.ValidityStatus = domain.ValidityStatus(validity)
	a.ComplianceStatus = domain.ComplianceStatus(compliance)
	a.RiskLevel = domain.RiskLevel(risk)
	a.AnalyzedAt = a.AnalyzedAt.UTC()
	a.IsValid = BoolPtr(isValid)
	a.ExpiryDate = TimePtr(expiry)
	a.IssueDate = TimePtr(issue)
	a.DaysUntilExpiry = IntPtr(days)
	return &a, nil
}

func scanAnalyses(rows *sql.Rows) ([]*domain.AnalysisResult, error) {
	var out []*domain.AnalysisResult
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveEmployee upserts employee details
func (s *RecordStore) SaveEmployee(ctx context.Context, e *domain.EmployeeInfo) error {
	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO employee_info (employee_id, name, department, email, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), employee_info.name),
			department = COALESCE(NULLIF(EXCLUDED.department, ''), employee_info.department),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), employee_info.email),
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, e.EmployeeID, e.Name, e.Department, e.Email, updatedAt)
	return err
}

const jobColumns = `job_id, job_type, status, started_at, completed_at, documents_processed,
	documents_failed, documents_degraded, last_sync_timestamp, error_message`

// SaveJobRecord upserts a sync run record
func (s *RecordStore) SaveJobRecord(ctx context.Context, r *domain.SyncJobRecord) error {
	query := `
		INSERT INTO sync_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			documents_processed = EXCLUDED.documents_processed,
			documents_failed = EXCLUDED.documents_failed,
			documents_degraded = EXCLUDED.documents_degraded,
			last_sync_timestamp = EXCLUDED.last_sync_timestamp,
			error_message = EXCLUDED.error_message
	`

	_, err := s.db.ExecContext(ctx, query,
		r.JobID,
		r.JobType,
		string(r.Status),
		r.StartedAt,
		NullTime(r.CompletedAt),
		r.DocumentsProcessed,
		r.DocumentsFailed,
		r.DocumentsDegraded,
		NullTime(r.LastSyncTimestamp),
		r.ErrorMessage,
	)
	return err
}

// GetJobRecord retrieves a sync run record
func (s *RecordStore) GetJobRecord(ctx context.Context, jobID string) (*domain.SyncJobRecord, error) {
	return s.oneJob(ctx, "SELECT "+jobColumns+" FROM sync_jobs WHERE job_id = $1", jobID)
}

// LatestJobRecord returns the most recently started run
func (s *RecordStore) LatestJobRecord(ctx context.Context) (*domain.SyncJobRecord, error) {
	return s.oneJob(ctx, "SELECT "+jobColumns+" FROM sync_jobs ORDER BY started_at DESC LIMIT 1")
}

// LatestCompletedJobRecord returns the most recently completed run
func (s *RecordStore) LatestCompletedJobRecord(ctx context.Context) (*domain.SyncJobRecord, error) {
	return s.oneJob(ctx, "SELECT "+jobColumns+" FROM sync_jobs WHERE status = $1 ORDER BY completed_at DESC LIMIT 1",
		string(domain.SyncJobCompleted))
}

// ListJobRecords returns the newest runs first
func (s *RecordStore) ListJobRecords(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error) {
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM sync_jobs ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SyncJobRecord
	for rows.Next() {
		r, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RecordStore) oneJob(ctx context.Context, query string, args ...any) (*domain.SyncJobRecord, error) {
	r, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return r, err
}

func scanJob(row rowScanner) (*domain.SyncJobRecord, error) {
	var r domain.SyncJobRecord
	var status string
	var completedAt, lastSync sql.NullTime

	err := row.Scan(
		&r.JobID,
		&r.JobType,
		&status,
		&r.StartedAt,
		&completedAt,
		&r.DocumentsProcessed,
		&r.DocumentsFailed,
		&r.DocumentsDegraded,
		&lastSync,
		&r.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.SyncJobStatus(status)
	r.StartedAt = r.StartedAt.UTC()
	r.CompletedAt = TimePtr(completedAt)
	r.LastSyncTimestamp = TimePtr(lastSync)
	return &r, nil
}

// SaveJobExecution appends to the execution log
func (s *RecordStore) SaveJobExecution(ctx context.Context, e *domain.JobExecution) error {
	var resultJSON []byte
	if e.Result != nil {
		var err error
		if resultJSON, err = json.Marshal(e.Result); err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	query := `
		INSERT INTO job_execution_log (id, job_name, job_id, status, executed_at, duration_ms, result, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.JobName,
		e.JobID,
		string(e.Status),
		e.ExecutedAt,
		e.Duration.Milliseconds(),
		resultJSON,
		e.ErrorMessage,
	)
	return err
}

// ListJobExecutions returns the newest executions of a job first
func (s *RecordStore) ListJobExecutions(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}

	query := `
		SELECT id, job_name, job_id, status, executed_at, duration_ms, result, error_message
		FROM job_execution_log
		WHERE job_name = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, jobName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.JobExecution
	for rows.Next() {
		var e domain.JobExecution
		var status string
		var durationMs int64
		var resultJSON []byte

		if err := rows.Scan(&e.ID, &e.JobName, &e.JobID, &status, &e.ExecutedAt, &durationMs, &resultJSON, &e.ErrorMessage); err != nil {
			return nil, err
		}
		e.Status = domain.ExecutionStatus(status)
		e.ExecutedAt = e.ExecutedAt.UTC()
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if len(resultJSON) > 0 {
			e.Result = &domain.RunResult{}
			if err := json.Unmarshal(resultJSON, e.Result); err != nil {
				return nil, fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
