package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	authenticateFn  func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, domain.ErrTokenInvalid
}

type mockComplianceService struct {
	triggerFn    func(ctx context.Context) (*domain.TriggerResult, error)
	statusFn     func(ctx context.Context) (*domain.ServiceStatus, error)
	statsFn      func(ctx context.Context) (*domain.Stats, error)
	healthFn     func(ctx context.Context) *domain.HealthReport
	queryFn      func(ctx context.Context, filter domain.DocumentFilter) ([]*domain.AnalysisResult, error)
	getFn        func(ctx context.Context, id string) (*domain.DocumentDetail, error)
	listJobsFn   func(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error)
	historyFn    func(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error)
	triggerCalls int
}

func (m *mockComplianceService) TriggerSync(ctx context.Context) (*domain.TriggerResult, error) {
	m.triggerCalls++
	if m.triggerFn != nil {
		return m.triggerFn(ctx)
	}
	return &domain.TriggerResult{JobName: "document-sync", JobID: "document-sync_1700000000000", Triggered: true}, nil
}

func (m *mockComplianceService) GetStatus(ctx context.Context) (*domain.ServiceStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return &domain.ServiceStatus{ActiveSchedules: []string{"document-sync"}}, nil
}

func (m *mockComplianceService) GetStats(ctx context.Context) (*domain.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &domain.Stats{}, nil
}

func (m *mockComplianceService) HealthCheck(ctx context.Context) *domain.HealthReport {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return &domain.HealthReport{State: domain.HealthHealthy}
}

func (m *mockComplianceService) QueryDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.AnalysisResult, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockComplianceService) GetDocument(ctx context.Context, id string) (*domain.DocumentDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockComplianceService) ListSyncJobs(ctx context.Context, limit int) ([]*domain.SyncJobRecord, error) {
	if m.listJobsFn != nil {
		return m.listJobsFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockComplianceService) JobHistory(ctx context.Context, jobName string, limit int) ([]*domain.JobExecution, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, jobName, limit)
	}
	return nil, nil
}

// Verify interface compliance
var (
	_ driving.AuthService       = (*mockAuthService)(nil)
	_ driving.ComplianceService = (*mockComplianceService)(nil)
)

// Test helpers

func tokenAuth() *mockAuthService {
	return &mockAuthService{
		validateTokenFn: func(_ context.Context, token string) (*domain.AuthContext, error) {
			switch token {
			case "operator":
				return &domain.AuthContext{Subject: "op", Role: domain.RoleOperator}, nil
			case "viewer":
				return &domain.AuthContext{Subject: "view", Role: domain.RoleViewer}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
}

func newTestServer(compliance *mockComplianceService, auth *mockAuthService) *Server {
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	return NewServer(cfg, auth, compliance, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	}))
}

func do(t *testing.T, s *Server, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

// Health endpoints

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&mockComplianceService{}, tokenAuth())

	rr := do(t, s, "GET", "/health", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp StatusResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("expected ok, got %s", resp.Status)
	}
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		state    domain.HealthState
		wantCode int
	}{
		{domain.HealthHealthy, http.StatusOK},
		{domain.HealthDegraded, http.StatusOK},
		{domain.HealthUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			compliance := &mockComplianceService{
				healthFn: func(context.Context) *domain.HealthReport {
					return &domain.HealthReport{
						State:      tt.state,
						Subsystems: []domain.SubsystemHealth{{Name: "database", State: tt.state}},
					}
				},
			}
			s := newTestServer(compliance, tokenAuth())

			rr := do(t, s, "GET", "/ready", "", nil)

			if rr.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rr.Code)
			}
			var report domain.HealthReport
			_ = json.NewDecoder(rr.Body).Decode(&report)
			if report.State != tt.state || len(report.Subsystems) != 1 {
				t.Errorf("unexpected report %+v", report)
			}
		})
	}
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(&mockComplianceService{}, tokenAuth())

	rr := do(t, s, "GET", "/version", "", nil)

	var resp VersionResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", resp.Version)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&mockComplianceService{}, tokenAuth())

	rr := do(t, s, "GET", "/metrics", "", nil)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# metrics") {
		t.Errorf("expected metrics output, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	s := NewServer(DefaultConfig(), tokenAuth(), &mockComplianceService{}, nil)

	rr := do(t, s, "GET", "/metrics", "", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Auth endpoints

func TestHandleToken(t *testing.T) {
	expires := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	auth := tokenAuth()
	auth.authenticateFn = func(_ context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
		if req.Username == "" || req.Password == "" {
			return nil, domain.ErrInvalidInput
		}
		if req.Username != "operator" || req.Password != "secret" {
			return nil, domain.ErrInvalidCredentials
		}
		return &domain.LoginResponse{Token: "jwt", ExpiresAt: expires, Role: domain.RoleOperator}, nil
	}
	s := newTestServer(&mockComplianceService{}, auth)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"username":"operator","password":"secret"}`, http.StatusOK},
		{"wrong password", `{"username":"operator","password":"nope"}`, http.StatusUnauthorized},
		{"missing fields", `{"username":"operator"}`, http.StatusBadRequest},
		{"malformed json", `{"username":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, "POST", "/api/v1/auth/token", "", []byte(tt.body))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rr.Code)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp domain.LoginResponse
			_ = json.NewDecoder(rr.Body).Decode(&resp)
			if resp.Token != "jwt" || !resp.ExpiresAt.Equal(expires) || resp.Role != domain.RoleOperator {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestHandleToken_ServiceFailure(t *testing.T) {
	auth := tokenAuth()
	auth.authenticateFn = func(context.Context, domain.LoginRequest) (*domain.LoginResponse, error) {
		return nil, errors.New("signing key unavailable")
	}
	s := newTestServer(&mockComplianceService{}, auth)

	rr := do(t, s, "POST", "/api/v1/auth/token", "", []byte(`{"username":"a","password":"b"}`))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}

// Sync endpoints

func TestHandleTriggerSync(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		compliance := &mockComplianceService{}
		s := newTestServer(compliance, tokenAuth())

		rr := do(t, s, "POST", "/api/v1/sync", "operator", nil)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d", rr.Code)
		}
		var resp domain.TriggerResult
		_ = json.NewDecoder(rr.Body).Decode(&resp)
		if !resp.Triggered || resp.JobName != "document-sync" || resp.JobID != "document-sync_1700000000000" {
			t.Errorf("unexpected result %+v", resp)
		}
	})

	t.Run("suppressed", func(t *testing.T) {
		compliance := &mockComplianceService{
			triggerFn: func(context.Context) (*domain.TriggerResult, error) {
				return &domain.TriggerResult{JobName: "document-sync", Suppressed: true}, nil
			},
		}
		s := newTestServer(compliance, tokenAuth())

		rr := do(t, s, "POST", "/api/v1/sync", "operator", nil)

		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rr.Code)
		}
		var resp domain.TriggerResult
		_ = json.NewDecoder(rr.Body).Decode(&resp)
		if !resp.Suppressed {
			t.Error("expected suppressed result")
		}
	})

	t.Run("viewer forbidden", func(t *testing.T) {
		compliance := &mockComplianceService{}
		s := newTestServer(compliance, tokenAuth())

		rr := do(t, s, "POST", "/api/v1/sync", "viewer", nil)

		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rr.Code)
		}
		if compliance.triggerCalls != 0 {
			t.Error("expected no sync to be triggered")
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		s := newTestServer(&mockComplianceService{}, tokenAuth())

		rr := do(t, s, "POST", "/api/v1/sync", "", nil)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rr.Code)
		}
	})
}

func TestHandleSyncStatus(t *testing.T) {
	completed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	compliance := &mockComplianceService{
		statusFn: func(context.Context) (*domain.ServiceStatus, error) {
			return &domain.ServiceStatus{
				Running:         true,
				LastJob:         &domain.SyncJobRecord{JobID: "job-1", Status: domain.SyncJobCompleted, CompletedAt: &completed},
				ActiveSchedules: []string{"document-sync"},
			}, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/sync/status", "viewer", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp domain.ServiceStatus
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Running || resp.LastJob == nil || resp.LastJob.JobID != "job-1" {
		t.Errorf("unexpected status %+v", resp)
	}
}

func TestHandleListSyncJobs(t *testing.T) {
	var gotLimit int
	compliance := &mockComplianceService{
		listJobsFn: func(_ context.Context, limit int) ([]*domain.SyncJobRecord, error) {
			gotLimit = limit
			return []*domain.SyncJobRecord{{JobID: "b"}, {JobID: "a"}}, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/sync/jobs?limit=2", "viewer", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotLimit != 2 {
		t.Errorf("expected limit 2, got %d", gotLimit)
	}
	var jobs []domain.SyncJobRecord
	_ = json.NewDecoder(rr.Body).Decode(&jobs)
	if len(jobs) != 2 || jobs[0].JobID != "b" {
		t.Errorf("unexpected jobs %+v", jobs)
	}

	rr = do(t, s, "GET", "/api/v1/sync/jobs?limit=-1", "viewer", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for negative limit, got %d", rr.Code)
	}
}

func TestHandleJobHistory(t *testing.T) {
	var gotName string
	compliance := &mockComplianceService{
		historyFn: func(_ context.Context, name string, _ int) ([]*domain.JobExecution, error) {
			gotName = name
			if name == "missing" {
				return nil, domain.ErrJobNotFound
			}
			return nil, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/schedules/document-sync/history", "viewer", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotName != "document-sync" {
		t.Errorf("expected path value document-sync, got %s", gotName)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}

	rr = do(t, s, "GET", "/api/v1/schedules/missing/history", "viewer", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Dashboard endpoints

func TestHandleGetStats(t *testing.T) {
	compliance := &mockComplianceService{
		statsFn: func(context.Context) (*domain.Stats, error) {
			return &domain.Stats{TotalDocuments: 7}, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/stats", "viewer", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var stats domain.Stats
	_ = json.NewDecoder(rr.Body).Decode(&stats)
	if stats.TotalDocuments != 7 {
		t.Errorf("expected 7 documents, got %d", stats.TotalDocuments)
	}
}

func TestHandleGetStats_StoreFailure(t *testing.T) {
	compliance := &mockComplianceService{
		statsFn: func(context.Context) (*domain.Stats, error) {
			return nil, fmt.Errorf("aggregate: %w", errors.New("connection reset"))
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/stats", "viewer", nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); strings.Contains(msg, "connection reset") {
		t.Errorf("internal detail leaked: %s", msg)
	}
}

func TestHandleListDocuments(t *testing.T) {
	var got domain.DocumentFilter
	compliance := &mockComplianceService{
		queryFn: func(_ context.Context, filter domain.DocumentFilter) ([]*domain.AnalysisResult, error) {
			got = filter
			if filter.Type != "" && !filter.Type.IsValid() {
				return nil, fmt.Errorf("type %q: %w", filter.Type, domain.ErrInvalidInput)
			}
			return []*domain.AnalysisResult{{DocumentID: "doc-1", DocumentType: domain.DocumentTypePassport}}, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/documents?type=Passport&status=Non-Compliant&expiring_within_days=30&requires_review=true&limit=10&offset=20", "viewer", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Type != domain.DocumentTypePassport {
		t.Errorf("expected passport, got %s", got.Type)
	}
	if got.Status != domain.ComplianceNonCompliant {
		t.Errorf("expected Non-Compliant, got %s", got.Status)
	}
	if got.ExpiringWithinDays == nil || *got.ExpiringWithinDays != 30 {
		t.Errorf("expected 30 days, got %v", got.ExpiringWithinDays)
	}
	if got.RequiresReview == nil || !*got.RequiresReview {
		t.Errorf("expected requires_review true, got %v", got.RequiresReview)
	}
	if got.Limit != 10 || got.Offset != 20 {
		t.Errorf("expected limit 10 offset 20, got %d %d", got.Limit, got.Offset)
	}

	var resp DocumentListResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Count != 1 || resp.Documents[0].DocumentID != "doc-1" || resp.Limit != 10 || resp.Offset != 20 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleListDocuments_DefaultPage(t *testing.T) {
	s := newTestServer(&mockComplianceService{}, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/documents", "viewer", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp DocumentListResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Documents == nil || resp.Count != 0 {
		t.Errorf("expected empty list, got %+v", resp)
	}
	if resp.Limit != domain.DefaultQueryLimit {
		t.Errorf("expected default limit %d, got %d", domain.DefaultQueryLimit, resp.Limit)
	}
}

func TestHandleListDocuments_BadParams(t *testing.T) {
	compliance := &mockComplianceService{
		queryFn: func(_ context.Context, filter domain.DocumentFilter) ([]*domain.AnalysisResult, error) {
			if !filter.Type.IsValid() {
				return nil, domain.ErrInvalidInput
			}
			return nil, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	for _, query := range []string{
		"type=driving_licence",
		"status=maybe",
		"expiring_within_days=soon",
		"expiring_within_days=-5",
		"requires_review=perhaps",
		"limit=ten",
		"offset=-1",
	} {
		t.Run(query, func(t *testing.T) {
			rr := do(t, s, "GET", "/api/v1/documents?"+query, "viewer", nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestHandleGetDocument(t *testing.T) {
	compliance := &mockComplianceService{
		getFn: func(_ context.Context, id string) (*domain.DocumentDetail, error) {
			if id != "doc-1" {
				return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
			}
			return &domain.DocumentDetail{
				DocumentID: "doc-1",
				Analysis:   &domain.AnalysisResult{DocumentID: "doc-1", ComplianceStatus: domain.ComplianceCompliant},
			}, nil
		},
	}
	s := newTestServer(compliance, tokenAuth())

	rr := do(t, s, "GET", "/api/v1/documents/doc-1", "viewer", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var detail domain.DocumentDetail
	_ = json.NewDecoder(rr.Body).Decode(&detail)
	if detail.Analysis == nil || detail.Analysis.ComplianceStatus != domain.ComplianceCompliant {
		t.Errorf("unexpected detail %+v", detail)
	}

	rr = do(t, s, "GET", "/api/v1/documents/doc-404", "viewer", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	s := newTestServer(&mockComplianceService{}, tokenAuth())

	tests := []struct {
		err      error
		wantCode int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrSyncInProgress, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.writeServiceError(rr, tt.err)
			if rr.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}
		})
	}
}
