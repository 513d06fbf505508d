package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// DocumentListResponse wraps a page of document assessments
type DocumentListResponse struct {
	Documents []*domain.AnalysisResult `json:"documents"`
	Count     int                      `json:"count"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Liveness check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Probes the database, lock, source, OCR, LLM and archive
// @Tags         Health
// @Produce      json
// @Success      200  {object}  domain.HealthReport
// @Failure      503  {object}  domain.HealthReport
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	report := s.compliance.HealthCheck(r.Context())
	status := http.StatusOK
	if report.State == domain.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Auth endpoints

// handleToken godoc
// @Summary      Operator login
// @Description  Exchange a username and password for a JWT
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Router       /auth/token [post]
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "username and password are required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			s.logger.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Sync endpoints

// handleTriggerSync godoc
// @Summary      Trigger a document sync
// @Description  Claims a sync run and starts it in the background. The response carries the job ID. A run already in progress suppresses it.
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  domain.TriggerResult
// @Failure      409  {object}  domain.TriggerResult
// @Router       /sync [post]
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.compliance.TriggerSync(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result.Suppressed {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// handleSyncStatus godoc
// @Summary      Sync service status
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.ServiceStatus
// @Router       /sync/status [get]
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.compliance.GetStatus(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListSyncJobs godoc
// @Summary      Recent sync runs
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query  int  false  "Max runs"
// @Success      200  {array}  domain.SyncJobRecord
// @Router       /sync/jobs [get]
func (s *Server) handleListSyncJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	jobs, err := s.compliance.ListSyncJobs(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(jobs))
}

// handleJobHistory godoc
// @Summary      Execution log of a schedule
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        name   path   string  true   "Schedule name"
// @Param        limit  query  int     false  "Max executions"
// @Success      200  {array}  domain.JobExecution
// @Router       /schedules/{name}/history [get]
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	history, err := s.compliance.JobHistory(r.Context(), r.PathValue("name"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(history))
}

// Dashboard endpoints

// handleGetStats godoc
// @Summary      Compliance dashboard summary
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Stats
// @Router       /stats [get]
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.compliance.GetStats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleListDocuments godoc
// @Summary      Query document assessments
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        type                  query  string  false  "Document type"
// @Param        status                query  string  false  "Compliance status"
// @Param        expiring_within_days  query  int     false  "Expiring within N days"
// @Param        requires_review       query  bool    false  "Needs manual review"
// @Param        limit                 query  int     false  "Page size"
// @Param        offset                query  int     false  "Page offset"
// @Success      200  {object}  DocumentListResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseDocumentFilter(w, r)
	if !ok {
		return
	}

	docs, err := s.compliance.QueryDocuments(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	filter.Normalize()
	writeJSON(w, http.StatusOK, DocumentListResponse{
		Documents: nonNilSlice(docs),
		Count:     len(docs),
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
}

// handleGetDocument godoc
// @Summary      Document assessment and extraction
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Document ID"
// @Success      200  {object}  domain.DocumentDetail
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	detail, err := s.compliance.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func parseDocumentFilter(w http.ResponseWriter, r *http.Request) (domain.DocumentFilter, bool) {
	q := r.URL.Query()
	var filter domain.DocumentFilter

	if v := q.Get("type"); v != "" {
		filter.Type = domain.DocumentType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := q.Get("status"); v != "" {
		status := domain.ParseComplianceStatus(v)
		if status == domain.ComplianceUnknown && !strings.EqualFold(strings.TrimSpace(v), string(domain.ComplianceUnknown)) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return filter, false
		}
		filter.Status = status
	}
	if v := q.Get("expiring_within_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "invalid expiring_within_days")
			return filter, false
		}
		filter.ExpiringWithinDays = &days
	}
	if v := q.Get("requires_review"); v != "" {
		review, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid requires_review")
			return filter, false
		}
		filter.RequiresReview = &review
	}

	var ok bool
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return filter, false
	}
	if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
		return filter, false
	}
	return filter, true
}

// queryInt reads an optional non-negative integer parameter. It writes a
// 400 and returns false when the value is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// writeServiceError maps domain errors onto status codes. Unknown errors
// are logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "sync already in progress")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
