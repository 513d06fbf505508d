package domain

import (
	"fmt"
	"time"
)

// JobTypeDocumentSync is the job type of a document sync run
const JobTypeDocumentSync = "document_sync"

// SyncJobStatus represents the state of a sync run
type SyncJobStatus string

const (
	SyncJobRunning   SyncJobStatus = "running"
	SyncJobCompleted SyncJobStatus = "completed"
	SyncJobFailed    SyncJobStatus = "failed"
)

// SyncJobRecord is the bookkeeping row of one sync run, upserted by JobID.
type SyncJobRecord struct {
	JobID              string        `json:"job_id"`
	JobType            string        `json:"job_type"`
	Status             SyncJobStatus `json:"status"`
	StartedAt          time.Time     `json:"started_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsFailed    int           `json:"documents_failed"`
	DocumentsDegraded  int           `json:"documents_degraded"`
	// LastSyncTimestamp is the watermark the next run lists from.
	LastSyncTimestamp *time.Time `json:"last_sync_timestamp,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
}

// NewSyncJobRecord creates a running record
func NewSyncJobRecord(jobID string, startedAt time.Time) *SyncJobRecord {
	return &SyncJobRecord{
		JobID:     jobID,
		JobType:   JobTypeDocumentSync,
		Status:    SyncJobRunning,
		StartedAt: startedAt,
	}
}

// DefaultSyncJobID derives a run ID from the start time
func DefaultSyncJobID(now time.Time) string {
	return fmt.Sprintf("sync_%d", now.UnixMilli())
}

// Add accumulates batch counts into the record
func (r *SyncJobRecord) Add(b BatchResult) {
	r.DocumentsProcessed += b.Processed
	r.DocumentsFailed += b.Failed
	r.DocumentsDegraded += b.Degraded
}

// Complete marks the run completed. The completion time becomes the watermark.
func (r *SyncJobRecord) Complete(now time.Time) {
	r.Status = SyncJobCompleted
	r.CompletedAt = &now
	r.LastSyncTimestamp = &now
	r.ErrorMessage = ""
}

// Fail marks the run failed
func (r *SyncJobRecord) Fail(now time.Time, err error) {
	r.Status = SyncJobFailed
	r.CompletedAt = &now
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Duration returns how long the run took, or zero while it is running
func (r *SyncJobRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// BatchResult counts the outcomes of one batch of documents.
// Degraded is a subset of Processed.
type BatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Degraded  int `json:"degraded"`
}

// Total returns processed plus failed
func (b BatchResult) Total() int {
	return b.Processed + b.Failed
}

// RunResult summarises a completed sync run
type RunResult struct {
	JobID     string        `json:"job_id"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Degraded  int           `json:"degraded"`
	Duration  time.Duration `json:"duration"`
}

// RunState is the single-run guard of a sync job
type RunState int32

const (
	RunStateIdle RunState = iota
	RunStateRunning
)

func (s RunState) String() string {
	if s == RunStateRunning {
		return "running"
	}
	return "idle"
}
