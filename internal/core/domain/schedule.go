package domain

import (
	"fmt"
	"time"
)

// DefaultScheduleInterval is how often a scheduled sync runs when no interval is given
const DefaultScheduleInterval = 4 * time.Hour

// ExecutionStatus is the outcome of one scheduled execution
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	// ExecutionSkipped means the run was suppressed by one already in progress.
	ExecutionSkipped ExecutionStatus = "skipped"
)

// JobExecution is one entry of the scheduler's execution log
type JobExecution struct {
	ID           string          `json:"id"`
	JobName      string          `json:"job_name"`
	JobID        string          `json:"job_id"`
	Status       ExecutionStatus `json:"status"`
	ExecutedAt   time.Time       `json:"executed_at"`
	Duration     time.Duration   `json:"duration"`
	Result       *RunResult      `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// ScheduledRunID derives the run ID of a scheduled execution
func ScheduledRunID(jobName string, now time.Time) string {
	return fmt.Sprintf("%s_%d", jobName, now.UnixMilli())
}

// ScheduleInfo describes a registered schedule
type ScheduleInfo struct {
	JobName   string        `json:"job_name"`
	Interval  time.Duration `json:"interval"`
	StartedAt time.Time     `json:"started_at"`
	NextRun   time.Time     `json:"next_run"`
}

// SchedulerStatus reports on one schedule
type SchedulerStatus struct {
	JobName   string        `json:"job_name"`
	Active    bool          `json:"active"`
	Interval  time.Duration `json:"interval,omitempty"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	NextRun   *time.Time    `json:"next_run,omitempty"`
	RunCount  int           `json:"run_count"`
	LastError string        `json:"last_error,omitempty"`
}

// TriggerResult reports the outcome of an on-demand run
type TriggerResult struct {
	JobName    string     `json:"job_name"`
	JobID      string     `json:"job_id,omitempty"`
	Triggered  bool       `json:"triggered"`
	Suppressed bool       `json:"suppressed"`
	Result     *RunResult `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ServiceStatus is the operator view of the sync service
type ServiceStatus struct {
	Running         bool             `json:"running"`
	LastJob         *SyncJobRecord   `json:"last_job,omitempty"`
	ActiveSchedules []string         `json:"active_schedules"`
	Providers       ProviderSnapshot `json:"providers"`
}
