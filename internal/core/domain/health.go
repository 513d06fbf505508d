package domain

import "time"

// HealthState is the condition of a subsystem
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// SubsystemHealth is the result of probing one collaborator
type SubsystemHealth struct {
	Name    string        `json:"name"`
	State   HealthState   `json:"state"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthReport aggregates subsystem probes
type HealthReport struct {
	State      HealthState       `json:"state"`
	Subsystems []SubsystemHealth `json:"subsystems"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// NewHealthReport derives the overall state from the subsystems.
// Any unhealthy subsystem makes the report unhealthy; any degraded one degrades it.
func NewHealthReport(subsystems []SubsystemHealth, now time.Time) *HealthReport {
	state := HealthHealthy
	for _, s := range subsystems {
		switch s.State {
		case HealthUnhealthy:
			state = HealthUnhealthy
		case HealthDegraded:
			if state == HealthHealthy {
				state = HealthDegraded
			}
		}
	}
	return &HealthReport{State: state, Subsystems: subsystems, CheckedAt: now}
}
