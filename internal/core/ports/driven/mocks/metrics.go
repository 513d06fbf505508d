package mocks

import (
	"sync"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

var _ driven.PipelineMetrics = (*MockMetrics)(nil)

// MockMetrics counts what it is told
type MockMetrics struct {
	mu        sync.Mutex
	Outcomes  map[driven.DocumentOutcome]int
	Synthetic map[domain.Stage]int
	Retries   int
	Runs      map[domain.SyncJobStatus]int
}

// NewMockMetrics creates a new MockMetrics
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Outcomes:  make(map[driven.DocumentOutcome]int),
		Synthetic: make(map[domain.Stage]int),
		Runs:      make(map[domain.SyncJobStatus]int),
	}
}

func (m *MockMetrics) DocumentFinished(outcome driven.DocumentOutcome, _ domain.DocumentType, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes[outcome]++
}

func (m *MockMetrics) SyntheticResult(stage domain.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Synthetic[stage]++
}

func (m *MockMetrics) RetryAttempted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries++
}

func (m *MockMetrics) RunFinished(status domain.SyncJobStatus, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs[status]++
}

// Outcome returns the count for one outcome
func (m *MockMetrics) Outcome(o driven.DocumentOutcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Outcomes[o]
}
