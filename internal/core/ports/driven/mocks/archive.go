package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

var _ driven.DocumentArchive = (*MockArchive)(nil)

// MockArchive remembers what was archived
type MockArchive struct {
	mu     sync.Mutex
	Stored map[string][]byte
	PutFn  func(content *domain.DocumentContent) (string, error)
}

// NewMockArchive creates an empty archive
func NewMockArchive() *MockArchive {
	return &MockArchive{Stored: make(map[string][]byte)}
}

func (m *MockArchive) Put(ctx context.Context, content *domain.DocumentContent) (string, error) {
	if m.PutFn != nil {
		return m.PutFn(content)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stored[content.DocumentID] = content.Data
	return "mock://" + content.DocumentID, nil
}

func (m *MockArchive) Ping(ctx context.Context) error { return nil }

// Count returns how many documents were archived
func (m *MockArchive) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Stored)
}
