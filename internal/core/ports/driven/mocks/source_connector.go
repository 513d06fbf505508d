package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

var _ driven.SourceConnector = (*MockSourceConnector)(nil)

// MockSourceConnector serves documents from memory.
// Pages are returned in order, one per ListBatch call.
type MockSourceConnector struct {
	mu       sync.Mutex
	Pages    []*domain.DocumentPage
	Contents map[string][]byte
	calls    int
	sinces   []*time.Time

	ListBatchFn func(ctx context.Context, since *time.Time, cursor string) (*domain.DocumentPage, error)
	DownloadFn  func(ctx context.Context, documentID string) (*domain.DocumentContent, error)
	PingFn      func(ctx context.Context) error
}

// NewMockSourceConnector creates a connector serving the given pages
func NewMockSourceConnector(pages ...*domain.DocumentPage) *MockSourceConnector {
	return &MockSourceConnector{Pages: pages, Contents: make(map[string][]byte)}
}

func (m *MockSourceConnector) Authenticate(ctx context.Context) (*domain.SourceToken, error) {
	return &domain.SourceToken{Value: "mock-ticket", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockSourceConnector) ListBatch(ctx context.Context, since *time.Time, types []domain.DocumentType, cursor string) (*domain.DocumentPage, error) {
	m.mu.Lock()
	m.sinces = append(m.sinces, since)
	idx := m.calls
	m.calls++
	m.mu.Unlock()

	if m.ListBatchFn != nil {
		return m.ListBatchFn(ctx, since, cursor)
	}
	if idx >= len(m.Pages) {
		return &domain.DocumentPage{}, nil
	}
	return m.Pages[idx], nil
}

func (m *MockSourceConnector) Download(ctx context.Context, documentID string) (*domain.DocumentContent, error) {
	if m.DownloadFn != nil {
		return m.DownloadFn(ctx, documentID)
	}
	m.mu.Lock()
	data, ok := m.Contents[documentID]
	m.mu.Unlock()
	if !ok {
		data = []byte("content of " + documentID)
	}
	return &domain.DocumentContent{DocumentID: documentID, FileName: documentID + ".pdf", MimeType: "application/pdf", Data: data}, nil
}

func (m *MockSourceConnector) GetMetadata(ctx context.Context, documentID string) (*domain.DocumentMetadata, error) {
	return &domain.DocumentMetadata{DocumentID: documentID, Name: documentID + ".pdf", MimeType: "application/pdf", Version: 1}, nil
}

func (m *MockSourceConnector) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// ListCalls returns how many times ListBatch was called
func (m *MockSourceConnector) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Sinces returns the watermarks ListBatch was called with
func (m *MockSourceConnector) Sinces() []*time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*time.Time(nil), m.sinces...)
}
