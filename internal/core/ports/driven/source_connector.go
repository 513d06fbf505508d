package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// SourceConnector fetches compliance documents from the document management system.
// Implementations degrade to a fixed demo set when the server cannot be reached.
type SourceConnector interface {
	// Authenticate opens a session with the source.
	Authenticate(ctx context.Context) (*domain.SourceToken, error)

	// ListBatch lists documents of the given types modified after since.
	// A nil since lists everything. Pass the previous page's NextCursor to continue.
	ListBatch(ctx context.Context, since *time.Time, types []domain.DocumentType, cursor string) (*domain.DocumentPage, error)

	// Download fetches the raw bytes of a document.
	Download(ctx context.Context, documentID string) (*domain.DocumentContent, error)

	// GetMetadata fetches the source-side properties of a document.
	GetMetadata(ctx context.Context, documentID string) (*domain.DocumentMetadata, error)

	// Ping checks the source is reachable.
	Ping(ctx context.Context) error
}
