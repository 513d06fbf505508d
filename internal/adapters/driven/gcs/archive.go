// Package gcs archives raw document bytes in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentArchive = (*Archive)(nil)

const defaultPrefix = "documents"

// Config configures the archive.
type Config struct {
	Bucket          string
	Prefix          string // Object name prefix (default: "documents")
	CredentialsFile string // Optional: defaults to application credentials
	Logger          *slog.Logger
}

// Archive writes each document once. Objects are created with a
// DoesNotExist precondition, so re-archiving a document is a no-op.
type Archive struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
	logger *slog.Logger
}

// NewArchive connects to the bucket.
func NewArchive(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", domain.ErrInvalidInput)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return newArchive(client, cfg), nil
}

func newArchive(client *storage.Client, cfg Config) *Archive {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Archive{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: cfg.Prefix,
		logger: cfg.Logger.With("component", "gcs_archive"),
	}
}

// Put stores the content and returns its gs:// location.
func (a *Archive) Put(ctx context.Context, content *domain.DocumentContent) (string, error) {
	name := ObjectName(a.prefix, content)
	location := fmt.Sprintf("gs://%s/%s", a.name, name)

	w := a.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = content.MimeType
	w.Metadata = map[string]string{
		"document_id": content.DocumentID,
		"file_name":   content.FileName,
	}

	if _, err := io.Copy(w, bytes.NewReader(content.Data)); err != nil {
		_ = w.Close()
		return a.finish(location, err)
	}
	return a.finish(location, w.Close())
}

func (a *Archive) finish(location string, err error) (string, error) {
	switch {
	case err == nil:
		a.logger.Debug("archived document", "location", location)
		return location, nil
	case AlreadyExists(err):
		a.logger.Debug("document already archived", "location", location)
		return location, nil
	default:
		return "", fmt.Errorf("failed to write %s: %w", location, err)
	}
}

// Ping reads the bucket attributes.
func (a *Archive) Ping(ctx context.Context) error {
	if _, err := a.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// Close releases the storage client.
func (a *Archive) Close() error {
	return a.client.Close()
}

// ObjectName derives the object name of a document: prefix/id/file.
func ObjectName(prefix string, content *domain.DocumentContent) string {
	file := content.FileName
	if file == "" {
		file = content.DocumentID
	}
	file = strings.ReplaceAll(path.Base("/"+file), " ", "_")
	return path.Join(prefix, content.DocumentID, file)
}

// AlreadyExists reports whether err is a failed DoesNotExist precondition.
func AlreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
