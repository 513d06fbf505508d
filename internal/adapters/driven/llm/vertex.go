package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Ensure Vertex implements DocumentAnalyzer
var _ driven.DocumentAnalyzer = (*Vertex)(nil)

const DefaultVertexModel = "gemini-1.5-pro"

// VertexConfig configures the Vertex AI analyzer.
type VertexConfig struct {
	ProjectID       string
	Region          string
	Model           string
	CredentialsFile string
	Timeout         time.Duration
	MaxTokens       int
	Fallback        *Synthetic
	Logger          *slog.Logger
	Now             func() time.Time
}

// generator is the part of genai.GenerativeModel the analyzer calls.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Vertex analyzes documents with a Gemini model on Vertex AI.
type Vertex struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	maxToken int32
	// models holds one configured model per document type; the system
	// instruction differs by type.
	mu       sync.Mutex
	models   map[domain.DocumentType]generator
	newModel func(docType domain.DocumentType) generator
	fallback *Synthetic
	logger   *slog.Logger
	now      func() time.Time
}

// NewVertex connects to Vertex AI.
func NewVertex(ctx context.Context, cfg VertexConfig) (*Vertex, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex project ID and region are required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	v := newVertex(cfg, nil)
	v.client = client
	v.newModel = func(docType domain.DocumentType) generator {
		m := client.GenerativeModel(v.model)
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemPrompt(docType))}}
		m.GenerationConfig = genai.GenerationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](defaultTemperature),
			MaxOutputTokens:  genai.Ptr(v.maxToken),
		}
		return m
	}
	return v, nil
}

// newVertex builds the analyzer around a model constructor.
func newVertex(cfg VertexConfig, newModel func(domain.DocumentType) generator) *Vertex {
	if cfg.Model == "" {
		cfg.Model = DefaultVertexModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Fallback == nil {
		cfg.Fallback = NewSynthetic(cfg.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Vertex{
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		maxToken: int32(cfg.MaxTokens),
		models:   make(map[domain.DocumentType]generator),
		newModel: newModel,
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Name returns the provider name
func (v *Vertex) Name() string {
	return "vertex"
}

// Model returns the model name being used
func (v *Vertex) Model() string {
	return v.model
}

// Ping reports whether a client is connected. Vertex has no cheap probe.
func (v *Vertex) Ping(ctx context.Context) error {
	if v.client == nil && v.newModel == nil {
		return fmt.Errorf("%w: vertex client not initialised", domain.ErrServiceUnavailable)
	}
	return nil
}

// Close releases the underlying client
func (v *Vertex) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}

func (v *Vertex) modelFor(docType domain.DocumentType) generator {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.models[docType]; ok {
		return m
	}
	m := v.newModel(docType)
	v.models[docType] = m
	return m
}

// Analyze asks the model for an assessment.
func (v *Vertex) Analyze(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext) (*domain.AnalysisResult, error) {
	now := v.now()

	text, err := v.generate(ctx, extraction, actx, now)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) || errors.Is(err, domain.ErrRateLimited) || ctx.Err() != nil {
			return nil, err
		}
		v.logger.Warn("analysis degraded to rule-based result",
			"document_id", extraction.DocumentID,
			"provider", v.Name(),
			"error", err)
		return v.fallback.Assess(extraction, actx), nil
	}

	reply, ok := ParseReply(text)
	if !ok {
		v.logger.Warn("analysis reply could not be interpreted", "document_id", extraction.DocumentID)
		return analysisFailed(extraction, actx, text, v.Name(), now), nil
	}
	return BuildAnalysis(reply, text, extraction, actx, v.Name(), now), nil
}

func (v *Vertex) generate(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext, now time.Time) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.modelFor(extraction.DocumentType).GenerateContent(callCtx,
		genai.Text(UserPrompt(extraction, actx, domain.FormatDate(now))))
	if err != nil {
		return "", classifyVertexError(err)
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates in response", domain.ErrMalformedResponse)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text in response", domain.ErrMalformedResponse)
	}
	return b.String(), nil
}

// classifyVertexError maps gRPC status codes onto domain errors.
func classifyVertexError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}
	return err
}
