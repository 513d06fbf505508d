package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Ensure OpenAI implements DocumentAnalyzer
var _ driven.DocumentAnalyzer = (*OpenAI)(nil)

const (
	DefaultOpenAIModel   = "gpt-4"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultTimeout       = 30 * time.Second
	defaultMaxTokens     = 2000
	defaultTemperature   = 0.1
)

// OpenAIConfig configures the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	// RatePerSec paces outbound requests. Zero disables pacing.
	RatePerSec float64
	Fallback   *Synthetic
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// OpenAI analyzes documents with the chat completions API.
type OpenAI struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
	fallback    *Synthetic
	client      *http.Client
	logger      *slog.Logger
	now         func() time.Time
}

// NewOpenAI creates an OpenAI analyzer.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Fallback == nil {
		cfg.Fallback = NewSynthetic(cfg.Now)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	return &OpenAI{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		limiter:     limiter,
		fallback:    cfg.Fallback,
		client:      cfg.HTTPClient,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}, nil
}

// Name returns the provider name
func (o *OpenAI) Name() string {
	return "openai"
}

// Model returns the model name being used
func (o *OpenAI) Model() string {
	return o.model
}

// Ping lists models to confirm the key and endpoint work.
func (o *OpenAI) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	return nil
}

// Close releases resources held by the analyzer
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// Analyze asks the model for an assessment.
func (o *OpenAI) Analyze(ctx context.Context, extraction *domain.ExtractionResult, actx domain.AnalysisContext) (*domain.AnalysisResult, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	now := o.now()
	content, err := o.complete(ctx, chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(extraction.DocumentType)},
			{Role: "user", Content: UserPrompt(extraction, actx, domain.FormatDate(now))},
		},
		MaxTokens:      o.maxTokens,
		Temperature:    o.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) || errors.Is(err, domain.ErrRateLimited) || ctx.Err() != nil {
			return nil, err
		}
		o.logger.Warn("analysis degraded to rule-based result",
			"document_id", extraction.DocumentID,
			"provider", o.Name(),
			"error", err)
		return o.fallback.Assess(extraction, actx), nil
	}

	reply, ok := ParseReply(content)
	if !ok {
		o.logger.Warn("analysis reply could not be interpreted", "document_id", extraction.DocumentID)
		return analysisFailed(extraction, actx, content, o.Name(), now), nil
	}
	return BuildAnalysis(reply, content, extraction, actx, o.Name(), now), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// complete returns the content of the first choice.
func (o *OpenAI) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return "", err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			chat.Error.Message, chat.Error.Type, chat.Error.Code)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrMalformedResponse)
	}
	return chat.Choices[0].Message.Content, nil
}

// statusError classifies a non-2xx status.
func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: LLM API returned status %d", domain.ErrAuthentication, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: LLM API returned status %d", domain.ErrRateLimited, code)
	case code < 200 || code > 299:
		return fmt.Errorf("LLM API returned status %d", code)
	}
	return nil
}
