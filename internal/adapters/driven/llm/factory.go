package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)

// Config selects and configures a DocumentAnalyzer.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	RatePerSec  float64

	// Vertex AI
	ProjectID       string
	Region          string
	CredentialsFile string

	Logger *slog.Logger
	Now    func() time.Time
}

// New creates the analyzer named by cfg.Provider. A provider that is not
// configured falls back to the rule-based analyzer.
func New(ctx context.Context, cfg Config) (driven.DocumentAnalyzer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	synthetic := NewSynthetic(cfg.Now)

	switch cfg.Provider {
	case "", ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.Logger.Warn("no LLM API key configured, serving rule-based analyses")
			return synthetic, nil
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			RatePerSec:  cfg.RatePerSec,
			Fallback:    synthetic,
			Logger:      cfg.Logger,
			Now:         cfg.Now,
		})
	case ProviderVertex:
		if cfg.ProjectID == "" {
			cfg.Logger.Warn("no Vertex project configured, serving rule-based analyses")
			return synthetic, nil
		}
		return NewVertex(ctx, VertexConfig{
			ProjectID:       cfg.ProjectID,
			Region:          cfg.Region,
			Model:           cfg.Model,
			CredentialsFile: cfg.CredentialsFile,
			Timeout:         cfg.Timeout,
			MaxTokens:       cfg.MaxTokens,
			Fallback:        synthetic,
			Logger:          cfg.Logger,
			Now:             cfg.Now,
		})
	case domain.ProviderSynthetic:
		return synthetic, nil
	default:
		return nil, fmt.Errorf("%w: llm provider %q", domain.ErrInvalidProvider, cfg.Provider)
	}
}
