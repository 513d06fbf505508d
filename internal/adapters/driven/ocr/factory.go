package ocr

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
	"github.com/custodia-labs/compliance-sync/internal/fields"
)

// Provider names accepted by New.
const (
	ProviderOCRSpace  = "ocrspace"
	ProviderTesseract = "tesseract"
)

// Config selects and configures a TextExtractor.
type Config struct {
	Provider     string
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	MaxFileSize  int64
	RatePerSec   float64
	PDFTextLayer bool
	Languages    []string
	Registry     driven.FieldExtractorRegistry
	Logger       *slog.Logger
	Now          func() time.Time
}

// EngineFactory builds an extractor for a provider that registers itself.
type EngineFactory func(cfg Config, fallback *Synthetic) (driven.TextExtractor, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{}
)

// RegisterEngine makes an optional engine available to New. Engines with
// native dependencies register from their own package init.
func RegisterEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = factory
}

// Engines lists the registered optional engines.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates the extractor named by cfg.Provider.
// OCR.space without an API key falls back to the synthetic extractor.
func New(cfg Config) (driven.TextExtractor, error) {
	if cfg.Registry == nil {
		cfg.Registry = fields.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	synthetic := NewSynthetic(SyntheticConfig{Registry: cfg.Registry, Now: cfg.Now})

	switch cfg.Provider {
	case "", ProviderOCRSpace:
		if cfg.APIKey == "" {
			cfg.Logger.Warn("no OCR API key configured, serving synthetic extractions")
			return synthetic, nil
		}
		return NewOCRSpace(OCRSpaceConfig{
			Endpoint:     cfg.Endpoint,
			APIKey:       cfg.APIKey,
			Timeout:      cfg.Timeout,
			MaxFileSize:  cfg.MaxFileSize,
			RatePerSec:   cfg.RatePerSec,
			PDFTextLayer: cfg.PDFTextLayer,
			Registry:     cfg.Registry,
			Fallback:     synthetic,
			Logger:       cfg.Logger,
			Now:          cfg.Now,
		})
	case domain.ProviderSynthetic:
		return synthetic, nil
	}

	enginesMu.RLock()
	factory, ok := engines[cfg.Provider]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: ocr provider %q (registered engines: %v)", domain.ErrInvalidProvider, cfg.Provider, Engines())
	}
	return factory(cfg, synthetic)
}
