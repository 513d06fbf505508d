package domain

import "sync"

// Stage names a collaborator in the document pipeline
type Stage string

const (
	StageSource   Stage = "source"
	StageOCR      Stage = "ocr"
	StageAnalysis Stage = "analysis"
)

// ProviderSnapshot is a point-in-time view of which backends are serving
type ProviderSnapshot struct {
	StoreBackend      string `json:"store_backend"`
	LockBackend       string `json:"lock_backend"`
	OCRProvider       string `json:"ocr_provider"`
	LLMProvider       string `json:"llm_provider"`
	SourceSynthetic   bool   `json:"source_synthetic"`
	OCRSynthetic      bool   `json:"ocr_synthetic"`
	AnalysisSynthetic bool   `json:"analysis_synthetic"`
}

// RuntimeConfig tracks which backends are configured and whether each
// pipeline stage last served live or synthetic data.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	StoreBackend string // "postgres" or "memory"
	LockBackend  string // "redis", "postgres" or "local"
	OCRProvider  string
	LLMProvider  string

	synthetic map[Stage]bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(storeBackend, lockBackend, ocrProvider, llmProvider string) *RuntimeConfig {
	return &RuntimeConfig{
		StoreBackend: storeBackend,
		LockBackend:  lockBackend,
		OCRProvider:  ocrProvider,
		LLMProvider:  llmProvider,
		synthetic:    make(map[Stage]bool),
	}
}

// ObserveStage records whether the latest result of a stage was synthetic
func (c *RuntimeConfig) ObserveStage(stage Stage, synthetic bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synthetic[stage] = synthetic
}

// StageSynthetic reports whether the latest result of a stage was synthetic
func (c *RuntimeConfig) StageSynthetic(stage Stage) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synthetic[stage]
}

// Snapshot returns the current provider view
func (c *RuntimeConfig) Snapshot() ProviderSnapshot {
	if c == nil {
		return ProviderSnapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ProviderSnapshot{
		StoreBackend:      c.StoreBackend,
		LockBackend:       c.LockBackend,
		OCRProvider:       c.OCRProvider,
		LLMProvider:       c.LLMProvider,
		SourceSynthetic:   c.synthetic[StageSource],
		OCRSynthetic:      c.synthetic[StageOCR],
		AnalysisSynthetic: c.synthetic[StageAnalysis],
	}
}
