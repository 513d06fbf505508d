package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      Config
		wantName string
	}{
		{"openai", Config{Provider: ProviderOpenAI, APIKey: "sk"}, "openai"},
		{"default provider with key", Config{APIKey: "sk"}, "openai"},
		{"openai without key", Config{Provider: ProviderOpenAI}, domain.ProviderSynthetic},
		{"vertex without project", Config{Provider: ProviderVertex}, domain.ProviderSynthetic},
		{"synthetic", Config{Provider: domain.ProviderSynthetic}, domain.ProviderSynthetic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Name() != tt.wantName {
				t.Errorf("expected %s, got %s", tt.wantName, a.Name())
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "oracle"})
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
