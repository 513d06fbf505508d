package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Now: clock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestOpenAI_Analyze_Success(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != DefaultOpenAIModel || req.MaxTokens != 2000 || req.Temperature != 0.1 {
			t.Errorf("unexpected request settings %+v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("expected json_object response format")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(chatReply(validReply))
	})

	a, err := o.Analyze(context.Background(), passportExtraction("2030-03-01"), domain.AnalysisContext{EmployeeID: "EMP001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Provider != "openai" || a.Degraded {
		t.Errorf("expected live openai analysis, got %s", a.Provider)
	}
	if a.ValidityStatus != domain.ValidityValid || a.EmployeeID != "EMP001" {
		t.Errorf("unexpected analysis %s %s", a.ValidityStatus, a.EmployeeID)
	}
}

func TestOpenAI_Analyze_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			a, err := o.Analyze(context.Background(), passportExtraction("2030-03-01"), domain.AnalysisContext{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if a != nil {
				t.Error("expected nil analysis")
			}
		})
	}
}

func TestOpenAI_Analyze_Degrades(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed envelope", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}},
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOpenAI(t, tt.handler)

			a, err := o.Analyze(context.Background(), passportExtraction("2030-03-01"), domain.AnalysisContext{})
			if err != nil {
				t.Fatalf("expected degraded analysis, got error %v", err)
			}
			if a.Provider != domain.ProviderSynthetic || !a.Degraded {
				t.Errorf("expected rule-based analysis, got %s", a.Provider)
			}
		})
	}
}

func TestOpenAI_Analyze_UnusableReply(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply("I am unable to assess this."))
	})

	a, err := o.Analyze(context.Background(), passportExtraction("2030-03-01"), domain.AnalysisContext{Department: "Ops"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ValidityStatus != domain.ValidityAnalysisFailed {
		t.Errorf("expected Analysis Failed, got %s", a.ValidityStatus)
	}
	if a.DocumentScore != 50 || !a.RequiresManualReview {
		t.Errorf("unexpected failure record score %d", a.DocumentScore)
	}
	if a.RawAnalysis != "I am unable to assess this." || a.Department != "Ops" {
		t.Errorf("unexpected failure record %+v", a)
	}
}

func TestOpenAI_Ping(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})
	if err := o.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := bad.Ping(context.Background()); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}
