package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != ModeAll {
		t.Errorf("expected mode all, got %s", cfg.Mode)
	}
	if cfg.Processing.MaxRetries != 3 || cfg.Processing.Concurrency != 3 {
		t.Errorf("expected 3 retries and concurrency 3, got %+v", cfg.Processing)
	}
	if cfg.Processing.BaseBackoff != time.Second {
		t.Errorf("expected 1s backoff, got %s", cfg.Processing.BaseBackoff)
	}
	if cfg.Schedule.Interval != 4*time.Hour {
		t.Errorf("expected 4h interval, got %s", cfg.Schedule.Interval)
	}
	if cfg.OCR.MaxFileSize != 10*1024*1024 {
		t.Errorf("expected 10MB limit, got %d", cfg.OCR.MaxFileSize)
	}
	if cfg.Database.URL != "" {
		t.Errorf("expected no database by default, got %s", cfg.Database.URL)
	}
	if !cfg.UsingDevSecret() {
		t.Error("expected development JWT secret")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RUN_MODE", "worker")
	t.Setenv("PROCESSING_CONCURRENCY", "5")
	t.Setenv("PROCESSING_BACKOFF", "250ms")
	t.Setenv("SCHEDULE_INTERVAL", "3600")
	t.Setenv("OPENAI_TEMPERATURE", "0.3")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SCHEDULE_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != ModeWorker {
		t.Errorf("expected worker, got %s", cfg.Mode)
	}
	if cfg.Processing.Concurrency != 5 {
		t.Errorf("expected concurrency 5, got %d", cfg.Processing.Concurrency)
	}
	if cfg.Processing.BaseBackoff != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.Processing.BaseBackoff)
	}
	if cfg.Schedule.Interval != time.Hour {
		t.Errorf("expected bare seconds to parse, got %s", cfg.Schedule.Interval)
	}
	if cfg.Schedule.Enabled {
		t.Error("expected schedule disabled")
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Errorf("expected 0.3, got %v", cfg.LLM.Temperature)
	}
	if len(cfg.Auth.CORSOrigins) != 2 || cfg.Auth.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.Auth.CORSOrigins)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "OPENTEXT_USERNAME=from-file\nOCR_PROVIDER=synthetic\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENTEXT_USERNAME", "from-env")
	// Registered so t.Setenv restores it after the file sets it.
	t.Setenv("OCR_PROVIDER", "")
	os.Unsetenv("OCR_PROVIDER")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenText.Username != "from-env" {
		t.Errorf("expected environment to win, got %s", cfg.OpenText.Username)
	}
	if cfg.OCR.Provider != "synthetic" {
		t.Errorf("expected value from .env, got %s", cfg.OCR.Provider)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mode:       ModeAll,
			Port:       8080,
			OpenText:   OpenTextConfig{BatchSize: 50},
			Processing: ProcessingConfig{MaxRetries: 3, Concurrency: 3, BaseBackoff: time.Second},
			Schedule:   ScheduleConfig{Enabled: true, Interval: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Mode = "batch" }, "RUN_MODE"},
		{"zero retries", func(c *Config) { c.Processing.MaxRetries = 0 }, "PROCESSING_MAX_RETRIES"},
		{"zero concurrency", func(c *Config) { c.Processing.Concurrency = 0 }, "PROCESSING_CONCURRENCY"},
		{"zero interval", func(c *Config) { c.Schedule.Interval = 0 }, "SCHEDULE_INTERVAL"},
		{"zero interval while disabled", func(c *Config) { c.Schedule = ScheduleConfig{} }, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (&Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
