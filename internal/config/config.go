// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Run modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Config is the full service configuration.
type Config struct {
	Mode      string
	Port      int
	LogLevel  string
	LogFormat string // json or text

	Database   DatabaseConfig
	RedisURL   string
	OpenText   OpenTextConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Archive    ArchiveConfig
	Processing ProcessingConfig
	Schedule   ScheduleConfig
	Auth       AuthConfig
}

// DatabaseConfig configures PostgreSQL. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// OpenTextConfig configures the document source.
type OpenTextConfig struct {
	BaseURL   string
	Username  string
	Password  string
	BatchSize int
	Timeout   time.Duration
}

// OCRConfig configures text extraction.
type OCRConfig struct {
	Provider     string
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	MaxFileSize  int64
	RatePerSec   float64
	PDFTextLayer bool
	Languages    []string
}

// LLMConfig configures document analysis.
type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RatePerSec  float64

	VertexProject     string
	VertexRegion      string
	VertexModel       string
	VertexCredentials string
}

// ArchiveConfig configures the raw document archive. An empty bucket disables it.
type ArchiveConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// ProcessingConfig tunes the pipeline.
type ProcessingConfig struct {
	MaxRetries  int
	Concurrency int
	BaseBackoff time.Duration
}

// ScheduleConfig configures the periodic sync.
type ScheduleConfig struct {
	Enabled  bool
	Interval time.Duration
	JobName  string
}

// AuthConfig configures API authentication.
type AuthConfig struct {
	JWTSecret            string
	OperatorUsername     string
	OperatorPasswordHash string // bcrypt
	ViewerUsername       string
	ViewerPasswordHash   string // bcrypt
	TokenTTL             time.Duration
	CORSOrigins          []string
}

const devJWTSecret = "development-secret-change-in-production"

// Load reads .env files (if any) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	// Missing .env files are fine; the environment alone is enough.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Mode:      getEnv("RUN_MODE", ModeAll),
		Port:      getEnvInt("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		RedisURL: getEnv("REDIS_URL", ""),
		OpenText: OpenTextConfig{
			BaseURL:   getEnv("OPENTEXT_BASE_URL", "http://opentext-dms-server:8080"),
			Username:  getEnv("OPENTEXT_USERNAME", ""),
			Password:  getEnv("OPENTEXT_PASSWORD", ""),
			BatchSize: getEnvInt("OPENTEXT_BATCH_SIZE", 50),
			Timeout:   getEnvDuration("OPENTEXT_TIMEOUT", 30*time.Second),
		},
		OCR: OCRConfig{
			Provider:     getEnv("OCR_PROVIDER", "ocrspace"),
			Endpoint:     getEnv("OCR_ENDPOINT", "https://api.ocr.space/parse/image"),
			APIKey:       getEnv("OCR_API_KEY", ""),
			Timeout:      getEnvDuration("OCR_TIMEOUT", 60*time.Second),
			MaxFileSize:  int64(getEnvInt("OCR_MAX_FILE_SIZE", 10*1024*1024)),
			RatePerSec:   getEnvFloat("OCR_RATE_PER_SEC", 0),
			PDFTextLayer: getEnvBool("OCR_PDF_TEXT_LAYER", true),
			Languages:    getEnvList("OCR_LANGUAGES", []string{"eng"}),
		},
		LLM: LLMConfig{
			Provider:          getEnv("LLM_PROVIDER", "openai"),
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv("OPENAI_MODEL", "gpt-4"),
			MaxTokens:         getEnvInt("OPENAI_MAX_TOKENS", 2000),
			Temperature:       getEnvFloat("OPENAI_TEMPERATURE", 0.1),
			Timeout:           getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
			RatePerSec:        getEnvFloat("LLM_RATE_PER_SEC", 0),
			VertexProject:     getEnv("VERTEX_PROJECT", ""),
			VertexRegion:      getEnv("VERTEX_REGION", "us-central1"),
			VertexModel:       getEnv("VERTEX_MODEL", "gemini-1.5-pro"),
			VertexCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Prefix:          getEnv("ARCHIVE_PREFIX", "documents"),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Processing: ProcessingConfig{
			MaxRetries:  getEnvInt("PROCESSING_MAX_RETRIES", 3),
			Concurrency: getEnvInt("PROCESSING_CONCURRENCY", 3),
			BaseBackoff: getEnvDuration("PROCESSING_BACKOFF", time.Second),
		},
		Schedule: ScheduleConfig{
			Enabled:  getEnvBool("SCHEDULE_ENABLED", true),
			Interval: getEnvDuration("SCHEDULE_INTERVAL", 4*time.Hour),
			JobName:  getEnv("SCHEDULE_JOB_NAME", "document-sync"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", devJWTSecret),
			OperatorUsername:     getEnv("OPERATOR_USERNAME", "operator"),
			OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
			ViewerUsername:       getEnv("VIEWER_USERNAME", "viewer"),
			ViewerPasswordHash:   getEnv("VIEWER_PASSWORD_HASH", ""),
			TokenTTL:             getEnvDuration("TOKEN_TTL", 24*time.Hour),
			CORSOrigins:          getEnvList("CORS_ORIGINS", []string{"*"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		errs = append(errs, fmt.Errorf("RUN_MODE must be api, worker or all, got %q", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.Processing.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("PROCESSING_MAX_RETRIES must be positive, got %d", c.Processing.MaxRetries))
	}
	if c.Processing.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("PROCESSING_CONCURRENCY must be positive, got %d", c.Processing.Concurrency))
	}
	if c.Processing.BaseBackoff < 0 {
		errs = append(errs, fmt.Errorf("PROCESSING_BACKOFF must not be negative, got %s", c.Processing.BaseBackoff))
	}
	if c.Schedule.Enabled && c.Schedule.Interval <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULE_INTERVAL must be positive, got %s", c.Schedule.Interval))
	}
	if c.OpenText.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OPENTEXT_BATCH_SIZE must be positive, got %d", c.OpenText.BatchSize))
	}
	return errors.Join(errs...)
}

// UsingDevSecret reports whether the JWT secret is the built-in development value.
func (c *Config) UsingDevSecret() bool {
	return c.Auth.JWTSecret == devJWTSecret
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
