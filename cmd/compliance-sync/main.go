package main

// @title           Compliance Sync API
// @version         1.0
// @description     Pulls employee documents from OpenText, runs OCR and LLM analysis, and serves compliance status.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/auth"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/gcs"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/llm"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/memory"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/ocr"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/opentext"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/compliance-sync/internal/adapters/driven/redis"
	"github.com/custodia-labs/compliance-sync/internal/adapters/driving/http"
	"github.com/custodia-labs/compliance-sync/internal/config"
	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driving"
	"github.com/custodia-labs/compliance-sync/internal/core/services"
	"github.com/custodia-labs/compliance-sync/internal/fields"
	"github.com/custodia-labs/compliance-sync/internal/metrics"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	// Command line arg overrides RUN_MODE
	if len(os.Args) > 1 {
		cfg.Mode = os.Args[1]
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	log.Printf("compliance-sync %s starting in %s mode", version, cfg.Mode)
	if cfg.UsingDevSecret() {
		log.Println("Warning: JWT_SECRET not set, using the development secret")
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Record store (PostgreSQL if configured, otherwise in-memory) =====
	var (
		db           *postgres.DB
		store        driven.RecordStore
		storeBackend = "memory"
	)
	if cfg.Database.URL != "" {
		log.Println("Connecting to PostgreSQL...")
		db, err = postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = postgres.NewRecordStore(db)
		storeBackend = "postgres"
	} else {
		log.Println("DATABASE_URL not set, using in-memory record store")
		store = memory.NewRecordStore()
	}
	if err := store.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize record store: %v", err)
	}
	log.Printf("Record store ready (%s)", storeBackend)

	// ===== Distributed lock (Redis if available, otherwise PostgreSQL advisory locks) =====
	var (
		lock        driven.DistributedLock
		lockBackend = "local"
	)
	switch {
	case cfg.RedisURL != "":
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		lock = redisadapter.NewLock(redisClient)
		lockBackend = "redis"
	case db != nil:
		lock = postgres.NewAdvisoryLock(db)
		lockBackend = "postgres"
	}
	log.Printf("Using %s sync lock", lockBackend)

	// ===== Driven adapters =====
	connector := opentext.New(opentext.Config{
		BaseURL:   cfg.OpenText.BaseURL,
		Username:  cfg.OpenText.Username,
		Password:  cfg.OpenText.Password,
		BatchSize: cfg.OpenText.BatchSize,
		Timeout:   cfg.OpenText.Timeout,
		Logger:    logger,
	})

	extractor, err := ocr.New(ocr.Config{
		Provider:     cfg.OCR.Provider,
		Endpoint:     cfg.OCR.Endpoint,
		APIKey:       cfg.OCR.APIKey,
		Timeout:      cfg.OCR.Timeout,
		MaxFileSize:  cfg.OCR.MaxFileSize,
		RatePerSec:   cfg.OCR.RatePerSec,
		PDFTextLayer: cfg.OCR.PDFTextLayer,
		Languages:    cfg.OCR.Languages,
		Registry:     fields.DefaultRegistry(),
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create text extractor: %v", err)
	}

	llmCfg := llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		RatePerSec:  cfg.LLM.RatePerSec,
		Logger:      logger,
	}
	if cfg.LLM.Provider == llm.ProviderVertex {
		llmCfg.Model = cfg.LLM.VertexModel
		llmCfg.ProjectID = cfg.LLM.VertexProject
		llmCfg.Region = cfg.LLM.VertexRegion
		llmCfg.CredentialsFile = cfg.LLM.VertexCredentials
	}
	analyzer, err := llm.New(ctx, llmCfg)
	if err != nil {
		log.Fatalf("Failed to create document analyzer: %v", err)
	}
	defer analyzer.Close()

	var archive driven.DocumentArchive
	if cfg.Archive.Bucket != "" {
		gcsArchive, err := gcs.NewArchive(ctx, gcs.Config{
			Bucket:          cfg.Archive.Bucket,
			Prefix:          cfg.Archive.Prefix,
			CredentialsFile: cfg.Archive.CredentialsFile,
			Logger:          logger,
		})
		if err != nil {
			log.Fatalf("Failed to create document archive: %v", err)
		}
		defer gcsArchive.Close()
		archive = gcsArchive
		log.Printf("Archiving raw documents to gs://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	authAdapter := auth.NewAdapter(cfg.Auth.JWTSecret)
	pipelineMetrics := metrics.NewPipeline()

	// Runtime configuration
	runtimeConfig := domain.NewRuntimeConfig(storeBackend, lockBackend, extractor.Name(), analyzer.Name())
	log.Printf("Runtime config: store=%s, lock=%s, ocr=%s, llm=%s (%s)",
		storeBackend, lockBackend, extractor.Name(), analyzer.Name(), analyzer.Model())

	// ===== Services (core business logic) =====
	pipeline := services.NewDocumentPipeline(services.DocumentPipelineConfig{
		Connector:   connector,
		Extractor:   extractor,
		Analyzer:    analyzer,
		Store:       store,
		Archive:     archive,
		Metrics:     pipelineMetrics,
		Runtime:     runtimeConfig,
		Logger:      logger,
		MaxRetries:  cfg.Processing.MaxRetries,
		BaseBackoff: cfg.Processing.BaseBackoff,
	})
	runner := services.NewBatchRunner(services.BatchRunnerConfig{
		Processor:   pipeline,
		Concurrency: cfg.Processing.Concurrency,
		Metrics:     pipelineMetrics,
		Logger:      logger,
	})
	syncJob := services.NewSyncJob(services.SyncJobConfig{
		Connector: connector,
		Store:     store,
		Runner:    runner,
		Lock:      lock,
		Metrics:   pipelineMetrics,
		Logger:    logger,
	})
	scheduler := services.NewScheduler(services.SchedulerConfig{
		Job:             syncJob,
		Store:           store,
		Logger:          logger,
		DefaultInterval: cfg.Schedule.Interval,
	})
	complianceService := services.NewComplianceService(services.ComplianceServiceConfig{
		Scheduler: scheduler,
		Job:       syncJob,
		Store:     store,
		Connector: connector,
		Extractor: extractor,
		Analyzer:  analyzer,
		Lock:      lock,
		Archive:   archive,
		Runtime:   runtimeConfig,
		JobName:   cfg.Schedule.JobName,
		Logger:    logger,
	})
	authService := services.NewAuthService(services.AuthServiceConfig{
		Accounts: []services.Account{
			{Username: cfg.Auth.OperatorUsername, PasswordHash: cfg.Auth.OperatorPasswordHash, Role: domain.RoleOperator},
			{Username: cfg.Auth.ViewerUsername, PasswordHash: cfg.Auth.ViewerPasswordHash, Role: domain.RoleViewer},
		},
		AuthAdapter: authAdapter,
		TokenTTL:    cfg.Auth.TokenTTL,
	})
	if cfg.Auth.OperatorPasswordHash == "" {
		log.Println("Warning: OPERATOR_PASSWORD_HASH not set, operator login disabled")
	}

	switch cfg.Mode {
	case config.ModeAPI:
		// API-only mode: HTTP server, no scheduler
		runAPI(ctx, cfg, authService, complianceService, pipelineMetrics)

	case config.ModeWorker:
		// Worker-only mode: scheduler, no HTTP server
		runWorkerMode(ctx, cfg, scheduler)

	case config.ModeAll:
		// Combined mode: scheduler in background, API in foreground
		done := make(chan struct{})
		go func() {
			defer close(done)
			runWorkerMode(ctx, cfg, scheduler)
		}()
		runAPI(ctx, cfg, authService, complianceService, pipelineMetrics)
		cancel()
		<-done
	}
}

func runAPI(
	ctx context.Context,
	cfg *config.Config,
	authService driving.AuthService,
	complianceService driving.ComplianceService,
	pipelineMetrics *metrics.Pipeline,
) {
	server := http.NewServer(http.Config{
		Host:        "0.0.0.0",
		Port:        cfg.Port,
		Version:     version,
		CORSOrigins: cfg.Auth.CORSOrigins,
		Logger:      slog.Default(),
	}, authService, complianceService, pipelineMetrics.Handler())

	log.Printf("API server starting on :%d", cfg.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode starts the periodic sync and blocks until ctx is cancelled.
func runWorkerMode(ctx context.Context, cfg *config.Config, scheduler *services.Scheduler) {
	if !cfg.Schedule.Enabled {
		log.Println("Scheduler disabled via SCHEDULE_ENABLED=false")
		<-ctx.Done()
		return
	}

	info, err := scheduler.Start(ctx, cfg.Schedule.JobName, cfg.Schedule.Interval)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Printf("Scheduled %s every %s (next run %s)", info.JobName, info.Interval, info.NextRun.Format("15:04:05"))

	<-ctx.Done()

	// Graceful shutdown: let an in-flight run finish
	log.Println("Stopping scheduler...")
	scheduler.StopAll()
	scheduler.Wait()
	log.Println("Scheduler stopped")
}
