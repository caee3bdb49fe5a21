package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinialveslopesanjos/sentimenta/internal/cache"
	"github.com/vinialveslopesanjos/sentimenta/internal/config"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/service"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"github.com/vinialveslopesanjos/sentimenta/internal/source/static"
	"github.com/vinialveslopesanjos/sentimenta/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "sentimenta-pipeline",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	connectionID := flag.String("connection", "", "Connection ID to process")
	runType := flag.String("type", "full", "Run type: ingest, analyze or full")
	fixturesDir := flag.String("fixtures", "", "Directory with static source fixtures")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *connectionID == "" {
		appLogger.Fatal("Flag -connection is required")
	}

	switch domain.RunType(*runType) {
	case domain.RunTypeIngest, domain.RunTypeAnalyze, domain.RunTypeFull:
	default:
		appLogger.Fatal("Flag -type must be ingest, analyze or full")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldConnectionID: *connectionID,
		"run_type":               *runType,
	}).Info("Starting pipeline run")

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	connectionRepo := repository.NewConnectionRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	runRepo := repository.NewRunRepository(db)

	// Cancel on SIGINT/SIGTERM; committed work stays durable and the run
	// settles as partial.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = appLogger.WithContext(ctx)

	var invalidator service.CacheInvalidator
	if cfg.Redis.Enabled {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.WithError(err).Warn("Redis unavailable, skipping cache invalidation")
		} else {
			invalidator = cache.New(redisClient, 5*time.Minute, appLogger)
		}
	}

	var mediaCacher service.MediaCacher
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(&storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		mediaCacher = service.NewMediaCacheService(objectStorage)
	}

	classifier := service.NewGeminiClassifier(&service.GeminiClassifierConfig{
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		RetryDelay: cfg.LLM.RetryDelay,
	})

	ingestService := service.NewIngestService(postRepo, commentRepo, analysisRepo, mediaCacher, appLogger)
	analysisService := service.NewAnalysisService(
		commentRepo, analysisRepo, classifier,
		cfg.Pipeline.PromptVersion, cfg.Pipeline.BatchSize, appLogger)
	summaryService := service.NewSummaryService(
		commentRepo, analysisRepo, summaryRepo,
		classifier.Model(), cfg.Pipeline.PromptVersion, appLogger)
	tracker := service.NewRunTracker(runRepo, appLogger)

	adapters := map[string]source.Adapter{}
	if *fixturesDir != "" {
		for _, platform := range []string{"instagram", "youtube", "tiktok"} {
			adapters[platform] = static.NewAdapter(*fixturesDir, platform)
		}
	}

	pipelineService := service.NewPipelineService(
		connectionRepo, postRepo,
		ingestService, analysisService, summaryService, tracker,
		adapters, invalidator,
		service.IngestOptions{
			MaxPosts:           cfg.Pipeline.MaxPosts,
			MaxCommentsPerPost: cfg.Pipeline.MaxCommentsPerPost,
		},
		appLogger,
	)

	run, err := pipelineService.StartRun(ctx, *connectionID, domain.RunType(*runType))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to start run")
	}

	if err := pipelineService.Execute(ctx, run); err != nil {
		appLogger.WithError(err).Fatal("Failed to settle run")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldRunID:   run.ID,
		logger.FieldStatus:  string(run.Status),
		"posts_fetched":     run.PostsFetched,
		"comments_fetched":  run.CommentsFetched,
		"comments_analyzed": run.CommentsAnalyzed,
		"errors_count":      run.ErrorsCount,
		"llm_calls":         run.LLMCalls,
		"total_cost_usd":    run.TotalCostUSD,
	}).Info("Pipeline run finished")

	if run.Status == domain.RunStatusFailed {
		os.Exit(1)
	}
}
