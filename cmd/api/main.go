package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinialveslopesanjos/sentimenta/internal/api"
	"github.com/vinialveslopesanjos/sentimenta/internal/api/middleware"
	"github.com/vinialveslopesanjos/sentimenta/internal/cache"
	"github.com/vinialveslopesanjos/sentimenta/internal/config"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/service"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"github.com/vinialveslopesanjos/sentimenta/internal/source/static"
	"github.com/vinialveslopesanjos/sentimenta/internal/storage"
)

func main() {
	// Initialize logger first so every startup failure is structured
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

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

	ctx := context.Background()

	// Redis-backed dashboard cache, optional
	var dashCache *cache.DashboardCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to Redis")
		}
		dashCache = cache.New(redisClient, 5*time.Minute, appLogger)
	}

	// S3-compatible media cache, optional
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
	if dir := os.Getenv("FIXTURES_DIR"); dir != "" {
		for _, platform := range []string{"instagram", "youtube", "tiktok"} {
			adapters[platform] = static.NewAdapter(dir, platform)
		}
	}

	var invalidator service.CacheInvalidator
	if dashCache != nil {
		invalidator = dashCache
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

	router := api.SetupRouter(&api.RouterDeps{
		Pipeline:    pipelineService,
		Connections: connectionRepo,
		Posts:       postRepo,
		Summaries:   summaryRepo,
		Runs:        runRepo,
		Cache:       dashCache,
		Logger:      appLogger,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
