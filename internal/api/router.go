package api

import (
	"github.com/gin-gonic/gin"
	"github.com/vinialveslopesanjos/sentimenta/internal/api/handler"
	"github.com/vinialveslopesanjos/sentimenta/internal/api/middleware"
	"github.com/vinialveslopesanjos/sentimenta/internal/cache"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/service"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Pipeline    *service.PipelineService
	Connections *repository.ConnectionRepository
	Posts       *repository.PostRepository
	Summaries   *repository.SummaryRepository
	Runs        *repository.RunRepository
	Cache       *cache.DashboardCache
	Logger      *logger.Logger
	CORS        middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *RouterDeps, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler()
	connectionHandler := handler.NewConnectionHandler(deps.Connections)
	pipelineHandler := handler.NewPipelineHandler(deps.Pipeline, deps.Runs, deps.Logger)
	dashboardHandler := handler.NewDashboardHandler(deps.Connections, deps.Posts, deps.Summaries, deps.Cache)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Connections
		v1.POST("/connections", connectionHandler.Create)
		v1.GET("/connections", connectionHandler.List)
		v1.POST("/connections/:id/sync", pipelineHandler.TriggerSync)

		// Runs
		v1.GET("/runs", pipelineHandler.ListRuns)
		v1.GET("/runs/:id", pipelineHandler.GetRun)

		// Dashboard
		v1.GET("/dashboard/summary", dashboardHandler.Summary)
	}

	return r
}
