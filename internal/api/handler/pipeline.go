package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/service"
	"gorm.io/gorm"
)

// PipelineHandler handles pipeline trigger and run polling endpoints.
type PipelineHandler struct {
	pipeline *service.PipelineService
	runs     *repository.RunRepository
	logger   *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler.
// Parameters:
//   - pipeline: pipeline orchestrator.
//   - runs: run repository for polling reads.
//   - log: base logger for background run execution.
//
// Returns:
//   - *PipelineHandler: initialized handler.
func NewPipelineHandler(pipeline *service.PipelineService, runs *repository.RunRepository, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipeline: pipeline,
		runs:     runs,
		logger:   log,
	}
}

// runView is the API shape of a pipeline run. Progress is the decoded Notes
// payload when the run is mid-flight.
type runView struct {
	*domain.PipelineRun
	Progress *domain.RunProgress `json:"progress,omitempty"`
}

func newRunView(run *domain.PipelineRun) runView {
	view := runView{PipelineRun: run}
	if run.Notes != "" && run.Status == domain.RunStatusRunning {
		var progress domain.RunProgress
		if err := json.Unmarshal([]byte(run.Notes), &progress); err == nil {
			view.Progress = &progress
		}
	}
	return view
}

// TriggerSync handles POST /api/v1/connections/:id/sync. The run record is
// created synchronously so the response carries its ID; the pipeline itself
// runs in the background and is polled via GET /api/v1/runs/:id.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *PipelineHandler) TriggerSync(c *gin.Context) {
	connectionID := c.Param("id")

	runType := domain.RunTypeFull
	switch c.Query("type") {
	case "":
	case string(domain.RunTypeIngest):
		runType = domain.RunTypeIngest
	case string(domain.RunTypeAnalyze):
		runType = domain.RunTypeAnalyze
	case string(domain.RunTypeFull):
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid run type, expected ingest, analyze or full",
		})
		return
	}

	run, err := h.pipeline.StartRun(c.Request.Context(), connectionID, runType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start run: " + err.Error(),
		})
		return
	}

	// The background Execute mutates the run record; respond from a value
	// copy taken before it starts.
	snapshot := *run

	// Detached from the request context so client disconnects do not cancel
	// the pipeline.
	go func() {
		ctx := h.logger.WithContext(context.Background())
		if err := h.pipeline.Execute(ctx, run); err != nil {
			h.logger.WithError(err).WithField(logger.FieldRunID, run.ID).
				Error("Failed to settle pipeline run")
		}
	}()

	c.JSON(http.StatusAccepted, newRunView(&snapshot))
}

// GetRun handles GET /api/v1/runs/:id.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *PipelineHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load run: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, newRunView(run))
}

// ListRuns handles GET /api/v1/runs with optional connection_id and limit
// query parameters.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit, expected 1-100",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.runs.ListByConnection(c.Request.Context(), c.Query("connection_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list runs: " + err.Error(),
		})
		return
	}

	views := make([]runView, len(runs))
	for i := range runs {
		views[i] = newRunView(&runs[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  views,
		"count": len(views),
	})
}
