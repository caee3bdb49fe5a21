package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/textutil"
	"gorm.io/gorm"
)

// RunTracker maintains the durable pipeline run record while the orchestrator
// works. Progress and counter updates are best effort single-row writes so a
// concurrent poller can watch the run advance.
type RunTracker struct {
	runs   *repository.RunRepository
	logger *logger.Logger
}

// NewRunTracker creates a new run tracker.
// Parameters:
//   - runs: run repository.
//   - log: base logger.
//
// Returns:
//   - *RunTracker: initialized tracker.
func NewRunTracker(runs *repository.RunRepository, log *logger.Logger) *RunTracker {
	return &RunTracker{runs: runs, logger: log}
}

// log returns a logger from context if available, otherwise returns the default logger
func (t *RunTracker) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return t.logger
}

// persistCtx returns ctx while it is alive and a short detached context once
// it is cancelled, so a cancelled run can still settle its record.
func persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Start creates a new run record in the running state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user ID.
//   - connectionID: connection being processed, may be empty for multi-connection runs.
//   - runType: what the run covers.
//
// Returns:
//   - *domain.PipelineRun: persisted run record.
//   - error: non-nil if the insert fails.
func (t *RunTracker) Start(ctx context.Context, userID, connectionID string, runType domain.RunType) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{
		ID:           uuid.New().String(),
		UserID:       userID,
		ConnectionID: connectionID,
		RunType:      runType,
		Status:       domain.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	if err := t.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	t.log(ctx).WithFields(logger.Fields{
		logger.FieldRunID:        run.ID,
		logger.FieldConnectionID: connectionID,
		"run_type":               string(runType),
	}).Info("Pipeline run started")
	return run, nil
}

// RecordIngestResult adds merge counters onto the run row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run being tracked; its in-memory counters are updated too.
//   - stats: merge counters to add.
//
// Returns:
//   - error: non-nil if the update fails.
func (t *RunTracker) RecordIngestResult(ctx context.Context, run *domain.PipelineRun, stats *MergeStats) error {
	run.PostsFetched += stats.PostsCreated + stats.PostsUpdated
	run.CommentsFetched += stats.CommentsCreated + stats.CommentsUpdated
	run.ErrorsCount += len(stats.Errors)
	ctx, cancel := persistCtx(ctx)
	defer cancel()
	return t.runs.Update(ctx, run.ID, map[string]interface{}{
		"posts_fetched":    gorm.Expr("posts_fetched + ?", stats.PostsCreated+stats.PostsUpdated),
		"comments_fetched": gorm.Expr("comments_fetched + ?", stats.CommentsCreated+stats.CommentsUpdated),
		"errors_count":     gorm.Expr("errors_count + ?", len(stats.Errors)),
	})
}

// RecordAnalysisResult adds analysis counters onto the run row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run being tracked; its in-memory counters are updated too.
//   - stats: analysis counters to add.
//
// Returns:
//   - error: non-nil if the update fails.
func (t *RunTracker) RecordAnalysisResult(ctx context.Context, run *domain.PipelineRun, stats *AnalyzeStats) error {
	run.CommentsAnalyzed += stats.Analyzed
	run.ErrorsCount += stats.Errors
	run.LLMCalls += stats.LLMCalls
	run.TotalCostUSD += stats.CostUSD
	ctx, cancel := persistCtx(ctx)
	defer cancel()
	return t.runs.Update(ctx, run.ID, map[string]interface{}{
		"comments_analyzed": gorm.Expr("comments_analyzed + ?", stats.Analyzed),
		"errors_count":      gorm.Expr("errors_count + ?", stats.Errors),
		"llm_calls":         gorm.Expr("llm_calls + ?", stats.LLMCalls),
		"total_cost_usd":    gorm.Expr("total_cost_usd + ?", stats.CostUSD),
	})
}

// RecordProgress writes the current step into the run notes as JSON. Failures
// are logged and swallowed, losing a progress tick never fails the pipeline.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run being tracked.
//   - progress: progress payload for polling readers.
func (t *RunTracker) RecordProgress(ctx context.Context, run *domain.PipelineRun, progress *domain.RunProgress) {
	payload, err := json.Marshal(progress)
	if err != nil {
		t.log(ctx).WithError(err).Warn("Failed to encode run progress")
		return
	}
	run.Notes = string(payload)
	if err := t.runs.Update(ctx, run.ID, map[string]interface{}{"notes": run.Notes}); err != nil {
		t.log(ctx).WithError(err).WithField(logger.FieldRunID, run.ID).
			Warn("Failed to record run progress")
	}
}

// Finish moves the run to a terminal status with its end timestamp. A non-nil
// cause replaces the progress notes with a truncated error summary.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run being tracked.
//   - status: terminal status to set.
//   - cause: failure cause, nil for clean completion.
//
// Returns:
//   - error: non-nil if the update fails.
func (t *RunTracker) Finish(ctx context.Context, run *domain.PipelineRun, status domain.RunStatus, cause error) error {
	now := time.Now().UTC()
	run.Status = status
	run.EndedAt = &now

	fields := map[string]interface{}{
		"status":   status,
		"ended_at": now,
	}
	if cause != nil {
		run.Notes = textutil.Truncate(cause.Error(), maxStoredErrorLen)
		fields["notes"] = run.Notes
	}
	persistContext, cancel := persistCtx(ctx)
	defer cancel()
	if err := t.runs.Update(persistContext, run.ID, fields); err != nil {
		return err
	}

	t.log(ctx).WithFields(logger.Fields{
		logger.FieldRunID:  run.ID,
		logger.FieldStatus: string(status),
		"comments_analyzed": run.CommentsAnalyzed,
		"errors_count":      run.ErrorsCount,
		"total_cost_usd":    run.TotalCostUSD,
	}).Info("Pipeline run finished")
	return nil
}
