package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
)

// CacheInvalidator drops derived read caches after a run changes stored data.
type CacheInvalidator interface {
	InvalidateDashboard(ctx context.Context, userID string) error
}

// PipelineService orchestrates one run end to end: ingest through the source
// adapter, analyze pending comments post by post, regenerate summaries, then
// settle the run record. Every step failure is absorbed into the run outcome;
// Execute itself only errors on tracker persistence failures.
type PipelineService struct {
	connections *repository.ConnectionRepository
	posts       *repository.PostRepository
	ingest      *IngestService
	analysis    *AnalysisService
	summary     *SummaryService
	tracker     *RunTracker
	adapters    map[string]source.Adapter
	cache       CacheInvalidator
	opts        IngestOptions
	logger      *logger.Logger
}

// NewPipelineService creates a new pipeline orchestrator.
// Parameters:
//   - connections: connection repository.
//   - posts: post repository.
//   - ingest: ingestion merger.
//   - analysis: analysis batcher.
//   - summary: aggregation engine.
//   - tracker: run tracker.
//   - adapters: source adapters keyed by platform.
//   - cache: read cache invalidator, nil disables invalidation.
//   - opts: fetch limits applied to every run.
//   - log: base logger.
//
// Returns:
//   - *PipelineService: initialized orchestrator.
func NewPipelineService(
	connections *repository.ConnectionRepository,
	posts *repository.PostRepository,
	ingest *IngestService,
	analysis *AnalysisService,
	summary *SummaryService,
	tracker *RunTracker,
	adapters map[string]source.Adapter,
	cache CacheInvalidator,
	opts IngestOptions,
	log *logger.Logger,
) *PipelineService {
	return &PipelineService{
		connections: connections,
		posts:       posts,
		ingest:      ingest,
		analysis:    analysis,
		summary:     summary,
		tracker:     tracker,
		adapters:    adapters,
		cache:       cache,
		opts:        opts,
		logger:      log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *PipelineService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// StartRun creates the run record for a connection so callers can hand the ID
// back immediately and drive Execute asynchronously.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - connectionID: connection to process.
//   - runType: what the run covers.
//
// Returns:
//   - *domain.PipelineRun: persisted run in the running state.
//   - error: non-nil if the connection is unknown or the insert fails.
func (s *PipelineService) StartRun(ctx context.Context, connectionID string, runType domain.RunType) (*domain.PipelineRun, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", connectionID, err)
	}
	return s.tracker.Start(ctx, conn.UserID, conn.ID, runType)
}

// Execute drives a started run to a terminal state. Cancellation mid-run
// settles the record as partial with whatever work already landed; a post
// fetch failure settles it as failed. Errors during individual posts degrade
// the outcome to partial but never abort the walk.
// Parameters:
//   - ctx: context for cancellation, honored between posts and chunks.
//   - run: run created by StartRun.
//
// Returns:
//   - error: non-nil only when finishing the run record itself fails.
func (s *PipelineService) Execute(ctx context.Context, run *domain.PipelineRun) error {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldRunID:        run.ID,
		logger.FieldConnectionID: run.ConnectionID,
	})

	conn, err := s.connections.GetByID(ctx, run.ConnectionID)
	if err != nil {
		return s.tracker.Finish(ctx, run, s.statusFor(ctx, domain.RunStatusFailed),
			fmt.Errorf("failed to load connection: %w", err))
	}

	adapter, ok := s.adapters[conn.Platform]
	if !ok && run.RunType != domain.RunTypeAnalyze {
		return s.tracker.Finish(ctx, run, domain.RunStatusFailed,
			fmt.Errorf("no source adapter for platform %q", conn.Platform))
	}

	degraded := false

	if run.RunType != domain.RunTypeAnalyze {
		s.tracker.RecordProgress(ctx, run, &domain.RunProgress{Step: "ingest"})

		opts := s.opts
		opts.Since = conn.LastSyncAt
		stats, err := s.ingest.IngestConnection(ctx, conn, adapter, &opts)
		if err != nil {
			if finishErr := s.tracker.Finish(ctx, run, s.statusFor(ctx, domain.RunStatusFailed), err); finishErr != nil {
				return finishErr
			}
			s.invalidate(ctx, run.UserID)
			return nil
		}
		if err := s.tracker.RecordIngestResult(ctx, run, stats); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to record ingest counters")
		}
		if len(stats.Errors) > 0 {
			degraded = true
		}
		if err := s.connections.TouchLastSync(ctx, conn.ID, time.Now().UTC()); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to update connection sync time")
		}
	}

	if run.RunType != domain.RunTypeIngest {
		if err := s.analyzeAll(ctx, run, conn, &degraded); err != nil {
			// Only context errors surface from the walk; work already landed
			// stays durable, so the run settles as partial.
			if finishErr := s.tracker.Finish(ctx, run, domain.RunStatusPartial, err); finishErr != nil {
				return finishErr
			}
			s.invalidate(ctx, run.UserID)
			return nil
		}
	}

	status := domain.RunStatusCompleted
	if degraded {
		status = domain.RunStatusPartial
	}
	if err := s.tracker.Finish(ctx, run, status, nil); err != nil {
		return err
	}
	s.invalidate(ctx, run.UserID)
	return nil
}

// analyzeAll walks every post of the connection, analyzing pending comments
// and regenerating the summary. Returns only context errors; everything else
// degrades the run.
func (s *PipelineService) analyzeAll(ctx context.Context, run *domain.PipelineRun, conn *domain.Connection, degraded *bool) error {
	posts, err := s.posts.ListByConnection(ctx, conn.ID)
	if err != nil {
		if isCtxErr(err) {
			return err
		}
		s.log(ctx).WithError(err).Error("Failed to list posts for analysis")
		*degraded = true
		return nil
	}

	for i := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}

		post := &posts[i]
		s.tracker.RecordProgress(ctx, run, &domain.RunProgress{
			Step:        "analyze",
			Current:     i + 1,
			Total:       len(posts),
			CurrentPost: post.PlatformPostID,
		})

		stats, err := s.analysis.AnalyzePost(ctx, post.ID)
		if recErr := s.tracker.RecordAnalysisResult(ctx, run, stats); recErr != nil {
			s.log(ctx).WithError(recErr).Warn("Failed to record analysis counters")
		}
		if err != nil {
			if isCtxErr(err) {
				return err
			}
			s.log(ctx).WithError(err).WithField(logger.FieldPostID, post.ID).
				Error("Post analysis failed")
			*degraded = true
			continue
		}
		if stats.Errors > 0 {
			*degraded = true
		}

		if _, err := s.summary.Summarize(ctx, post.ID); err != nil {
			if isCtxErr(err) {
				return err
			}
			s.log(ctx).WithError(err).WithField(logger.FieldPostID, post.ID).
				Error("Summary regeneration failed")
			*degraded = true
		}
	}

	s.tracker.RecordProgress(ctx, run, &domain.RunProgress{
		Step:    "done",
		Current: len(posts),
		Total:   len(posts),
	})
	return nil
}

// statusFor downgrades failed to partial when cancellation, not a real
// failure, cut the run short after some work may have landed.
func (s *PipelineService) statusFor(ctx context.Context, status domain.RunStatus) domain.RunStatus {
	if ctx.Err() != nil {
		return domain.RunStatusPartial
	}
	return status
}

// invalidate drops the dashboard cache for the run owner, best effort. Uses a
// fresh context so invalidation still lands after cancellation.
func (s *PipelineService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.InvalidateDashboard(cacheCtx, userID); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to invalidate dashboard cache")
	}
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
