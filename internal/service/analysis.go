package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/textutil"
	"gorm.io/gorm"
)

const defaultBatchSize = 30

// maxStoredErrorLen caps last_error so raw model summaries cannot bloat rows.
const maxStoredErrorLen = 200

// AnalysisService runs the classifier over pending comments of a post in
// fixed-size chunks, persisting one analysis row per comment per
// (model, prompt_version) and moving comment statuses out of pending.
type AnalysisService struct {
	comments      *repository.CommentRepository
	analyses      *repository.AnalysisRepository
	classifier    Classifier
	promptVersion string
	batchSize     int
	logger        *logger.Logger
}

// AnalyzeStats holds counters for one post analysis pass.
// Analyzed counts every comment a result was persisted for, including
// low-confidence ones; Errors counts low-confidence results plus comments in
// failed chunks.
type AnalyzeStats struct {
	Analyzed int
	Errors   int
	LLMCalls int
	CostUSD  float64
}

// Add accumulates another pass into this one.
func (s *AnalyzeStats) Add(other *AnalyzeStats) {
	s.Analyzed += other.Analyzed
	s.Errors += other.Errors
	s.LLMCalls += other.LLMCalls
	s.CostUSD += other.CostUSD
}

// NewAnalysisService creates a new analysis service.
// Parameters:
//   - comments: comment repository.
//   - analyses: analysis repository.
//   - classifier: LLM classifier.
//   - promptVersion: prompt version tag written to analysis rows.
//   - batchSize: comments per classifier call, <=0 uses the default of 30.
//   - log: base logger.
//
// Returns:
//   - *AnalysisService: initialized service.
func NewAnalysisService(
	comments *repository.CommentRepository,
	analyses *repository.AnalysisRepository,
	classifier Classifier,
	promptVersion string,
	batchSize int,
	log *logger.Logger,
) *AnalysisService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &AnalysisService{
		comments:      comments,
		analyses:      analyses,
		classifier:    classifier,
		promptVersion: promptVersion,
		batchSize:     batchSize,
		logger:        log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *AnalysisService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// AnalyzePost classifies every pending comment of a post. It first repairs
// comments that already carry an analysis row for the current version from an
// interrupted earlier run, then sends the remainder to the classifier in
// chunks ordered by descending like count. A failed chunk marks its comments
// as errored and the pass continues with the next chunk.
// Parameters:
//   - ctx: context for cancellation, checked between chunks.
//   - postID: post whose comments are analyzed.
//
// Returns:
//   - *AnalyzeStats: counters for the pass, valid on cancellation too.
//   - error: context error when cancelled mid-pass, repository errors otherwise.
func (s *AnalysisService) AnalyzePost(ctx context.Context, postID string) (*AnalyzeStats, error) {
	stats := &AnalyzeStats{}
	model := s.classifier.Model()

	repaired, err := s.repair(ctx, postID, model)
	if err != nil {
		return stats, err
	}
	if repaired > 0 {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPostID: postID,
			logger.FieldCount:  repaired,
		}).Info("Repaired comments with existing analyses")
	}

	pending, err := s.comments.ListPendingWithoutAnalysis(ctx, postID, model, s.promptVersion)
	if err != nil {
		return stats, err
	}
	if len(pending) == 0 {
		return stats, nil
	}

	for start := 0; start < len(pending); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		batch := make([]ClassifierInput, len(chunk))
		for i, c := range chunk {
			batch[i] = ClassifierInput{ID: c.ID, Text: c.TextClean}
		}

		results, err := s.classifier.Classify(ctx, batch, s.promptVersion)
		if err != nil {
			s.log(ctx).WithError(err).WithFields(logger.Fields{
				logger.FieldPostID: postID,
				logger.FieldCount:  len(chunk),
			}).Error("Classifier chunk failed")
			s.failChunk(ctx, chunk, err, stats)
			continue
		}
		stats.LLMCalls++

		byComment := make(map[string]*ClassifierResult, len(results))
		for i := range results {
			byComment[results[i].CommentID] = &results[i]
		}

		for i := range chunk {
			res, ok := byComment[chunk[i].ID]
			if !ok {
				// Classifier synthesizes missing ids, but guard anyway.
				zero := 0.0
				res = &ClassifierResult{
					CommentID:  chunk[i].ID,
					Confidence: &zero,
					Summary:    "missing from model output",
				}
			}
			if err := s.persistResult(ctx, &chunk[i], res, model, stats); err != nil {
				s.log(ctx).WithError(err).WithField("comment_id", chunk[i].ID).
					Error("Failed to persist analysis")
				stats.Errors++
			}
		}
	}

	return stats, nil
}

// repair flips pending comments that already have a stored analysis for the
// current version to processed without a classifier call. These rows were
// left behind by a run interrupted between persisting the analysis and
// updating the comment status, and the stored result stands as-is.
func (s *AnalysisService) repair(ctx context.Context, postID, model string) (int, error) {
	stale, err := s.comments.ListPendingWithAnalysis(ctx, postID, model, s.promptVersion)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range stale {
		if err := s.comments.UpdateStatus(ctx, stale[i].ID, domain.CommentStatusProcessed, ""); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

// persistResult upserts the analysis row for one comment and settles the
// comment status from the result confidence.
func (s *AnalysisService) persistResult(ctx context.Context, comment *domain.Comment, res *ClassifierResult, model string, stats *AnalyzeStats) error {
	analysis, err := s.analyses.GetByVersion(ctx, comment.ID, model, s.promptVersion)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		analysis = &domain.CommentAnalysis{
			ID:            uuid.New().String(),
			CommentID:     comment.ID,
			Model:         model,
			PromptVersion: s.promptVersion,
		}
	}

	analysis.Score = res.Score
	analysis.Polarity = res.Polarity
	analysis.Intensity = res.Intensity
	analysis.Emotions = domain.StringArray(res.Emotions)
	analysis.Topics = domain.StringArray(res.Topics)
	analysis.Sarcasm = res.Sarcasm
	analysis.Summary = res.Summary
	analysis.Confidence = res.Confidence
	analysis.TokensIn = res.TokensIn
	analysis.TokensOut = res.TokensOut
	analysis.CostUSD = res.CostUSD
	analysis.RawResponse = res.Raw
	analysis.AnalyzedAt = time.Now().UTC()

	if err := s.analyses.Save(ctx, analysis); err != nil {
		return err
	}
	stats.CostUSD += res.CostUSD

	if err := s.finishComment(ctx, comment.ID, analysis); err != nil {
		return err
	}

	stats.Analyzed++
	if analysis.IsError() {
		stats.Errors++
	}
	return nil
}

// finishComment settles a comment status from its persisted analysis.
func (s *AnalysisService) finishComment(ctx context.Context, commentID string, analysis *domain.CommentAnalysis) error {
	if analysis.IsError() {
		reason := analysis.Summary
		if reason == "" {
			reason = "classifier returned no usable result"
		}
		return s.comments.UpdateStatus(ctx, commentID, domain.CommentStatusError, textutil.Truncate(reason, maxStoredErrorLen))
	}
	return s.comments.UpdateStatus(ctx, commentID, domain.CommentStatusProcessed, "")
}

// failChunk marks every comment of a failed chunk as errored so the run can
// move on. These comments carry no analysis row and count as errors only.
func (s *AnalysisService) failChunk(ctx context.Context, chunk []domain.Comment, cause error, stats *AnalyzeStats) {
	msg := textutil.Truncate(cause.Error(), maxStoredErrorLen)
	for i := range chunk {
		if err := s.comments.UpdateStatus(ctx, chunk[i].ID, domain.CommentStatusError, msg); err != nil {
			s.log(ctx).WithError(err).WithField("comment_id", chunk[i].ID).
				Error("Failed to mark comment errored")
		}
		stats.Errors++
	}
}
