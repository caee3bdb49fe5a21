package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
)

const (
	topEmotions = 10
	topTopics   = 15
)

// SummaryService regenerates per-post aggregates from the stored comment
// analyses of the configured (model, prompt_version).
type SummaryService struct {
	comments      *repository.CommentRepository
	analyses      *repository.AnalysisRepository
	summaries     *repository.SummaryRepository
	model         string
	promptVersion string
	logger        *logger.Logger
}

// NewSummaryService creates a new summary service.
// Parameters:
//   - comments: comment repository.
//   - analyses: analysis repository.
//   - summaries: summary repository.
//   - model: classifier model name to aggregate over.
//   - promptVersion: prompt version tag to aggregate over.
//   - log: base logger.
//
// Returns:
//   - *SummaryService: initialized service.
func NewSummaryService(
	comments *repository.CommentRepository,
	analyses *repository.AnalysisRepository,
	summaries *repository.SummaryRepository,
	model string,
	promptVersion string,
	log *logger.Logger,
) *SummaryService {
	return &SummaryService{
		comments:      comments,
		analyses:      analyses,
		summaries:     summaries,
		model:         model,
		promptVersion: promptVersion,
		logger:        log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *SummaryService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Summarize rebuilds the summary row for a post from scratch. Averages only
// count analyses that carry the respective value; the weighted score uses a
// log-dampened engagement weight so popular comments lead without drowning
// everyone else. When no analyses exist yet the summary is skipped and both
// return values are nil.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: post to summarize.
//
// Returns:
//   - *domain.PostSummary: upserted summary, nil when there is nothing to aggregate.
//   - error: non-nil if a query or the upsert fails.
func (s *SummaryService) Summarize(ctx context.Context, postID string) (*domain.PostSummary, error) {
	analyses, err := s.analyses.ListByPost(ctx, postID, s.model, s.promptVersion)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		s.log(ctx).WithField(logger.FieldPostID, postID).Debug("No analyses to summarize")
		return nil, nil
	}

	totalComments, err := s.comments.CountByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	likeCounts, err := s.comments.LikeCountsByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	summary := s.aggregate(postID, analyses, likeCounts)
	summary.TotalComments = int(totalComments)

	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return nil, err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldPostID: postID,
		"total_analyzed":   summary.TotalAnalyzed,
	}).Info("Post summary regenerated")
	return summary, nil
}

// aggregate computes the summary values without touching storage.
func (s *SummaryService) aggregate(postID string, analyses []domain.CommentAnalysis, likeCounts map[string]int) *domain.PostSummary {
	summary := &domain.PostSummary{
		ID:            uuid.New().String(),
		PostID:        postID,
		TotalAnalyzed: len(analyses),
		Sentiment:     domain.IntMap{"negative": 0, "neutral": 0, "positive": 0},
		GeneratedAt:   time.Now().UTC(),
	}

	var (
		scoreSum, polaritySum, intensitySum, confidenceSum float64
		scoreN, polarityN, intensityN, confidenceN         int
		weightedSum, weightTotal                           float64
		emotionOrder, topicOrder                           []string
	)
	emotionCounts := make(map[string]int)
	topicCounts := make(map[string]int)

	for i := range analyses {
		a := &analyses[i]

		if a.Score != nil {
			scoreSum += *a.Score
			scoreN++

			// Engagement weight dampened so a single viral comment cannot
			// dominate: weight = log2(likes + 2), minimum 1 at zero likes.
			w := math.Log2(float64(likeCounts[a.CommentID] + 2))
			weightedSum += *a.Score * w
			weightTotal += w

			switch {
			case *a.Score < 4:
				summary.Sentiment["negative"]++
			case *a.Score <= 6:
				summary.Sentiment["neutral"]++
			default:
				summary.Sentiment["positive"]++
			}
		}
		if a.Polarity != nil {
			polaritySum += *a.Polarity
			polarityN++
		}
		if a.Intensity != nil {
			intensitySum += *a.Intensity
			intensityN++
		}
		if a.Confidence != nil {
			confidenceSum += *a.Confidence
			confidenceN++
		}

		for _, e := range a.Emotions {
			if _, seen := emotionCounts[e]; !seen {
				emotionOrder = append(emotionOrder, e)
			}
			emotionCounts[e]++
		}
		for _, t := range a.Topics {
			if _, seen := topicCounts[t]; !seen {
				topicOrder = append(topicOrder, t)
			}
			topicCounts[t]++
		}
	}

	if scoreN > 0 {
		summary.AvgScore = round2p(scoreSum / float64(scoreN))
	}
	if polarityN > 0 {
		summary.AvgPolarity = round2p(polaritySum / float64(polarityN))
	}
	if intensityN > 0 {
		summary.AvgIntensity = round2p(intensitySum / float64(intensityN))
	}
	if confidenceN > 0 {
		summary.AvgConfidence = round2p(confidenceSum / float64(confidenceN))
	}
	if weightTotal > 0 {
		summary.WeightedScore = round2p(weightedSum / weightTotal)
	}

	summary.Emotions = topN(emotionCounts, emotionOrder, topEmotions)
	summary.Topics = topN(topicCounts, topicOrder, topTopics)
	return summary
}

// topN keeps the n highest counts. Ties keep first-seen order so repeated
// summarize runs over the same data produce identical maps.
func topN(counts map[string]int, order []string, n int) domain.IntMap {
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	out := make(domain.IntMap, len(order))
	for _, k := range order {
		out[k] = counts[k]
	}
	return out
}

// round2p rounds to two decimals and returns a pointer for nullable columns.
func round2p(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
