package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"github.com/vinialveslopesanjos/sentimenta/internal/textutil"
	"gorm.io/gorm"
)

// IngestService merges fetched posts and comments into stored state.
type IngestService struct {
	posts    *repository.PostRepository
	comments *repository.CommentRepository
	analyses *repository.AnalysisRepository
	media    MediaCacher
	logger   *logger.Logger
}

// IngestOptions holds per-invocation fetch limits passed to the source adapter.
type IngestOptions struct {
	MaxPosts           int
	MaxCommentsPerPost int
	Since              *time.Time
}

// MergeStats holds counters for one merge invocation. Per-record failures are
// collected in Errors and never abort the batch.
type MergeStats struct {
	PostsCreated    int
	PostsUpdated    int
	CommentsCreated int
	CommentsUpdated int
	Errors          []string
}

// FetchedPost pairs one fetched post with its fetched comments.
type FetchedPost struct {
	Post     source.PostItem
	Comments []source.CommentItem
}

// NewIngestService creates a new ingest service.
// Parameters:
//   - posts: post repository.
//   - comments: comment repository.
//   - analyses: analysis repository, used to drop stale results on text edits.
//   - media: media cacher, nil disables media caching.
//   - log: base logger.
//
// Returns:
//   - *IngestService: initialized service.
func NewIngestService(
	posts *repository.PostRepository,
	comments *repository.CommentRepository,
	analyses *repository.AnalysisRepository,
	media MediaCacher,
	log *logger.Logger,
) *IngestService {
	return &IngestService{
		posts:    posts,
		comments: comments,
		analyses: analyses,
		media:    media,
		logger:   log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IngestConnection fetches recent posts and comments through the adapter and
// merges them into stored state. An adapter failure on the post fetch is
// fatal; per-post comment fetch failures and per-record persistence failures
// are accumulated and do not abort the batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - conn: connection being ingested.
//   - adapter: platform fetcher.
//   - opts: fetch limits.
//
// Returns:
//   - *MergeStats: merge counters, valid even when partial errors occurred.
//   - error: non-nil only when the post fetch itself failed.
func (s *IngestService) IngestConnection(ctx context.Context, conn *domain.Connection, adapter source.Adapter, opts *IngestOptions) (*MergeStats, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	postItems, err := adapter.FetchPosts(ctx, conn.Username, opts.MaxPosts, opts.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for @%s: %w", conn.Username, err)
	}

	stats := &MergeStats{}
	fetched := make([]FetchedPost, 0, len(postItems))
	for _, item := range postItems {
		commentItems, err := adapter.FetchComments(ctx, item.PlatformPostID, opts.MaxCommentsPerPost)
		if err != nil {
			s.log(ctx).WithError(err).WithField(logger.FieldPostID, item.PlatformPostID).
				Error("Failed to fetch comments")
			stats.Errors = append(stats.Errors, err.Error())
			commentItems = nil
		}
		fetched = append(fetched, FetchedPost{Post: item, Comments: commentItems})
	}

	s.Merge(ctx, conn, fetched, stats)

	s.log(ctx).WithFields(logger.Fields{
		"posts_created":    stats.PostsCreated,
		"posts_updated":    stats.PostsUpdated,
		"comments_created": stats.CommentsCreated,
		"comments_updated": stats.CommentsUpdated,
		"errors":           len(stats.Errors),
	}).Info("Ingestion merge completed")

	return stats, nil
}

// Merge upserts fetched posts and their comments against stored state.
// Re-running with identical input is a no-op on persisted values except
// fetched_at. Counters accumulate into stats.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - conn: connection owning the fetched data.
//   - fetched: fetched posts with their comments.
//   - stats: counters to accumulate into.
func (s *IngestService) Merge(ctx context.Context, conn *domain.Connection, fetched []FetchedPost, stats *MergeStats) {
	for _, fp := range fetched {
		post, err := s.mergePost(ctx, conn, &fp.Post, stats)
		if err != nil {
			s.log(ctx).WithError(err).WithField(logger.FieldPostID, fp.Post.PlatformPostID).
				Error("Failed to merge post")
			stats.Errors = append(stats.Errors, err.Error())
			continue
		}

		for i := range fp.Comments {
			if err := s.mergeComment(ctx, conn, post, &fp.Comments[i], stats); err != nil {
				s.log(ctx).WithError(err).WithField(logger.FieldPostID, post.ID).
					Error("Failed to merge comment")
				stats.Errors = append(stats.Errors, err.Error())
			}
		}
	}
}

// mergePost upserts one post by its (connection_id, platform_post_id) key.
func (s *IngestService) mergePost(ctx context.Context, conn *domain.Connection, item *source.PostItem, stats *MergeStats) (*domain.Post, error) {
	if item.PlatformPostID == "" {
		return nil, fmt.Errorf("post without platform id")
	}

	now := time.Now().UTC()

	existing, err := s.posts.GetByPlatformID(ctx, conn.ID, item.PlatformPostID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}

	if existing != nil {
		// Refresh mutable fields in place; identity fields stay untouched.
		existing.PostType = item.PostType
		existing.ContentText = item.Caption
		existing.LikeCount = item.LikeCount
		existing.CommentCount = item.CommentCount
		existing.ShareCount = item.ShareCount
		existing.ViewCount = item.ViewCount
		existing.PostURL = item.PostURL
		existing.PublishedAt = item.PublishedAt
		existing.RawPayload = item.Raw
		existing.FetchedAt = now
		if item.MediaURL != existing.MediaURL {
			existing.MediaURL = item.MediaURL
			existing.CachedMediaURL = s.cacheMedia(ctx, item.MediaURL)
		}
		if err := s.posts.Save(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update post: %w", err)
		}
		stats.PostsUpdated++
		return existing, nil
	}

	post := &domain.Post{
		ID:             uuid.New().String(),
		ConnectionID:   conn.ID,
		Platform:       conn.Platform,
		PlatformPostID: item.PlatformPostID,
		PostType:       item.PostType,
		ContentText:    item.Caption,
		MediaURL:       item.MediaURL,
		CachedMediaURL: s.cacheMedia(ctx, item.MediaURL),
		LikeCount:      item.LikeCount,
		CommentCount:   item.CommentCount,
		ShareCount:     item.ShareCount,
		ViewCount:      item.ViewCount,
		PostURL:        item.PostURL,
		RawPayload:     item.Raw,
		PublishedAt:    item.PublishedAt,
		FetchedAt:      now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	stats.PostsCreated++
	return post, nil
}

// mergeComment upserts one comment by its (post_id, platform_comment_id) key.
// Status is preserved on update unless the text itself changed, in which case
// the comment goes back to pending for re-analysis.
func (s *IngestService) mergeComment(ctx context.Context, conn *domain.Connection, post *domain.Post, item *source.CommentItem, stats *MergeStats) error {
	if item.PlatformCommentID == "" {
		// Unusable identity, skip silently.
		return nil
	}

	textClean := textutil.Clean(item.Text)
	textHash := textutil.Fingerprint(item.Text)

	existing, err := s.comments.GetByPlatformID(ctx, post.ID, item.PlatformCommentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up comment: %w", err)
	}

	if existing != nil {
		textChanged := existing.TextHash != textHash
		existing.AuthorName = item.AuthorName
		existing.AuthorUsername = item.AuthorUsername
		existing.LikeCount = item.LikeCount
		existing.ReplyCount = item.ReplyCount
		existing.TextOriginal = item.Text
		existing.TextClean = textClean
		existing.TextHash = textHash
		existing.PublishedAt = item.PublishedAt
		existing.RawPayload = item.Raw
		if textChanged {
			// Edited content invalidates the previous analysis outcome. The
			// stale analysis rows go too, otherwise the repair pass would
			// settle the comment with results for the old text.
			existing.Status = domain.CommentStatusPending
			existing.LastError = ""
			if err := s.analyses.DeleteByComment(ctx, existing.ID); err != nil {
				return fmt.Errorf("failed to drop stale analyses: %w", err)
			}
		}
		if err := s.comments.Save(ctx, existing); err != nil {
			return fmt.Errorf("failed to update comment: %w", err)
		}
		stats.CommentsUpdated++
		return nil
	}

	comment := &domain.Comment{
		ID:                uuid.New().String(),
		PostID:            post.ID,
		ConnectionID:      conn.ID,
		Platform:          conn.Platform,
		PlatformCommentID: item.PlatformCommentID,
		AuthorName:        item.AuthorName,
		AuthorUsername:    item.AuthorUsername,
		LikeCount:         item.LikeCount,
		ReplyCount:        item.ReplyCount,
		TextOriginal:      item.Text,
		TextClean:         textClean,
		TextHash:          textHash,
		RawPayload:        item.Raw,
		Status:            domain.CommentStatusPending,
		PublishedAt:       item.PublishedAt,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	stats.CommentsCreated++
	return nil
}

// cacheMedia stores a copy of the post media, best effort.
func (s *IngestService) cacheMedia(ctx context.Context, url string) string {
	if s.media == nil || url == "" {
		return ""
	}
	cached, err := s.media.CacheURL(ctx, url)
	if err != nil {
		s.log(ctx).WithError(err).Debug("Skipping media cache")
		return ""
	}
	return cached
}
