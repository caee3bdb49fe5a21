package repository

import (
	"context"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository handles comment data operations.
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CommentRepository: repository instance bound to db.
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a new comment record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - comment: comment record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// Save persists all fields of an existing comment record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - comment: comment record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *CommentRepository) Save(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

// GetByID retrieves a comment by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: comment ID.
// Returns:
//   - *domain.Comment: comment record if found.
//   - error: non-nil if lookup fails.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetByPlatformID retrieves a comment by its identity key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
//   - platformCommentID: platform-assigned comment ID.
// Returns:
//   - *domain.Comment: comment record if found.
//   - error: gorm.ErrRecordNotFound when absent, other errors on failure.
func (r *CommentRepository) GetByPlatformID(ctx context.Context, postID, platformCommentID string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := r.db.WithContext(ctx).
		First(&comment, "post_id = ? AND platform_comment_id = ?", postID, platformCommentID).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListPendingWithAnalysis retrieves pending comments for a post that already
// have an analysis row for the given version. These are rows left behind when
// a prior run crashed after writing the analysis but before updating status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
//   - model: classifier model name.
//   - promptVersion: prompt version tag.
// Returns:
//   - []domain.Comment: stale pending comments.
//   - error: non-nil if the query fails.
func (r *CommentRepository) ListPendingWithAnalysis(ctx context.Context, postID, model, promptVersion string) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, domain.CommentStatusPending).
		Where("EXISTS (SELECT 1 FROM comment_analyses ca WHERE ca.comment_id = comments.id AND ca.model = ? AND ca.prompt_version = ?)",
			model, promptVersion).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// ListPendingWithoutAnalysis retrieves pending comments for a post that have
// no analysis row for the given version, ordered by descending like count so
// influential comments are analyzed first under any truncation.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
//   - model: classifier model name.
//   - promptVersion: prompt version tag.
// Returns:
//   - []domain.Comment: comments awaiting analysis.
//   - error: non-nil if the query fails.
func (r *CommentRepository) ListPendingWithoutAnalysis(ctx context.Context, postID, model, promptVersion string) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, domain.CommentStatusPending).
		Where("NOT EXISTS (SELECT 1 FROM comment_analyses ca WHERE ca.comment_id = comments.id AND ca.model = ? AND ca.prompt_version = ?)",
			model, promptVersion).
		Order("like_count DESC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateStatus sets the analysis status and last error for a comment.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: comment ID.
//   - status: new status value.
//   - lastError: error note, empty clears the stored error.
// Returns:
//   - error: non-nil if the update fails.
func (r *CommentRepository) UpdateStatus(ctx context.Context, id string, status domain.CommentStatus, lastError string) error {
	return r.db.WithContext(ctx).Model(&domain.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_error": lastError}).Error
}

// CountByPost counts all comments under a post.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *CommentRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Comment{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// LikeCountsByPost returns a comment ID to like count map for a post, used by
// the aggregation engine to compute engagement weights.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
// Returns:
//   - map[string]int: like counts keyed by comment ID.
//   - error: non-nil if the query fails.
func (r *CommentRepository) LikeCountsByPost(ctx context.Context, postID string) (map[string]int, error) {
	type row struct {
		ID        string
		LikeCount int
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&domain.Comment{}).
		Select("id", "like_count").
		Where("post_id = ?", postID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ID] = r.LikeCount
	}
	return counts, nil
}
