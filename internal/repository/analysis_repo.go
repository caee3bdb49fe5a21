package repository

import (
	"context"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"gorm.io/gorm"
)

// AnalysisRepository handles comment analysis data operations.
type AnalysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new AnalysisRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *AnalysisRepository: repository instance bound to db.
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// GetByVersion retrieves the analysis row for a comment under a specific
// (model, prompt_version) pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - commentID: comment ID.
//   - model: classifier model name.
//   - promptVersion: prompt version tag.
// Returns:
//   - *domain.CommentAnalysis: analysis row if found.
//   - error: gorm.ErrRecordNotFound when absent, other errors on failure.
func (r *AnalysisRepository) GetByVersion(ctx context.Context, commentID, model, promptVersion string) (*domain.CommentAnalysis, error) {
	var analysis domain.CommentAnalysis
	if err := r.db.WithContext(ctx).
		First(&analysis, "comment_id = ? AND model = ? AND prompt_version = ?", commentID, model, promptVersion).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Create inserts a new analysis row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - analysis: analysis row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.CommentAnalysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

// Save persists all fields of an existing analysis row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - analysis: analysis row with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *AnalysisRepository) Save(ctx context.Context, analysis *domain.CommentAnalysis) error {
	return r.db.WithContext(ctx).Save(analysis).Error
}

// DeleteByComment removes every analysis row for a comment across all
// versions. Used when the comment text itself changed and prior results no
// longer describe it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - commentID: comment ID.
// Returns:
//   - error: non-nil if the delete fails.
func (r *AnalysisRepository) DeleteByComment(ctx context.Context, commentID string) error {
	return r.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Delete(&domain.CommentAnalysis{}).Error
}

// ListByPost retrieves every analysis row joined to comments under a post for
// the given version.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
//   - model: classifier model name.
//   - promptVersion: prompt version tag.
// Returns:
//   - []domain.CommentAnalysis: matching analysis rows.
//   - error: non-nil if the query fails.
func (r *AnalysisRepository) ListByPost(ctx context.Context, postID, model, promptVersion string) ([]domain.CommentAnalysis, error) {
	var analyses []domain.CommentAnalysis
	if err := r.db.WithContext(ctx).
		Joins("JOIN comments ON comments.id = comment_analyses.comment_id").
		Where("comments.post_id = ? AND comment_analyses.model = ? AND comment_analyses.prompt_version = ?",
			postID, model, promptVersion).
		Find(&analyses).Error; err != nil {
		return nil, err
	}
	return analyses, nil
}
