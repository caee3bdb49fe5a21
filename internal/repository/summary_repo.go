package repository

import (
	"context"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryRepository handles post summary data operations.
type SummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new SummaryRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SummaryRepository: repository instance bound to db.
func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert creates or fully replaces the summary row for a post.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - summary: summary record to create or replace.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *SummaryRepository) Upsert(ctx context.Context, summary *domain.PostSummary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		UpdateAll: true,
	}).Create(summary).Error
}

// GetByPost retrieves the summary row for a post.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: owning post ID.
// Returns:
//   - *domain.PostSummary: summary record if found.
//   - error: gorm.ErrRecordNotFound when absent, other errors on failure.
func (r *SummaryRepository) GetByPost(ctx context.Context, postID string) (*domain.PostSummary, error) {
	var summary domain.PostSummary
	if err := r.db.WithContext(ctx).First(&summary, "post_id = ?", postID).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListByConnection retrieves summaries for every post under a connection.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - connectionID: owning connection ID.
// Returns:
//   - []domain.PostSummary: matching summary records.
//   - error: non-nil if the query fails.
func (r *SummaryRepository) ListByConnection(ctx context.Context, connectionID string) ([]domain.PostSummary, error) {
	var summaries []domain.PostSummary
	if err := r.db.WithContext(ctx).
		Joins("JOIN posts ON posts.id = post_summaries.post_id").
		Where("posts.connection_id = ?", connectionID).
		Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}
