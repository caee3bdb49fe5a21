package repository

import (
	"context"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"gorm.io/gorm"
)

// PostRepository handles post data operations.
type PostRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PostRepository: repository instance bound to db.
func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a new post record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - post: post record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// Save persists all fields of an existing post record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - post: post record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *PostRepository) Save(ctx context.Context, post *domain.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// GetByID retrieves a post by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: post ID.
// Returns:
//   - *domain.Post: post record if found.
//   - error: non-nil if lookup fails.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByPlatformID retrieves a post by its identity key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - connectionID: owning connection ID.
//   - platformPostID: platform-assigned post ID.
// Returns:
//   - *domain.Post: post record if found.
//   - error: gorm.ErrRecordNotFound when absent, other errors on failure.
func (r *PostRepository) GetByPlatformID(ctx context.Context, connectionID, platformPostID string) (*domain.Post, error) {
	var post domain.Post
	if err := r.db.WithContext(ctx).
		First(&post, "connection_id = ? AND platform_post_id = ?", connectionID, platformPostID).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// ListByConnection retrieves all posts under a connection, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - connectionID: owning connection ID.
// Returns:
//   - []domain.Post: matching post records.
//   - error: non-nil if the query fails.
func (r *PostRepository) ListByConnection(ctx context.Context, connectionID string) ([]domain.Post, error) {
	var posts []domain.Post
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("published_at DESC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// CountByConnection counts posts under a connection.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - connectionID: owning connection ID.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *PostRepository) CountByConnection(ctx context.Context, connectionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Post{}).
		Where("connection_id = ?", connectionID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
