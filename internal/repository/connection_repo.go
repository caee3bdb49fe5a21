package repository

import (
	"context"
	"time"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"gorm.io/gorm"
)

// ConnectionRepository handles social connection data operations.
type ConnectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ConnectionRepository: repository instance bound to db.
func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts a new connection record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - conn: connection record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ConnectionRepository) Create(ctx context.Context, conn *domain.Connection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

// GetByID retrieves a connection by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: connection ID.
// Returns:
//   - *domain.Connection: connection record if found.
//   - error: non-nil if lookup fails.
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*domain.Connection, error) {
	var conn domain.Connection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListByUser retrieves every connection owned by a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user ID.
// Returns:
//   - []domain.Connection: matching connection records.
//   - error: non-nil if the query fails.
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	var conns []domain.Connection
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("connected_at DESC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// TouchLastSync updates the sync cursor after a successful ingestion.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: connection ID.
//   - at: sync timestamp.
// Returns:
//   - error: non-nil if the update fails.
func (r *ConnectionRepository) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Connection{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}
