package repository

import (
	"context"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"gorm.io/gorm"
)

// RunRepository handles pipeline run data operations.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RunRepository: repository instance bound to db.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new pipeline run record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *RunRepository) Create(ctx context.Context, run *domain.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID retrieves a pipeline run by its ID. Used by polling readers; the
// row may be mid-update and slightly stale, which callers must tolerate.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: run ID.
// Returns:
//   - *domain.PipelineRun: run record if found.
//   - error: non-nil if lookup fails.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// Update applies a partial single-row update to a run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: run ID.
//   - fields: column/value pairs to set.
// Returns:
//   - error: non-nil if the update fails.
func (r *RunRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&domain.PipelineRun{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ListByConnection retrieves runs for a connection, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - connectionID: connection ID to filter by; empty means all.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.PipelineRun: matching run records.
//   - error: non-nil if the query fails.
func (r *RunRepository) ListByConnection(ctx context.Context, connectionID string, limit int) ([]domain.PipelineRun, error) {
	var runs []domain.PipelineRun
	query := r.db.WithContext(ctx)
	if connectionID != "" {
		query = query.Where("connection_id = ?", connectionID)
	}
	if err := query.
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
