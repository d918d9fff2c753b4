package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.ReconciliationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationJob, error) {
	var job models.ReconciliationJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	return r.db.WithContext(ctx).Model(&models.ReconciliationJob{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ListResults returns one page of a job's result items, oldest first,
// optionally filtered by status, plus the unfiltered-page total.
func (r *JobRepository) ListResults(ctx context.Context, jobID uuid.UUID, status string, limit, offset int) ([]models.ResultItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ResultItem{}).Where("job_id = ?", jobID)
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.ResultItem
	err := query.Order("created_at ASC, display_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	return items, total, err
}
