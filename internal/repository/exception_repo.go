package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
)

// ExceptionFilter narrows the exception listing. Zero values mean no filter.
type ExceptionFilter struct {
	JobID         *uuid.UUID
	Priority      string
	Status        string
	ExceptionType string
	Limit         int
	Offset        int
}

type ExceptionLogRepository struct {
	db *gorm.DB
}

func NewExceptionLogRepository(db *gorm.DB) *ExceptionLogRepository {
	return &ExceptionLogRepository{db: db}
}

// List returns one page of exception logs, newest first, plus the filtered
// total.
func (r *ExceptionLogRepository) List(ctx context.Context, f ExceptionFilter) ([]models.ExceptionLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ExceptionLog{})
	if f.JobID != nil {
		query = query.Where("job_id = ?", *f.JobID)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ExceptionType != "" {
		query = query.Where("exception_type = ?", f.ExceptionType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.ExceptionLog
	err := query.Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&logs).Error
	return logs, total, err
}

func (r *ExceptionLogRepository) GetByDisplayID(ctx context.Context, displayID string) (*models.ExceptionLog, error) {
	var log models.ExceptionLog
	if err := r.db.WithContext(ctx).First(&log, "exception_id_display = ?", displayID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}
