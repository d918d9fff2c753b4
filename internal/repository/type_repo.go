package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
)

type ReconciliationTypeRepository struct {
	db *gorm.DB
}

func NewReconciliationTypeRepository(db *gorm.DB) *ReconciliationTypeRepository {
	return &ReconciliationTypeRepository{db: db}
}

func (r *ReconciliationTypeRepository) Create(ctx context.Context, t *models.ReconciliationType) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *ReconciliationTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationType, error) {
	var t models.ReconciliationType
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ReconciliationTypeRepository) ListActive(ctx context.Context) ([]models.ReconciliationType, error) {
	var types []models.ReconciliationType
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&types).Error
	return types, err
}

func (r *ReconciliationTypeRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReconciliationType{}).
		Where("name = ?", name).
		Count(&count).Error
	return count > 0, err
}
