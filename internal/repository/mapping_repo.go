package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
)

type MappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) Create(ctx context.Context, m *models.DataSourceMapping) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSourceMapping, error) {
	var m models.DataSourceMapping
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns mappings, optionally filtered by kind and by reconciliation
// type (including mappings not bound to any type).
func (r *MappingRepository) List(ctx context.Context, kind models.MappingKind, reconTypeID *uuid.UUID) ([]models.DataSourceMapping, error) {
	query := r.db.WithContext(ctx).Model(&models.DataSourceMapping{})
	if kind != "" {
		query = query.Where("source_type = ?", kind)
	}
	if reconTypeID != nil {
		query = query.Where("reconciliation_type_id = ? OR reconciliation_type_id IS NULL", *reconTypeID)
	}

	var mappings []models.DataSourceMapping
	err := query.Order("mapping_name ASC").Find(&mappings).Error
	return mappings, err
}

func (r *MappingRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DataSourceMapping{}).
		Where("mapping_name = ?", name).
		Count(&count).Error
	return count > 0, err
}
