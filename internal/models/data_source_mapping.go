package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MappingKind distinguishes mappings for the source feed from mappings for
// the target feed.
type MappingKind string

const (
	MappingKindSource MappingKind = "source"
	MappingKindTarget MappingKind = "target"
)

// DataSourceMapping describes how the columns of one tabular feed map onto
// the internal semantic fields. ColumnMappings is a JSON object of
// file header -> internal field name.
type DataSourceMapping struct {
	ID                   uuid.UUID   `gorm:"type:uuid;primaryKey"`
	MappingName          string      `gorm:"uniqueIndex"`
	SourceType           MappingKind `gorm:"index"`
	ColumnMappings       datatypes.JSON
	DateFormat           string
	ReconciliationTypeID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
