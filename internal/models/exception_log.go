package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Exception priorities.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// ExceptionLog records one unresolved discrepancy surfaced by a run.
type ExceptionLog struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID              uuid.UUID `gorm:"type:uuid;index"`
	ExceptionIDDisplay string    `gorm:"uniqueIndex"`
	ExceptionType      string    `gorm:"index"`
	Priority           string    `gorm:"index"`
	Status             string    `gorm:"index;default:Open"`
	Details            datatypes.JSON
	CreatedAt          time.Time
}

// NewExceptionDisplayID generates a globally unique operator-facing id.
func NewExceptionDisplayID() string {
	return "EXC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// DefaultPriority derives a priority from the exception type when none was
// supplied: mismatch/duplicate style exceptions rank High, missing
// transactions Medium, anything else Low.
func DefaultPriority(exceptionType string) string {
	t := strings.ToLower(exceptionType)
	switch {
	case strings.Contains(t, "mismatch") || strings.Contains(t, "duplicate"):
		return PriorityHigh
	case strings.Contains(t, "missing"):
		return PriorityMedium
	default:
		return PriorityLow
	}
}
