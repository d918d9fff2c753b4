package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobStatus is the lifecycle state of a reconciliation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type ReconciliationJob struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReconciliationTypeID uuid.UUID `gorm:"type:uuid;index"`
	SourceFile           string
	TargetFile           string
	SourceMappingID      uuid.UUID `gorm:"type:uuid"`
	TargetMappingID      uuid.UUID `gorm:"type:uuid"`
	Status               JobStatus `gorm:"index"`
	CreatedAt            time.Time
	CompletedAt          *time.Time
	ResultsSummary       datatypes.JSON
}

// ResultsSummary holds the per-run counters stored on a finished job.
// AIErrors counts per-candidate adjudication failures so silent model
// degradation stays observable even when a run completes.
type ResultsSummary struct {
	ProcessedSource   int    `json:"processed_source"`
	ProcessedTarget   int    `json:"processed_target"`
	MatchedCount      int    `json:"matched_count"`
	PartialMatchCount int    `json:"partial_match_count"`
	ExceptionsCount   int    `json:"exceptions_count"`
	AIErrors          int    `json:"ai_errors"`
	Error             string `json:"error,omitempty"`
}
