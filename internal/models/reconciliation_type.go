package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationType bundles the job-scoped configuration for one kind of
// reconciliation: the free-text rule knowledge base, the prompt template the
// adjudicator renders, and the candidate selection strategy identifier.
type ReconciliationType struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name                 string    `gorm:"uniqueIndex"`
	Description          string
	KnowledgeBaseContent string `gorm:"type:text"`
	AIPromptTemplate     string `gorm:"type:text"`
	CandidateStrategy    string `gorm:"default:default_date_amount"`
	IsActive             bool   `gorm:"default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
