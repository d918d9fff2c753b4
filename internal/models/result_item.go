package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Terminal classifications for a result item.
const (
	ResultStatusMatched      = "Matched"
	ResultStatusPartialMatch = "Partial Match"
	ResultStatusException    = "Exception"
)

// Suggested operator actions per status.
const (
	ActionView    = "View"
	ActionReview  = "Review"
	ActionResolve = "Resolve"
)

// ResultItem is one row of a reconciliation run. Exactly one is written per
// source record and per never-consumed target record.
type ResultItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID       uuid.UUID `gorm:"type:uuid;index"`
	DisplayID   string    `gorm:"index"`
	Date        time.Time `gorm:"index"`
	Description string
	Amount      decimal.Decimal `gorm:"type:numeric(15,2)"`
	Status      string          `gorm:"index"`
	Action      string
	Details     datatypes.JSON
	CreatedAt   time.Time
}

// Projection is the shape returned by the results listing endpoint.
func (r *ResultItem) Projection() map[string]any {
	var excID string
	if d, err := UnmarshalResultDetails(r.Details); err == nil {
		excID = d.ExceptionIDDisplay
	}
	return map[string]any{
		"id":                   r.DisplayID,
		"date":                 r.Date.Format("2006-01-02"),
		"description":          r.Description,
		"amount":               r.Amount.StringFixed(2),
		"status":               r.Status,
		"action":               r.Action,
		"exception_id_display": excID,
	}
}
