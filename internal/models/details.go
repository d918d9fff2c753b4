package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Write-side detail payloads are discriminated per status so the engine can
// only populate the fields that status actually carries. The read side uses
// ResultDetails, the superset shape stored in the JSON column.

type MatchedDetails struct {
	SourceInternalID string `json:"source_internal_id"`
	TargetInternalID string `json:"target_internal_id"`
	AIReason         string `json:"ai_reason"`
	SourceDesc       string `json:"source_desc"`
	TargetDesc       string `json:"target_desc"`
}

type PartialMatchDetails struct {
	SourceInternalID string `json:"source_internal_id"`
	TargetInternalID string `json:"target_internal_id"`
	AIReason         string `json:"ai_reason"`
	ExceptionType    string `json:"exception_type"`
	SourceDesc       string `json:"source_desc"`
	TargetDesc       string `json:"target_desc"`
}

type ExceptionDetails struct {
	SourceInternalID   string `json:"source_internal_id,omitempty"`
	TargetInternalID   string `json:"target_internal_id,omitempty"`
	AIReason           string `json:"ai_reason"`
	ExceptionType      string `json:"exception_type"`
	SourceDesc         string `json:"source_desc,omitempty"`
	TargetDesc         string `json:"target_desc,omitempty"`
	ExceptionIDDisplay string `json:"exception_id_display"`
}

// ResultDetails is the read-side union of the three payloads above.
type ResultDetails struct {
	SourceInternalID   string `json:"source_internal_id"`
	TargetInternalID   string `json:"target_internal_id"`
	AIReason           string `json:"ai_reason"`
	ExceptionType      string `json:"exception_type"`
	SourceDesc         string `json:"source_desc"`
	TargetDesc         string `json:"target_desc"`
	ExceptionIDDisplay string `json:"exception_id_display"`
}

// RecordSnapshot captures one record inside an exception discrepancy payload.
type RecordSnapshot struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Side        string `json:"source,omitempty"`
}

// Discrepancy pairs the two views of a disputed economic event. Bank holds
// the source-feed record, ERP the target-feed record; either may be empty
// when the counterpart is missing.
type Discrepancy struct {
	Bank RecordSnapshot `json:"bank"`
	ERP  RecordSnapshot `json:"erp"`
}

// ExceptionLogDetails is the structured payload stored on an ExceptionLog.
type ExceptionLogDetails struct {
	SourceInternalID string         `json:"source_internal_id,omitempty"`
	TargetInternalID string         `json:"target_internal_id,omitempty"`
	AIReason         string         `json:"ai_reason"`
	ExceptionType    string         `json:"exception_type"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Amount           string         `json:"amount"`
	Date             string         `json:"date"`
	Transaction      RecordSnapshot `json:"transaction"`
	Discrepancy      Discrepancy    `json:"discrepancy"`
}

func MustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		// All payload types marshal cleanly; a failure here is a programming error.
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}

func UnmarshalResultDetails(raw datatypes.JSON) (*ResultDetails, error) {
	var d ResultDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func UnmarshalExceptionLogDetails(raw datatypes.JSON) (*ExceptionLogDetails, error) {
	var d ExceptionLogDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
