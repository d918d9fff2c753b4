// Package reconciliation drives the per-source adjudication loop, resolves
// final outcomes with target-consumption bookkeeping, and owns the job
// lifecycle state machine.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/services/ai"
	"ai-reconciliation-backend/internal/services/matching"
	"ai-reconciliation-backend/internal/services/normalizer"
)

// Exception types raised by the resolver itself.
const (
	ExceptionMissingTarget = "Missing Transaction (Target)"
	ExceptionMissingSource = "Missing Transaction (Source)"
	exceptionPartialIssue  = "Partial Issue"
)

const (
	noMatchReason         = "No suitable match found."
	unmatchedTargetReason = "This target transaction did not match any available source transaction."
	maxDescriptionLen     = 200
)

// Adjudicator classifies one candidate pair.
type Adjudicator interface {
	Adjudicate(ctx context.Context, src, tgt normalizer.Record) ai.Verdict
}

// RunOutput is everything one run produced; the store persists it atomically.
type RunOutput struct {
	Results    []models.ResultItem
	Exceptions []models.ExceptionLog
	Summary    models.ResultsSummary
}

// Engine resolves outcomes for one job run. The consumption mask it builds
// is exclusively owned by the run and discarded at run end.
type Engine struct {
	selector    *matching.Selector
	adjudicator Adjudicator
	strategy    string
	logger      *zap.Logger
}

func NewEngine(selector *matching.Selector, adjudicator Adjudicator, strategy string, logger *zap.Logger) *Engine {
	return &Engine{selector: selector, adjudicator: adjudicator, strategy: strategy, logger: logger}
}

// Run processes every source record in order, then emits an exception per
// target never consumed. Per-candidate adjudication failures are absorbed
// into the summary and never abort the run.
func (e *Engine) Run(ctx context.Context, jobID uuid.UUID, sources, targets []normalizer.Record) *RunOutput {
	out := &RunOutput{}
	out.Summary.ProcessedSource = len(sources)
	out.Summary.ProcessedTarget = len(targets)

	used := make([]bool, len(targets))
	for _, src := range sources {
		e.resolveSource(ctx, out, jobID, src, targets, used)
	}

	for j, tgt := range targets {
		if used[j] {
			continue
		}
		e.emitUnmatchedTarget(out, jobID, tgt)
	}

	e.logger.Info("run resolved",
		zap.String("job_id", jobID.String()),
		zap.Int("matched", out.Summary.MatchedCount),
		zap.Int("partial", out.Summary.PartialMatchCount),
		zap.Int("exceptions", out.Summary.ExceptionsCount),
		zap.Int("ai_errors", out.Summary.AIErrors))
	return out
}

// fallbackException remembers the first candidate-level exception so it can
// explain the source outcome when nothing matches.
type fallbackException struct {
	reason        string
	exceptionType string
	targetIdx     int
}

func (e *Engine) resolveSource(ctx context.Context, out *RunOutput, jobID uuid.UUID, src normalizer.Record, targets []normalizer.Record, used []bool) {
	candidates := e.selector.Candidates(e.strategy, src, targets, used)

	finalStatus := models.ResultStatusException
	reason := noMatchReason
	exceptionType := ExceptionMissingTarget
	bestIdx := -1
	var fallback *fallbackException
	partialFound := false

loop:
	for _, j := range candidates {
		verdict := e.adjudicator.Adjudicate(ctx, src, targets[j])
		switch verdict.Status {
		case ai.VerdictMatched:
			// First Matched wins immediately.
			finalStatus = models.ResultStatusMatched
			bestIdx = j
			reason = verdict.Reason
			break loop
		case ai.VerdictPartialMatch:
			// First Partial is retained; only a later Matched upgrades it.
			if !partialFound {
				partialFound = true
				finalStatus = models.ResultStatusPartialMatch
				bestIdx = j
				reason = verdict.Reason
				exceptionType = verdict.ExceptionType
				if exceptionType == "" {
					exceptionType = exceptionPartialIssue
				}
			}
		case ai.VerdictException:
			if fallback == nil {
				fallback = &fallbackException{
					reason:        verdict.Reason,
					exceptionType: verdict.ExceptionType,
					targetIdx:     j,
				}
			}
		case ai.VerdictError:
			out.Summary.AIErrors++
			if fallback == nil {
				fallback = &fallbackException{
					reason:        verdict.Reason,
					exceptionType: ai.ExceptionAIProcessingError,
					targetIdx:     j,
				}
			}
		}
	}

	displayID := "SRC-" + src.ExternalID
	switch finalStatus {
	case models.ResultStatusMatched:
		out.Summary.MatchedCount++
		used[bestIdx] = true
		tgt := targets[bestIdx]
		details := models.MatchedDetails{
			SourceInternalID: src.ExternalID,
			TargetInternalID: tgt.ExternalID,
			AIReason:         reason,
			SourceDesc:       src.Description,
			TargetDesc:       tgt.Description,
		}
		out.Results = append(out.Results, newResultItem(jobID, displayID, src, finalStatus, models.ActionView, details))

	case models.ResultStatusPartialMatch:
		out.Summary.PartialMatchCount++
		used[bestIdx] = true
		tgt := targets[bestIdx]
		details := models.PartialMatchDetails{
			SourceInternalID: src.ExternalID,
			TargetInternalID: tgt.ExternalID,
			AIReason:         reason,
			ExceptionType:    exceptionType,
			SourceDesc:       src.Description,
			TargetDesc:       tgt.Description,
		}
		out.Results = append(out.Results, newResultItem(jobID, displayID, src, finalStatus, models.ActionReview, details))

	default:
		// Exception: candidates are never consumed here.
		out.Summary.ExceptionsCount++
		var tgt *normalizer.Record
		if fallback != nil {
			reason = fallback.reason
			if fallback.exceptionType != "" {
				exceptionType = fallback.exceptionType
			}
			tgt = &targets[fallback.targetIdx]
		}
		excID := e.appendSourceException(out, jobID, src, tgt, exceptionType, reason)
		details := models.ExceptionDetails{
			SourceInternalID:   src.ExternalID,
			AIReason:           reason,
			ExceptionType:      exceptionType,
			SourceDesc:         src.Description,
			ExceptionIDDisplay: excID,
		}
		if tgt != nil {
			details.TargetInternalID = tgt.ExternalID
			details.TargetDesc = tgt.Description
		}
		out.Results = append(out.Results, newResultItem(jobID, displayID, src, models.ResultStatusException, models.ActionResolve, details))
	}
}

func (e *Engine) emitUnmatchedTarget(out *RunOutput, jobID uuid.UUID, tgt normalizer.Record) {
	out.Summary.ExceptionsCount++
	excID := appendException(out, jobID, ExceptionMissingSource, models.PriorityMedium, models.ExceptionLogDetails{
		TargetInternalID: tgt.ExternalID,
		AIReason:         unmatchedTargetReason,
		ExceptionType:    ExceptionMissingSource,
		Title:            fmt.Sprintf("Missing Source for Tgt %s", tgt.ExternalID),
		Description:      tgt.Description,
		Amount:           tgt.Amount.StringFixed(2),
		Date:             tgt.Date.Format("2006-01-02"),
		Transaction:      snapshot(tgt),
		Discrepancy:      models.Discrepancy{ERP: snapshot(tgt)},
	})

	details := models.ExceptionDetails{
		TargetInternalID:   tgt.ExternalID,
		AIReason:           unmatchedTargetReason,
		ExceptionType:      ExceptionMissingSource,
		TargetDesc:         tgt.Description,
		ExceptionIDDisplay: excID,
	}
	out.Results = append(out.Results, newResultItem(jobID, "TGT-"+tgt.ExternalID, tgt, models.ResultStatusException, models.ActionResolve, details))
}

func (e *Engine) appendSourceException(out *RunOutput, jobID uuid.UUID, src normalizer.Record, tgt *normalizer.Record, exceptionType, reason string) string {
	payload := models.ExceptionLogDetails{
		SourceInternalID: src.ExternalID,
		AIReason:         reason,
		ExceptionType:    exceptionType,
		Title:            fmt.Sprintf("%s for Src %s", exceptionType, src.ExternalID),
		Description:      src.Description,
		Amount:           src.Amount.StringFixed(2),
		Date:             src.Date.Format("2006-01-02"),
		Transaction:      snapshot(src),
		Discrepancy:      models.Discrepancy{Bank: snapshot(src)},
	}
	if tgt != nil {
		payload.TargetInternalID = tgt.ExternalID
		payload.Discrepancy.ERP = snapshot(*tgt)
	}
	return appendException(out, jobID, exceptionType, "", payload)
}

// appendException adds an ExceptionLog entry and returns its display id.
// An empty priority is derived from the exception type.
func appendException(out *RunOutput, jobID uuid.UUID, exceptionType, priority string, payload models.ExceptionLogDetails) string {
	if exceptionType == "" {
		exceptionType = "Unknown"
	}
	if priority == "" {
		priority = models.DefaultPriority(exceptionType)
	}
	displayID := models.NewExceptionDisplayID()
	out.Exceptions = append(out.Exceptions, models.ExceptionLog{
		ID:                 uuid.New(),
		JobID:              jobID,
		ExceptionIDDisplay: displayID,
		ExceptionType:      exceptionType,
		Priority:           priority,
		Status:             "Open",
		Details:            models.MustJSON(payload),
		CreatedAt:          time.Now().UTC(),
	})
	return displayID
}

func newResultItem(jobID uuid.UUID, displayID string, rec normalizer.Record, status, action string, details any) models.ResultItem {
	return models.ResultItem{
		ID:          uuid.New(),
		JobID:       jobID,
		DisplayID:   displayID,
		Date:        rec.Date,
		Description: truncate(rec.Description, maxDescriptionLen),
		Amount:      rec.Amount,
		Status:      status,
		Action:      action,
		Details:     models.MustJSON(details),
		CreatedAt:   time.Now().UTC(),
	}
}

func snapshot(rec normalizer.Record) models.RecordSnapshot {
	return models.RecordSnapshot{
		ID:          rec.ExternalID,
		Date:        rec.Date.Format("2006-01-02"),
		Description: rec.Description,
		Amount:      rec.Amount.StringFixed(2),
		Side:        string(rec.Side),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
