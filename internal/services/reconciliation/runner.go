package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/services/ai"
	"ai-reconciliation-backend/internal/services/matching"
	"ai-reconciliation-backend/internal/services/normalizer"
)

// Store is the persistence contract the runner drives. CommitRun must
// atomically delete the job's prior rows, insert the new ones, and mark the
// job COMPLETED, so a crash mid-run never leaves a job with partial results.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.ReconciliationJob, error)
	GetReconciliationType(ctx context.Context, id uuid.UUID) (*models.ReconciliationType, error)
	GetMapping(ctx context.Context, id uuid.UUID) (*models.DataSourceMapping, error)
	SetJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	CommitRun(ctx context.Context, jobID uuid.UUID, out *RunOutput) error
	FailJob(ctx context.Context, jobID uuid.UUID, summary models.ResultsSummary) error
	RecountCommitted(ctx context.Context, jobID uuid.UUID) (matched, partial, exceptions int64, err error)
}

// IndexBuilder constructs the per-job retrieval index from the rule corpus.
type IndexBuilder func(ctx context.Context, corpus string) (ai.Retriever, error)

// Runner executes one job end to end: PENDING -> PROCESSING ->
// {COMPLETED, FAILED}. One worker invokes Process with exactly one argument,
// the job id; all steps within a job are sequential.
type Runner struct {
	store      Store
	normalizer *normalizer.Normalizer
	selector   *matching.Selector
	llm        ai.CompletionClient
	buildIndex IndexBuilder
	logger     *zap.Logger
}

func NewRunner(store Store, norm *normalizer.Normalizer, selector *matching.Selector, llm ai.CompletionClient, buildIndex IndexBuilder, logger *zap.Logger) *Runner {
	return &Runner{
		store:      store,
		normalizer: norm,
		selector:   selector,
		llm:        llm,
		buildIndex: buildIndex,
		logger:     logger,
	}
}

// Process runs the state machine for one job id. A missing job fails fast
// with no status writes; every other failure marks the job FAILED with an
// error summary.
func (r *Runner) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		r.logger.Error("job lookup failed", zap.String("job_id", jobID.String()), zap.Error(err))
		return err
	}
	if job.Status == models.JobStatusProcessing || job.Status == models.JobStatusCompleted {
		return ErrJobNotDispatchable
	}

	recType, err := r.store.GetReconciliationType(ctx, job.ReconciliationTypeID)
	if err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, &ConfigError{Reason: fmt.Sprintf("reconciliation type: %v", err)})
	}
	if recType.KnowledgeBaseContent == "" {
		return r.fail(ctx, jobID, models.ResultsSummary{}, &ConfigError{Reason: "knowledge base content is empty"})
	}
	if err := ai.ValidateTemplate(recType.AIPromptTemplate); err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, &ConfigError{Reason: err.Error()})
	}

	srcMapping, err := r.loadMapping(ctx, job.SourceMappingID)
	if err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, err)
	}
	tgtMapping, err := r.loadMapping(ctx, job.TargetMappingID)
	if err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, err)
	}

	retriever, err := r.buildIndex(ctx, recType.KnowledgeBaseContent)
	if err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, err)
	}

	if err := r.store.SetJobStatus(ctx, jobID, models.JobStatusProcessing); err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, err)
	}
	r.logger.Info("job processing",
		zap.String("job_id", jobID.String()),
		zap.String("strategy", recType.CandidateStrategy))

	sources, err := r.normalizer.Parse(job.SourceFile, srcMapping, normalizer.SideSource)
	if err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{}, err)
	}
	targets, err := r.normalizer.Parse(job.TargetFile, tgtMapping, normalizer.SideTarget)
	if err != nil {
		return r.fail(ctx, jobID, models.ResultsSummary{
			ProcessedSource: len(sources.Records),
		}, err)
	}

	adjudicator := ai.NewAdjudicator(retriever, r.llm, recType.AIPromptTemplate, r.logger)
	engine := NewEngine(r.selector, adjudicator, recType.CandidateStrategy, r.logger)
	out := engine.Run(ctx, jobID, sources.Records, targets.Records)

	if err := r.store.CommitRun(ctx, jobID, out); err != nil {
		return r.fail(ctx, jobID, out.Summary, err)
	}
	r.logger.Info("job completed",
		zap.String("job_id", jobID.String()),
		zap.Int("results", len(out.Results)),
		zap.Int("exceptions", len(out.Exceptions)))
	return nil
}

func (r *Runner) loadMapping(ctx context.Context, id uuid.UUID) (normalizer.Mapping, error) {
	m, err := r.store.GetMapping(ctx, id)
	if err != nil {
		return normalizer.Mapping{}, &ConfigError{Reason: fmt.Sprintf("mapping %s: %v", id, err)}
	}
	columns := map[string]string{}
	if len(m.ColumnMappings) > 0 {
		if err := json.Unmarshal(m.ColumnMappings, &columns); err != nil {
			return normalizer.Mapping{}, &ConfigError{Reason: fmt.Sprintf("mapping %s: malformed column mappings: %v", m.MappingName, err)}
		}
	}
	if len(columns) == 0 {
		return normalizer.Mapping{}, &ConfigError{Reason: fmt.Sprintf("mapping %s has no column mappings", m.MappingName)}
	}
	return normalizer.Mapping{
		ID:         m.MappingName,
		Columns:    columns,
		DateFormat: m.DateFormat,
	}, nil
}

// fail marks the job FAILED, embedding the error message plus best-effort
// counts of rows committed by a prior successful run, if any survive.
func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, summary models.ResultsSummary, cause error) error {
	summary.Error = fmt.Sprintf("Processing error: %v", cause)
	if matched, partial, exceptions, err := r.store.RecountCommitted(ctx, jobID); err == nil {
		summary.MatchedCount = int(matched)
		summary.PartialMatchCount = int(partial)
		summary.ExceptionsCount = int(exceptions)
	}
	if err := r.store.FailJob(ctx, jobID, summary); err != nil {
		r.logger.Error("failed to mark job FAILED",
			zap.String("job_id", jobID.String()), zap.Error(err))
	}
	r.logger.Error("job failed", zap.String("job_id", jobID.String()), zap.Error(cause))
	return cause
}
