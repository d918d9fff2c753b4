package reconciliation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/services/ai"
	"ai-reconciliation-backend/internal/services/matching"
	"ai-reconciliation-backend/internal/services/normalizer"
	"ai-reconciliation-backend/internal/services/reconciliation"
)

const runnerTemplate = "Rules: {context}\nPair: {internal_id_source} vs {internal_id_target}\n{format_instructions}"

// memStore is an in-memory Store recording status transitions and the last
// committed output.
type memStore struct {
	jobs     map[uuid.UUID]*models.ReconciliationJob
	types    map[uuid.UUID]*models.ReconciliationType
	mappings map[uuid.UUID]*models.DataSourceMapping

	statusLog []models.JobStatus
	committed *reconciliation.RunOutput
	failedSum *models.ResultsSummary

	commitErr error

	matched, partial, exceptions int64
	recountErr                   error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       map[uuid.UUID]*models.ReconciliationJob{},
		types:      map[uuid.UUID]*models.ReconciliationType{},
		mappings:   map[uuid.UUID]*models.DataSourceMapping{},
		recountErr: errors.New("no committed rows"),
	}
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.ReconciliationJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, reconciliation.ErrJobNotFound
	}
	return j, nil
}

func (s *memStore) GetReconciliationType(_ context.Context, id uuid.UUID) (*models.ReconciliationType, error) {
	t, ok := s.types[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return t, nil
}

func (s *memStore) GetMapping(_ context.Context, id uuid.UUID) (*models.DataSourceMapping, error) {
	m, ok := s.mappings[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return m, nil
}

func (s *memStore) SetJobStatus(_ context.Context, id uuid.UUID, status models.JobStatus) error {
	s.jobs[id].Status = status
	s.statusLog = append(s.statusLog, status)
	return nil
}

func (s *memStore) CommitRun(_ context.Context, jobID uuid.UUID, out *reconciliation.RunOutput) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = out
	s.jobs[jobID].Status = models.JobStatusCompleted
	s.statusLog = append(s.statusLog, models.JobStatusCompleted)
	return nil
}

func (s *memStore) FailJob(_ context.Context, jobID uuid.UUID, summary models.ResultsSummary) error {
	s.failedSum = &summary
	s.jobs[jobID].Status = models.JobStatusFailed
	s.statusLog = append(s.statusLog, models.JobStatusFailed)
	return nil
}

func (s *memStore) RecountCommitted(_ context.Context, _ uuid.UUID) (int64, int64, int64, error) {
	if s.recountErr != nil {
		return 0, 0, 0, s.recountErr
	}
	return s.matched, s.partial, s.exceptions, nil
}

// matchAllLLM answers every prompt with a Matched verdict.
type matchAllLLM struct{}

func (matchAllLLM) Complete(_ context.Context, _ string) (string, error) {
	return `{"status": "Matched", "exception_type": null, "reason": "equal"}`, nil
}

type staticRetriever struct{}

func (staticRetriever) Query(_ context.Context, _ string, _ int) ([]string, error) {
	return []string{"equal amounts within the window match"}, nil
}

func passthroughIndex(_ context.Context, _ string) (ai.Retriever, error) {
	return staticRetriever{}, nil
}

func writeFeed(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// seedJob creates a fully wired PENDING job with two small CSV feeds.
func seedJob(t *testing.T, store *memStore) uuid.UUID {
	t.Helper()
	dir := t.TempDir()
	srcPath := writeFeed(t, dir, "source.csv",
		"ID,Date,Amount,Desc\nS-1,2024-06-01,100.00,wire in\n")
	tgtPath := writeFeed(t, dir, "target.csv",
		"ID,Date,Amount,Desc\nT-1,2024-06-02,100.00,settlement\n")

	typeID := uuid.New()
	store.types[typeID] = &models.ReconciliationType{
		ID:                   typeID,
		Name:                 "Bank vs ERP",
		KnowledgeBaseContent: "equal amounts within 7 days match",
		AIPromptTemplate:     runnerTemplate,
		CandidateStrategy:    matching.StrategyDateAmount,
	}

	columns := models.MustJSON(map[string]string{
		"ID":     normalizer.FieldID,
		"Date":   normalizer.FieldDate,
		"Amount": normalizer.FieldAmount,
		"Desc":   normalizer.FieldDescription,
	})
	srcMapID, tgtMapID := uuid.New(), uuid.New()
	store.mappings[srcMapID] = &models.DataSourceMapping{ID: srcMapID, MappingName: "bank-csv", ColumnMappings: columns}
	store.mappings[tgtMapID] = &models.DataSourceMapping{ID: tgtMapID, MappingName: "erp-csv", ColumnMappings: columns}

	jobID := uuid.New()
	store.jobs[jobID] = &models.ReconciliationJob{
		ID:                   jobID,
		ReconciliationTypeID: typeID,
		SourceFile:           srcPath,
		TargetFile:           tgtPath,
		SourceMappingID:      srcMapID,
		TargetMappingID:      tgtMapID,
		Status:               models.JobStatusPending,
	}
	return jobID
}

func newTestRunner(store *memStore) *reconciliation.Runner {
	logger := zap.NewNop()
	return reconciliation.NewRunner(
		store,
		normalizer.New(logger),
		matching.NewSelector(logger),
		matchAllLLM{},
		passthroughIndex,
		logger,
	)
}

func TestProcess_HappyPath(t *testing.T) {
	store := newMemStore()
	jobID := seedJob(t, store)

	err := newTestRunner(store).Process(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, []models.JobStatus{models.JobStatusProcessing, models.JobStatusCompleted}, store.statusLog)
	require.NotNil(t, store.committed)
	assert.Equal(t, 1, store.committed.Summary.MatchedCount)
	assert.Equal(t, 1, store.committed.Summary.ProcessedSource)
	assert.Equal(t, 1, store.committed.Summary.ProcessedTarget)
	require.Len(t, store.committed.Results, 1)
	assert.Equal(t, "SRC-S-1", store.committed.Results[0].DisplayID)
}

func TestProcess_MissingJobFailsFast(t *testing.T) {
	store := newMemStore()

	err := newTestRunner(store).Process(context.Background(), uuid.New())
	assert.ErrorIs(t, err, reconciliation.ErrJobNotFound)
	assert.Empty(t, store.statusLog)
	assert.Nil(t, store.failedSum)
}

func TestProcess_RejectsNonDispatchableStates(t *testing.T) {
	for _, status := range []models.JobStatus{models.JobStatusProcessing, models.JobStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemStore()
			jobID := seedJob(t, store)
			store.jobs[jobID].Status = status

			err := newTestRunner(store).Process(context.Background(), jobID)
			assert.ErrorIs(t, err, reconciliation.ErrJobNotDispatchable)
			assert.Empty(t, store.statusLog)
		})
	}
}

func TestProcess_ConfigFailuresMarkFailed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(store *memStore, jobID uuid.UUID)
	}{
		{
			name: "empty knowledge base",
			mutate: func(store *memStore, jobID uuid.UUID) {
				store.types[store.jobs[jobID].ReconciliationTypeID].KnowledgeBaseContent = ""
			},
		},
		{
			name: "template missing markers",
			mutate: func(store *memStore, jobID uuid.UUID) {
				store.types[store.jobs[jobID].ReconciliationTypeID].AIPromptTemplate = "just text"
			},
		},
		{
			name: "mapping not found",
			mutate: func(store *memStore, jobID uuid.UUID) {
				delete(store.mappings, store.jobs[jobID].SourceMappingID)
			},
		},
		{
			name: "mapping without columns",
			mutate: func(store *memStore, jobID uuid.UUID) {
				store.mappings[store.jobs[jobID].SourceMappingID].ColumnMappings = nil
			},
		},
		{
			name: "reconciliation type not found",
			mutate: func(store *memStore, jobID uuid.UUID) {
				delete(store.types, store.jobs[jobID].ReconciliationTypeID)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			jobID := seedJob(t, store)
			tt.mutate(store, jobID)

			err := newTestRunner(store).Process(context.Background(), jobID)
			var cfgErr *reconciliation.ConfigError
			require.ErrorAs(t, err, &cfgErr)

			assert.Equal(t, models.JobStatusFailed, store.jobs[jobID].Status)
			require.NotNil(t, store.failedSum)
			assert.Contains(t, store.failedSum.Error, "Processing error:")
			// Config failures happen before the PROCESSING transition.
			assert.Equal(t, []models.JobStatus{models.JobStatusFailed}, store.statusLog)
		})
	}
}

func TestProcess_IndexBuildFailureMarksFailed(t *testing.T) {
	store := newMemStore()
	jobID := seedJob(t, store)

	runner := reconciliation.NewRunner(
		store,
		normalizer.New(zap.NewNop()),
		matching.NewSelector(zap.NewNop()),
		matchAllLLM{},
		func(_ context.Context, _ string) (ai.Retriever, error) {
			return nil, errors.New("embedding backend unreachable")
		},
		zap.NewNop(),
	)

	err := runner.Process(context.Background(), jobID)
	assert.ErrorContains(t, err, "embedding backend unreachable")
	assert.Equal(t, models.JobStatusFailed, store.jobs[jobID].Status)
}

func TestProcess_ParseFailureMarksFailed(t *testing.T) {
	store := newMemStore()
	jobID := seedJob(t, store)
	store.jobs[jobID].SourceFile = filepath.Join(t.TempDir(), "gone.csv")

	err := newTestRunner(store).Process(context.Background(), jobID)
	var parseErr *normalizer.ParseError
	require.ErrorAs(t, err, &parseErr)

	assert.Equal(t, models.JobStatusFailed, store.jobs[jobID].Status)
	assert.Equal(t, []models.JobStatus{models.JobStatusProcessing, models.JobStatusFailed}, store.statusLog)
}

func TestProcess_CommitFailureKeepsPriorCounts(t *testing.T) {
	store := newMemStore()
	jobID := seedJob(t, store)
	store.commitErr = errors.New("connection reset")
	store.recountErr = nil
	store.matched, store.partial, store.exceptions = 3, 1, 2

	err := newTestRunner(store).Process(context.Background(), jobID)
	assert.ErrorContains(t, err, "connection reset")

	require.NotNil(t, store.failedSum)
	assert.Equal(t, 3, store.failedSum.MatchedCount)
	assert.Equal(t, 1, store.failedSum.PartialMatchCount)
	assert.Equal(t, 2, store.failedSum.ExceptionsCount)
	assert.Contains(t, store.failedSum.Error, "connection reset")
}

func TestProcess_RerunReproducesResults(t *testing.T) {
	store := newMemStore()
	jobID := seedJob(t, store)
	runner := newTestRunner(store)

	require.NoError(t, runner.Process(context.Background(), jobID))
	first := store.committed
	require.NotNil(t, first)

	// Re-dispatch path: the handler resets the job to PENDING before enqueueing.
	store.jobs[jobID].Status = models.JobStatusPending
	require.NoError(t, runner.Process(context.Background(), jobID))
	second := store.committed
	require.NotNil(t, second)

	assert.Equal(t, first.Summary, second.Summary)
	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].DisplayID, second.Results[i].DisplayID)
		assert.Equal(t, first.Results[i].Status, second.Results[i].Status)
		assert.Equal(t, first.Results[i].Action, second.Results[i].Action)
		assert.True(t, first.Results[i].Amount.Equal(second.Results[i].Amount))
	}
	assert.Equal(t, len(first.Exceptions), len(second.Exceptions))
	assert.Equal(t, models.JobStatusCompleted, store.jobs[jobID].Status)
}

func TestProcess_RerunAfterFailure(t *testing.T) {
	store := newMemStore()
	jobID := seedJob(t, store)
	store.jobs[jobID].Status = models.JobStatusFailed

	err := newTestRunner(store).Process(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, store.jobs[jobID].Status)
}
