package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/services/reconciliation"
)

// RunStore is the persistence backend the job runner drives. It implements
// reconciliation.Store on top of gorm.
type RunStore struct {
	db *gorm.DB
}

func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ReconciliationJob, error) {
	var job models.ReconciliationJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reconciliation.ErrJobNotFound
		}
		return nil, &reconciliation.PersistenceError{Op: "get job", Err: err}
	}
	return &job, nil
}

func (s *RunStore) GetReconciliationType(ctx context.Context, id uuid.UUID) (*models.ReconciliationType, error) {
	var t models.ReconciliationType
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *RunStore) GetMapping(ctx context.Context, id uuid.UUID) (*models.DataSourceMapping, error) {
	var m models.DataSourceMapping
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *RunStore) SetJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	err := s.db.WithContext(ctx).Model(&models.ReconciliationJob{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return &reconciliation.PersistenceError{Op: "set job status", Err: err}
	}
	return nil
}

// CommitRun atomically replaces the job's rows with this run's output and
// marks the job COMPLETED. Prior rows survive until the transaction commits,
// so a crash mid-run leaves the previous successful run intact.
func (s *RunStore) CommitRun(ctx context.Context, jobID uuid.UUID, out *reconciliation.RunOutput) error {
	summary, err := json.Marshal(out.Summary)
	if err != nil {
		return &reconciliation.PersistenceError{Op: "marshal summary", Err: err}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ResultItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ExceptionLog{}).Error; err != nil {
			return err
		}
		if len(out.Results) > 0 {
			if err := tx.CreateInBatches(out.Results, 200).Error; err != nil {
				return err
			}
		}
		if len(out.Exceptions) > 0 {
			if err := tx.CreateInBatches(out.Exceptions, 200).Error; err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		return tx.Model(&models.ReconciliationJob{}).
			Where("id = ?", jobID).
			Updates(map[string]interface{}{
				"status":          models.JobStatusCompleted,
				"completed_at":    now,
				"results_summary": datatypes.JSON(summary),
			}).Error
	})
	if err != nil {
		return &reconciliation.PersistenceError{Op: "commit run", Err: err}
	}
	return nil
}

func (s *RunStore) FailJob(ctx context.Context, jobID uuid.UUID, summary models.ResultsSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return &reconciliation.PersistenceError{Op: "marshal summary", Err: err}
	}
	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(&models.ReconciliationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":          models.JobStatusFailed,
			"completed_at":    now,
			"results_summary": datatypes.JSON(raw),
		}).Error
	if err != nil {
		return &reconciliation.PersistenceError{Op: "fail job", Err: err}
	}
	return nil
}

// RecountCommitted reports counts of rows already committed for the job by a
// prior successful run, for best-effort failure summaries.
func (s *RunStore) RecountCommitted(ctx context.Context, jobID uuid.UUID) (matched, partial, exceptions int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&models.ResultItem{}).
		Where("job_id = ? AND status = ?", jobID, models.ResultStatusMatched).
		Count(&matched).Error; err != nil {
		return 0, 0, 0, err
	}
	if err = db.Model(&models.ResultItem{}).
		Where("job_id = ? AND status = ?", jobID, models.ResultStatusPartialMatch).
		Count(&partial).Error; err != nil {
		return 0, 0, 0, err
	}
	if err = db.Model(&models.ExceptionLog{}).
		Where("job_id = ?", jobID).
		Count(&exceptions).Error; err != nil {
		return 0, 0, 0, err
	}
	return matched, partial, exceptions, nil
}
