package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/repository"
)

// Dispatcher hands a job id to the background worker pool.
type Dispatcher interface {
	Enqueue(jobID uuid.UUID) error
}

type ReconciliationHandler struct {
	jobs       *repository.JobRepository
	types      *repository.ReconciliationTypeRepository
	mappings   *repository.MappingRepository
	dispatcher Dispatcher
	uploadDir  string
	logger     *zap.Logger
}

func NewReconciliationHandler(
	jobs *repository.JobRepository,
	types *repository.ReconciliationTypeRepository,
	mappings *repository.MappingRepository,
	dispatcher Dispatcher,
	uploadDir string,
	logger *zap.Logger,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		jobs:       jobs,
		types:      types,
		mappings:   mappings,
		dispatcher: dispatcher,
		uploadDir:  uploadDir,
		logger:     logger,
	}
}

// Upload accepts the two feed files plus configuration ids, creates a
// PENDING job, and dispatches it.
func (h *ReconciliationHandler) Upload(c *gin.Context) {
	sourceFile, err := c.FormFile("sourceFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source and target files required"})
		return
	}
	targetFile, err := c.FormFile("targetFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source and target files required"})
		return
	}

	typeID, ok := formUUID(c, "reconciliation_type_id")
	if !ok {
		return
	}
	sourceMappingID, ok := formUUID(c, "source_mapping_id")
	if !ok {
		return
	}
	targetMappingID, ok := formUUID(c, "target_mapping_id")
	if !ok {
		return
	}

	if _, err := h.types.GetByID(c.Request.Context(), typeID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reconciliation_type_id"})
		return
	}

	jobID := uuid.New()
	sourcePath := filepath.Join(h.uploadDir, jobID.String()+"_source_"+filepath.Base(sourceFile.Filename))
	targetPath := filepath.Join(h.uploadDir, jobID.String()+"_target_"+filepath.Base(targetFile.Filename))
	if err := c.SaveUploadedFile(sourceFile, sourcePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store source file"})
		return
	}
	if err := c.SaveUploadedFile(targetFile, targetPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store target file"})
		return
	}

	job := &models.ReconciliationJob{
		ID:                   jobID,
		ReconciliationTypeID: typeID,
		SourceFile:           sourcePath,
		TargetFile:           targetPath,
		SourceMappingID:      sourceMappingID,
		TargetMappingID:      targetMappingID,
		Status:               models.JobStatusPending,
		CreatedAt:            time.Now().UTC(),
	}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		h.logger.Error("job create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := h.dispatcher.Enqueue(jobID); err != nil {
		// Job stays PENDING; it can be re-dispatched via the rerun endpoint.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker queue full, retry via rerun", "job_id": jobID})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": models.JobStatusPending})
}

// GetJobStatus reports {jobId, status, createdAt, completedAt, summary}.
func (h *ReconciliationHandler) GetJobStatus(c *gin.Context) {
	jobID, ok := paramUUID(c, "jobId")
	if !ok {
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var summary json.RawMessage
	if len(job.ResultsSummary) > 0 {
		summary = json.RawMessage(job.ResultsSummary)
	}
	c.JSON(http.StatusOK, gin.H{
		"jobId":       job.ID,
		"status":      job.Status,
		"createdAt":   job.CreatedAt,
		"completedAt": job.CompletedAt,
		"summary":     summary,
	})
}

// ListResults returns one page of result-item projections, filterable by
// status.
func (h *ReconciliationHandler) ListResults(c *gin.Context) {
	jobID, ok := paramUUID(c, "jobId")
	if !ok {
		return
	}

	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	items, total, err := h.jobs.ListResults(c.Request.Context(), jobID, status, perPage, (page-1)*perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	projections := make([]map[string]any, 0, len(items))
	for i := range items {
		projections = append(projections, items[i].Projection())
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    projections,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// Rerun re-dispatches a FAILED job. COMPLETED and PROCESSING jobs reject
// the request.
func (h *ReconciliationHandler) Rerun(c *gin.Context) {
	jobID, ok := paramUUID(c, "jobId")
	if !ok {
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job.Status == models.JobStatusProcessing || job.Status == models.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not eligible for rerun", "status": job.Status})
		return
	}

	if err := h.jobs.SetStatus(c.Request.Context(), jobID, models.JobStatusPending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.dispatcher.Enqueue(jobID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker queue full, retry later"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": models.JobStatusPending})
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func formUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PostForm(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " required"})
		return uuid.Nil, false
	}
	return id, true
}
