package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/repository"
)

// ExceptionStore is the read surface the exception endpoints need.
type ExceptionStore interface {
	List(ctx context.Context, f repository.ExceptionFilter) ([]models.ExceptionLog, int64, error)
	GetByDisplayID(ctx context.Context, displayID string) (*models.ExceptionLog, error)
}

type ExceptionHandler struct {
	exceptions ExceptionStore
	logger     *zap.Logger
}

func NewExceptionHandler(exceptions ExceptionStore, logger *zap.Logger) *ExceptionHandler {
	return &ExceptionHandler{exceptions: exceptions, logger: logger}
}

// List returns one page of exception summaries, newest first, filterable by
// jobId, priority, status, and type.
func (h *ExceptionHandler) List(c *gin.Context) {
	filter := repository.ExceptionFilter{
		Priority:      c.Query("priority"),
		Status:        c.Query("status"),
		ExceptionType: c.Query("type"),
	}
	if raw := c.Query("jobId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid jobId"})
			return
		}
		filter.JobID = &id
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	logs, total, err := h.exceptions.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("exception list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve exceptions"})
		return
	}

	items := make([]gin.H, 0, len(logs))
	for i := range logs {
		items = append(items, exceptionSummary(&logs[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// Get returns the full detail view for one exception display id.
func (h *ExceptionHandler) Get(c *gin.Context) {
	displayID := c.Param("exceptionId")
	log, err := h.exceptions.GetByDisplayID(c.Request.Context(), displayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "exception not found"})
			return
		}
		h.logger.Error("exception lookup failed", zap.String("exception_id", displayID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve exception"})
		return
	}

	details, err := models.UnmarshalExceptionLogDetails(log.Details)
	if err != nil {
		details = &models.ExceptionLogDetails{}
	}
	title := details.Title
	if title == "" {
		title = log.ExceptionType
	}
	aiAnalysis := details.AIReason
	if aiAnalysis == "" {
		aiAnalysis = "N/A"
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             log.ExceptionIDDisplay,
		"createdDate":    log.CreatedAt.Format("2006-01-02 15:04:05"),
		"priority":       log.Priority,
		"status":         log.Status,
		"exceptionTitle": title,
		"exceptionType":  log.ExceptionType,
		"transaction":    details.Transaction,
		"discrepancy":    details.Discrepancy,
		"aiAnalysis":     aiAnalysis,
	})
}

// exceptionSummary is the listing row shape: the details payload contributes
// the human description and amount when present.
func exceptionSummary(log *models.ExceptionLog) gin.H {
	description := log.ExceptionType
	amount := "N/A"
	if details, err := models.UnmarshalExceptionLogDetails(log.Details); err == nil {
		if details.Title != "" {
			description = details.Title
		}
		if details.Amount != "" {
			amount = details.Amount
		}
	}
	return gin.H{
		"id":          log.ExceptionIDDisplay,
		"date":        log.CreatedAt.Format("2006-01-02"),
		"description": description,
		"amount":      amount,
		"type":        log.ExceptionType,
		"priority":    log.Priority,
		"status":      log.Status,
	}
}
