package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/repository"
	"ai-reconciliation-backend/internal/services/ai"
)

// ConfigHandler manages reconciliation types and data source mappings.
type ConfigHandler struct {
	types    *repository.ReconciliationTypeRepository
	mappings *repository.MappingRepository
	logger   *zap.Logger
}

func NewConfigHandler(types *repository.ReconciliationTypeRepository, mappings *repository.MappingRepository, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{types: types, mappings: mappings, logger: logger}
}

func (h *ConfigHandler) ListReconciliationTypes(c *gin.Context) {
	types, err := h.types.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve reconciliation types"})
		return
	}
	out := make([]gin.H, 0, len(types))
	for _, t := range types {
		out = append(out, gin.H{"id": t.ID, "name": t.Name, "description": t.Description})
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConfigHandler) CreateReconciliationType(c *gin.Context) {
	var payload struct {
		Name                 string `json:"name"`
		Description          string `json:"description"`
		KnowledgeBaseContent string `json:"knowledge_base_content"`
		AIPromptTemplate     string `json:"ai_prompt_template"`
		CandidateStrategy    string `json:"candidate_selection_strategy"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Name == "" || payload.KnowledgeBaseContent == "" || payload.AIPromptTemplate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, knowledge_base_content and ai_prompt_template required"})
		return
	}
	// Reject templates the runner would fail on anyway.
	if err := ai.ValidateTemplate(payload.AIPromptTemplate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if exists, err := h.types.NameExists(c.Request.Context(), payload.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	} else if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "reconciliation type name already exists"})
		return
	}

	strategy := payload.CandidateStrategy
	if strategy == "" {
		strategy = "default_date_amount"
	}
	t := &models.ReconciliationType{
		ID:                   uuid.New(),
		Name:                 payload.Name,
		Description:          payload.Description,
		KnowledgeBaseContent: payload.KnowledgeBaseContent,
		AIPromptTemplate:     payload.AIPromptTemplate,
		CandidateStrategy:    strategy,
		IsActive:             true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := h.types.Create(c.Request.Context(), t); err != nil {
		h.logger.Error("create reconciliation type failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reconciliation type"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": t.ID, "name": t.Name, "description": t.Description})
}

func (h *ConfigHandler) ListMappings(c *gin.Context) {
	kind := models.MappingKind(c.Query("source_type"))
	if kind != "" && kind != models.MappingKindSource && kind != models.MappingKindTarget {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source_type filter"})
		return
	}

	var reconTypeID *uuid.UUID
	if raw := c.Query("reconciliationTypeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reconciliationTypeId"})
			return
		}
		reconTypeID = &id
	}

	mappings, err := h.mappings.List(c.Request.Context(), kind, reconTypeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve mappings"})
		return
	}
	out := make([]gin.H, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, gin.H{
			"id":                   m.ID,
			"name":                 m.MappingName,
			"type":                 m.SourceType,
			"reconciliationTypeId": m.ReconciliationTypeID,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConfigHandler) CreateMapping(c *gin.Context) {
	var payload struct {
		MappingName          string            `json:"mapping_name"`
		SourceType           string            `json:"source_type"`
		ColumnMappings       map[string]string `json:"column_mappings"`
		DateFormat           string            `json:"date_format_string"`
		ReconciliationTypeID *uuid.UUID        `json:"reconciliation_type_id"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.MappingName == "" || len(payload.ColumnMappings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mapping_name and column_mappings required"})
		return
	}
	kind := models.MappingKind(payload.SourceType)
	if kind != models.MappingKindSource && kind != models.MappingKindTarget {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_type must be 'source' or 'target'"})
		return
	}
	if exists, err := h.mappings.NameExists(c.Request.Context(), payload.MappingName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	} else if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "mapping name already exists"})
		return
	}

	columns, err := json.Marshal(payload.ColumnMappings)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid column_mappings"})
		return
	}
	m := &models.DataSourceMapping{
		ID:                   uuid.New(),
		MappingName:          payload.MappingName,
		SourceType:           kind,
		ColumnMappings:       datatypes.JSON(columns),
		DateFormat:           payload.DateFormat,
		ReconciliationTypeID: payload.ReconciliationTypeID,
		CreatedAt:            time.Now().UTC(),
	}
	if err := h.mappings.Create(c.Request.Context(), m); err != nil {
		h.logger.Error("create mapping failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create mapping"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": m.ID, "name": m.MappingName, "type": m.SourceType})
}
