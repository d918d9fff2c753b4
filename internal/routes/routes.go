package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "ai-reconciliation-backend/internal/handlers"
	"ai-reconciliation-backend/internal/repository"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, dispatcher handler.Dispatcher, uploadDir string, logger *zap.Logger) {
	jobRepo := repository.NewJobRepository(db)
	typeRepo := repository.NewReconciliationTypeRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	exceptionRepo := repository.NewExceptionLogRepository(db)

	reconHandler := handler.NewReconciliationHandler(jobRepo, typeRepo, mappingRepo, dispatcher, uploadDir, logger)
	configHandler := handler.NewConfigHandler(typeRepo, mappingRepo, logger)
	exceptionHandler := handler.NewExceptionHandler(exceptionRepo, logger)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api.GET("/reconciliation_types", configHandler.ListReconciliationTypes)
	api.POST("/reconciliation_types", configHandler.CreateReconciliationType)
	api.GET("/mappings", configHandler.ListMappings)
	api.POST("/mappings", configHandler.CreateMapping)

	api.GET("/exceptions", exceptionHandler.List)
	api.GET("/exceptions/:exceptionId", exceptionHandler.Get)

	recon := api.Group("/reconciliations")
	recon.POST("/upload", reconHandler.Upload)
	recon.GET("/:jobId", reconHandler.GetJobStatus)
	recon.GET("/:jobId/results", reconHandler.ListResults)
	recon.POST("/:jobId/rerun", reconHandler.Rerun)
}
