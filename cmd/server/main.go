package main

import (
	"context"
	"log"
	"os"
	"time"

	"ai-reconciliation-backend/internal/config"
	"ai-reconciliation-backend/internal/models"
	"ai-reconciliation-backend/internal/repository"
	"ai-reconciliation-backend/internal/routes"
	"ai-reconciliation-backend/internal/services/ai"
	"ai-reconciliation-backend/internal/services/knowledge"
	"ai-reconciliation-backend/internal/services/matching"
	"ai-reconciliation-backend/internal/services/normalizer"
	"ai-reconciliation-backend/internal/services/reconciliation"
	"ai-reconciliation-backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}

	db.AutoMigrate(
		&models.ReconciliationType{},
		&models.DataSourceMapping{},
		&models.ReconciliationJob{},
		&models.ResultItem{},
		&models.ExceptionLog{},
	)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("create upload dir", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}

	ctx := context.Background()

	embedder, err := knowledge.NewEmbedder(ctx, knowledge.EmbedderConfig{
		Provider:       cfg.EmbeddingProvider,
		GenAIAPIKey:    cfg.GeminiAPIKey,
		GenAIModel:     cfg.GenAIEmbeddingModel,
		OllamaEndpoint: cfg.OllamaBaseURL,
		OllamaModel:    cfg.OllamaEmbeddingModel,
	})
	if err != nil {
		logger.Fatal("init embedder", zap.Error(err))
	}

	llm, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Fatal("init gemini client", zap.Error(err))
	}

	buildIndex := func(ctx context.Context, corpus string) (ai.Retriever, error) {
		return knowledge.BuildIndex(ctx, corpus, embedder, logger)
	}

	store := repository.NewRunStore(db)
	runner := reconciliation.NewRunner(
		store,
		normalizer.New(logger),
		matching.NewSelector(logger),
		llm,
		buildIndex,
		logger,
	)

	pool := worker.NewPool(cfg.WorkerCount, runner, logger)
	pool.Start(ctx)
	defer pool.Stop()

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, pool, cfg.UploadDir, logger)

	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
