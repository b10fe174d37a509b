package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Manzp111/Procured-Payment/internal/config"
	handler "github.com/Manzp111/Procured-Payment/internal/handlers"
	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/notify"
	"github.com/Manzp111/Procured-Payment/internal/repository"
	"github.com/Manzp111/Procured-Payment/internal/routes"
	"github.com/Manzp111/Procured-Payment/internal/services/ai"
	"github.com/Manzp111/Procured-Payment/internal/services/extraction"
	"github.com/Manzp111/Procured-Payment/internal/services/similarity"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
	"github.com/Manzp111/Procured-Payment/internal/storage"
	"github.com/Manzp111/Procured-Payment/internal/tasks"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on system env")
	}

	cfg := config.Load()
	db := cfg.InitDB()

	if err := db.AutoMigrate(
		&models.PurchaseRequest{},
		&models.ApprovalAction{},
	); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	blobs, err := storage.NewDiskStore(cfg.UploadsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob storage")
	}

	aiClient := ai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.ExtractorTimeout)

	// Without an API key the oracle degrades to the deterministic
	// normalized-text comparison.
	var oracle similarity.Oracle = similarity.Normalized{}
	if aiClient.Configured() {
		oracle = similarity.WithFallback(similarity.NewAIOracle(aiClient, cfg.OracleTimeout))
	}

	repo := repository.NewPurchaseRequestRepository(db)
	engine := workflow.NewEngine(repo, log)

	runner := tasks.NewRunner(tasks.RetryPolicy{
		MaxAttempts: cfg.TaskMaxAttempts,
		Backoff:     cfg.TaskBackoff,
	}, log)
	defer runner.Close()

	jobs := tasks.NewProcurement(
		repo,
		engine,
		extraction.NewAIExtractor(aiClient, cfg.ExtractorTimeout),
		oracle,
		blobs,
		notify.NewLogNotifier(log),
		log,
	)

	engine.OnFinalApproval(func(requestID uuid.UUID) {
		runner.Submit("generate_purchase_order", func(ctx context.Context) error {
			return jobs.GeneratePurchaseOrder(ctx, requestID)
		})
	})

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID", "X-User-Role"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, handler.NewPurchaseRequestHandler(repo, engine, jobs, runner, blobs, log))

	log.Info().Str("addr", cfg.ServerAddr).Msg("starting server")
	if err := r.Run(cfg.ServerAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
