package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrimentor/agrimentor/internal/api/handlers"
	"github.com/agrimentor/agrimentor/internal/config"
	"github.com/agrimentor/agrimentor/internal/database"
	"github.com/agrimentor/agrimentor/internal/embedding"
	"github.com/agrimentor/agrimentor/internal/extract"
	"github.com/agrimentor/agrimentor/internal/generation"
	"github.com/agrimentor/agrimentor/internal/jobs"
	"github.com/agrimentor/agrimentor/internal/repository"
	"github.com/agrimentor/agrimentor/internal/server"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/agrimentor/agrimentor/internal/storage"
	"github.com/agrimentor/agrimentor/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the agrimentor API server and the document processing worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasS3() {
		return fmt.Errorf("document storage not configured: AGRIMENTOR_S3_ENDPOINT, AGRIMENTOR_S3_ACCESS_KEY_ID and AGRIMENTOR_S3_SECRET_ACCESS_KEY are required")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	embeddingClient, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("embedding provider '%s' ready (model: %s)", cfg.EmbeddingProvider, embeddingClient.Model())

	generator, err := generation.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.ChatModel)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	jobRepo := repository.NewProcessingJobRepository(pool)
	flagRepo := repository.NewFlagRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)

	ingestSvc := service.NewIngestService(documentRepo, chunkRepo, embeddingClient, s3Client, extract.NewExtractor())
	processingWorker := jobs.NewWorker(jobs.NewProcessingWorker(jobRepo, ingestSvc), 10*time.Second)
	go processingWorker.Start(ctx)
	log.Println("document processing worker started")

	scorer := service.NewConfidenceScorer(cfg.ConfidenceScoringEnabled)
	retrievalSvc := service.NewRetrievalService(agentRepo, embeddingClient, chunkRepo)
	advisorSvc := service.NewAdvisorService(retrievalSvc, generator, agentRepo, flagRepo, scorer)
	documentSvc := service.NewDocumentService(documentRepo, jobRepo, chunkRepo, s3Client)
	flagSvc := service.NewFlagService(flagRepo)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documentSvc, s3Client),
		AdvisorHandler:  handlers.NewAdvisorHandler(advisorSvc),
		FlagHandler:     handlers.NewFlagHandler(flagSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	processingWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// newEmbeddingClient builds the configured embedding provider. A missing API
// key fails here, before any network call.
func newEmbeddingClient(ctx context.Context, cfg *config.Config) (*embedding.Client, error) {
	switch cfg.EmbeddingProvider {
	case "gemini":
		provider, err := embedding.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, embedding.DefaultDimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding provider: %w", err)
		}
		return embedding.NewClient(provider), nil
	case "openai":
		provider, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, embeddingModelForOpenAI(cfg), embedding.DefaultDimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding provider: %w", err)
		}
		return embedding.NewClient(provider), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbeddingProvider)
	}
}

func embeddingModelForOpenAI(cfg *config.Config) openai.EmbeddingModel {
	if cfg.EmbeddingModel == "" {
		return embedding.DefaultOpenAIModel
	}
	return openai.EmbeddingModel(cfg.EmbeddingModel)
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
