package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/agrimentor/agrimentor/internal/config"
	"github.com/agrimentor/agrimentor/internal/database"
	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/repository"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/spf13/cobra"
)

// ReprocessCmd returns the reprocess command
func ReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <document-id>",
		Short: "Queue a document for reprocessing",
		Long:  "Enqueue a fresh chunk/embed/index run for an existing document. The running server's worker picks it up.",
		Args:  cobra.ExactArgs(1),
		RunE:  runReprocess,
	}
}

func runReprocess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	documentID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewProcessingJobRepository(pool)

	// Operators act on behalf of the owning agent, so the actor comes from
	// the document itself.
	doc, err := documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	actor := domain.Actor{OrgID: doc.OrgID, AgentID: doc.AgentID}

	// The document service validates existence before enqueueing. The nil
	// collaborators are never reached by Reprocess.
	documentSvc := service.NewDocumentService(documentRepo, jobRepo, nil, nil)

	if err := documentSvc.Reprocess(ctx, actor, documentID); err != nil {
		return fmt.Errorf("failed to queue reprocessing: %w", err)
	}

	log.Printf("document %s queued for reprocessing", documentID)
	return nil
}
