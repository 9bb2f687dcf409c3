package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/pagination"
	"github.com/google/uuid"
)

// CreateDocumentInput represents input for registering a completed upload
type CreateDocumentInput struct {
	Actor           domain.Actor
	KnowledgeBaseID string
	Title           string
	FileKey         string
	FileType        domain.FileType
}

// DocumentPageResult is one page of documents with cursor pagination
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// DocumentRepository defines the repository interface for document CRUD
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByAgentWithCursor(ctx context.Context, agentID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Delete(ctx context.Context, id string) error
}

// ProcessingJobRepository defines the interface for enqueueing pipeline jobs
type ProcessingJobRepository interface {
	CreateJob(ctx context.Context, job *domain.ProcessingJob) error
}

// VectorCleanupRepository clears a document's vectors independently of its
// chunk rows, as defense in depth against partial cascade failures.
type VectorCleanupRepository interface {
	DeleteVectorsByDocument(ctx context.Context, documentID string) error
}

// ObjectDeleter removes the raw stored file for a document
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// DocumentService manages document lifecycle around the ingest pipeline.
// Upload completion returns immediately; chunking, embedding and indexing
// run as a background job with at-least-once semantics.
type DocumentService struct {
	repo    DocumentRepository
	jobRepo ProcessingJobRepository
	vectors VectorCleanupRepository
	store   ObjectDeleter
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	repo DocumentRepository,
	jobRepo ProcessingJobRepository,
	vectors VectorCleanupRepository,
	store ObjectDeleter,
) *DocumentService {
	return &DocumentService{
		repo:    repo,
		jobRepo: jobRepo,
		vectors: vectors,
		store:   store,
	}
}

// CompleteUpload registers an uploaded file as a document and enqueues the
// processing pipeline. The document stays in uploaded state (chunk count 0,
// invisible to search) until the pipeline finishes.
func (s *DocumentService) CompleteUpload(ctx context.Context, input CreateDocumentInput) (*domain.Document, error) {
	if input.Title == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document title is required")
	}
	if input.KnowledgeBaseID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "knowledge base id is required")
	}
	if !domain.IsValidFileType(input.FileType) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("unsupported file type: %s", input.FileType))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:              uuid.NewString(),
		OrgID:           input.Actor.OrgID,
		AgentID:         input.Actor.AgentID,
		KnowledgeBaseID: input.KnowledgeBaseID,
		Title:           input.Title,
		FileKey:         input.FileKey,
		FileType:        input.FileType,
		Status:          domain.DocumentStatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, doc.ID); err != nil {
		// The document is stored; it stays in uploaded state and can be
		// reprocessed later.
		log.Printf("failed to enqueue processing job for document %s: %v", doc.ID, err)
	}

	return doc, nil
}

// GetByID fetches a single document owned by the actor
func (s *DocumentService) GetByID(ctx context.Context, actor domain.Actor, id string) (*domain.Document, error) {
	return s.getOwned(ctx, actor, id)
}

// List returns the agent's documents, newest first, with cursor pagination
func (s *DocumentService) List(ctx context.Context, actor domain.Actor, cursorStr string, limit int) (*DocumentPageResult, error) {
	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.repo.ListByAgentWithCursor(ctx, actor.AgentID, cursor, limit)
}

// Delete removes a document, its chunks and vectors, and the stored file.
// Vectors are cleared explicitly before the row delete cascades.
func (s *DocumentService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	doc, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteVectorsByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		return err
	}

	if doc.FileKey != "" {
		if err := s.store.DeleteObject(ctx, doc.FileKey); err != nil {
			// The database row is gone; an orphaned object is tolerable.
			log.Printf("failed to delete stored object %s: %v", doc.FileKey, err)
		}
	}

	return nil
}

// Reprocess enqueues a fresh pipeline run for an existing document. The run
// replaces the document's chunks, so repeating it is safe.
func (s *DocumentService) Reprocess(ctx context.Context, actor domain.Actor, id string) error {
	doc, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, doc.ID)
}

// getOwned loads a document and enforces tenant ownership. A document owned
// by another org or agent is reported as not found so cross-tenant probes
// cannot distinguish foreign IDs from missing ones.
func (s *DocumentService) getOwned(ctx context.Context, actor domain.Actor, id string) (*domain.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != actor.OrgID || doc.AgentID != actor.AgentID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) enqueue(ctx context.Context, documentID string) error {
	job := domain.NewProcessingJob(uuid.NewString(), documentID, time.Now().UTC())
	return s.jobRepo.CreateJob(ctx, job)
}
