package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/telemetry"
	"github.com/google/uuid"
)

// embedBatchSize is how many chunk texts are embedded per pipeline step.
// Each step's vectors are flushed to the index before the next begins, so a
// provider failure mid-run leaves everything already embedded searchable.
const embedBatchSize = 128

// VectorUpsert is one chunk vector write for the index.
type VectorUpsert struct {
	ChunkID string
	Model   string
	Vector  []float32
}

// IngestDocumentRepository defines the repository interface the ingest
// pipeline needs for documents
type IngestDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error
}

// IngestChunkRepository defines the repository interface for chunk and
// vector writes
type IngestChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	BatchUpsertVectors(ctx context.Context, entries []VectorUpsert) error
}

// DocumentEmbedder turns chunk texts into document-intent vectors
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// RawObjectStore fetches the stored raw file bytes for a document
type RawObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor turns raw file bytes into plain text. Extraction itself is
// upstream of this core; failures (encrypted PDF, corrupt file) surface as
// extraction errors the pipeline records without crashing.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, fileType domain.FileType) (string, error)
}

// IngestService runs the chunk → embed → index write path for one document.
// It is invoked by the background worker, never on the request path, and is
// idempotent: re-running on the same document replaces its chunks and
// converges on the latest write.
type IngestService struct {
	docRepo   IngestDocumentRepository
	chunkRepo IngestChunkRepository
	embedder  DocumentEmbedder
	store     RawObjectStore
	extractor TextExtractor
	chunkCfg  ChunkConfig
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	docRepo IngestDocumentRepository,
	chunkRepo IngestChunkRepository,
	embedder DocumentEmbedder,
	store RawObjectStore,
	extractor TextExtractor,
) *IngestService {
	return &IngestService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		embedder:  embedder,
		store:     store,
		extractor: extractor,
		chunkCfg:  DefaultChunkConfig(),
	}
}

// ProcessDocument fetches, extracts, chunks, embeds and indexes a document.
// This method is called by the background worker.
func (s *IngestService) ProcessDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.ProcessDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, doc.ChunkCount, ""); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}

	data, err := s.store.GetObject(ctx, doc.FileKey)
	if err != nil {
		return s.fail(ctx, doc, fmt.Errorf("failed to fetch raw document: %w", err))
	}

	text, err := s.extractor.Extract(ctx, data, doc.FileType)
	if err != nil {
		extractionErr := domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "text extraction failed", err)
		return s.fail(ctx, doc, extractionErr)
	}

	chunks := ChunkText(text, s.chunkCfg)

	entries := make([]domain.Chunk, len(chunks))
	createdAt := time.Now().UTC()
	for i, c := range chunks {
		entries[i] = domain.Chunk{
			ID:              uuid.NewString(),
			DocumentID:      doc.ID,
			KnowledgeBaseID: doc.KnowledgeBaseID,
			ChunkIndex:      c.Index,
			Content:         c.Content,
			TokenCount:      c.TokenCount,
			CreatedAt:       createdAt,
		}
	}

	// Chunks are written before any embedding so a provider outage leaves
	// them recoverable; search excludes vectorless rows.
	if err := s.chunkRepo.ReplaceChunks(ctx, doc.ID, entries); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("failed to replace chunks: %w", err))
	}

	if len(entries) == 0 {
		log.Printf("document %s produced no chunks (empty text)", doc.ID)
		return s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady, 0, "")
	}

	if err := s.embedAndIndex(ctx, entries); err != nil {
		// Abandon this run; vectors already flushed stay searchable and the
		// job layer decides on retries.
		return s.fail(ctx, doc, err)
	}

	return s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady, len(entries), "")
}

func (s *IngestService) embedAndIndex(ctx context.Context, entries []domain.Chunk) error {
	model := s.embedder.Model()

	for offset := 0; offset < len(entries); offset += embedBatchSize {
		end := offset + embedBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch at %d: %w", offset, err)
		}

		upserts := make([]VectorUpsert, len(batch))
		for i, c := range batch {
			upserts[i] = VectorUpsert{
				ChunkID: c.ID,
				Model:   model,
				Vector:  vectors[i],
			}
		}

		if err := s.chunkRepo.BatchUpsertVectors(ctx, upserts); err != nil {
			return fmt.Errorf("failed to index chunk batch at %d: %w", offset, err)
		}
	}

	return nil
}

// fail records a processing failure on the document and propagates the
// cause. The raw file and any chunks already written stay in place, so the
// document is recoverable by reprocessing.
func (s *IngestService) fail(ctx context.Context, doc *domain.Document, cause error) error {
	if updErr := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, doc.ChunkCount, cause.Error()); updErr != nil {
		log.Printf("failed to record processing failure for document %s: %v", doc.ID, updErr)
	}
	return cause
}
