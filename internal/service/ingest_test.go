package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngestDocumentRepository mocks document reads and status writes
type MockIngestDocumentRepository struct {
	mock.Mock
}

func (m *MockIngestDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockIngestDocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error {
	args := m.Called(ctx, id, status, chunkCount, errMsg)
	return args.Error(0)
}

// MockIngestChunkRepository mocks chunk and vector writes
type MockIngestChunkRepository struct {
	mock.Mock
}

func (m *MockIngestChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

func (m *MockIngestChunkRepository) BatchUpsertVectors(ctx context.Context, entries []VectorUpsert) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

// MockDocumentEmbedder mocks the document-side embedding client
type MockDocumentEmbedder struct {
	mock.Mock
}

func (m *MockDocumentEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockDocumentEmbedder) Model() string {
	args := m.Called()
	return args.String(0)
}

// MockRawObjectStore mocks raw file retrieval
type MockRawObjectStore struct {
	mock.Mock
}

func (m *MockRawObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockTextExtractor mocks text extraction
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(ctx context.Context, data []byte, fileType domain.FileType) (string, error) {
	args := m.Called(ctx, data, fileType)
	return args.String(0), args.Error(1)
}

func newIngestFixture() (*IngestService, *MockIngestDocumentRepository, *MockIngestChunkRepository, *MockDocumentEmbedder, *MockRawObjectStore, *MockTextExtractor) {
	docRepo := new(MockIngestDocumentRepository)
	chunkRepo := new(MockIngestChunkRepository)
	embedder := new(MockDocumentEmbedder)
	store := new(MockRawObjectStore)
	extractor := new(MockTextExtractor)
	svc := NewIngestService(docRepo, chunkRepo, embedder, store, extractor)
	return svc, docRepo, chunkRepo, embedder, store, extractor
}

func ingestTestDocument() *domain.Document {
	return &domain.Document{
		ID:              "doc-1",
		OrgID:           "org-1",
		AgentID:         "agent-1",
		KnowledgeBaseID: "kb-1",
		Title:           "Maize Guide",
		FileKey:         "org-1/agent-1/file.txt",
		FileType:        domain.FileTypeTXT,
		Status:          domain.DocumentStatusUploaded,
	}
}

func TestIngestService_ProcessDocument_Success(t *testing.T) {
	svc, docRepo, chunkRepo, embedder, store, extractor := newIngestFixture()
	ctx := context.Background()
	doc := ingestTestDocument()

	raw := []byte("Plant maize at the onset of the rains. Space rows 75cm apart.")
	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing, 0, "").Return(nil)
	store.On("GetObject", ctx, doc.FileKey).Return(raw, nil)
	extractor.On("Extract", ctx, raw, domain.FileTypeTXT).Return(string(raw), nil)

	var storedChunks []domain.Chunk
	chunkRepo.On("ReplaceChunks", ctx, "doc-1", mock.Anything).Run(func(args mock.Arguments) {
		storedChunks = args.Get(2).([]domain.Chunk)
	}).Return(nil)

	embedder.On("Model").Return("text-embedding-3-small")
	embedder.On("EmbedDocuments", ctx, mock.Anything).Return([][]float32{{0.1, 0.2}}, nil)

	var upserts []VectorUpsert
	chunkRepo.On("BatchUpsertVectors", ctx, mock.Anything).Run(func(args mock.Arguments) {
		upserts = args.Get(1).([]VectorUpsert)
	}).Return(nil)

	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusReady, 1, "").Return(nil)

	err := svc.ProcessDocument(ctx, "doc-1")

	require.NoError(t, err)
	require.Len(t, storedChunks, 1)
	assert.Equal(t, 0, storedChunks[0].ChunkIndex)
	assert.Equal(t, "kb-1", storedChunks[0].KnowledgeBaseID)
	assert.Nil(t, storedChunks[0].Embedding)
	require.Len(t, upserts, 1)
	assert.Equal(t, storedChunks[0].ID, upserts[0].ChunkID)
	assert.Equal(t, "text-embedding-3-small", upserts[0].Model)
	docRepo.AssertExpectations(t)
}

func TestIngestService_ProcessDocument_DocumentNotFound(t *testing.T) {
	svc, docRepo, _, _, store, _ := newIngestFixture()
	ctx := context.Background()

	docRepo.On("GetByID", ctx, "missing").Return(nil, domain.ErrDocumentNotFound)

	err := svc.ProcessDocument(ctx, "missing")

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	store.AssertNotCalled(t, "GetObject")
}

func TestIngestService_ProcessDocument_FetchFailureMarksFailed(t *testing.T) {
	svc, docRepo, _, _, store, extractor := newIngestFixture()
	ctx := context.Background()
	doc := ingestTestDocument()

	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing, 0, "").Return(nil)
	store.On("GetObject", ctx, doc.FileKey).Return(nil, errors.New("object missing"))
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusFailed, 0, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "object missing")
	})).Return(nil)

	err := svc.ProcessDocument(ctx, "doc-1")

	require.Error(t, err)
	extractor.AssertNotCalled(t, "Extract")
	docRepo.AssertExpectations(t)
}

func TestIngestService_ProcessDocument_ExtractionFailureMarksFailed(t *testing.T) {
	svc, docRepo, chunkRepo, _, store, extractor := newIngestFixture()
	ctx := context.Background()
	doc := ingestTestDocument()
	doc.FileType = domain.FileTypePDF

	raw := []byte("%PDF-encrypted")
	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing, 0, "").Return(nil)
	store.On("GetObject", ctx, doc.FileKey).Return(raw, nil)
	extractor.On("Extract", ctx, raw, domain.FileTypePDF).Return("", errors.New("encrypted pdf"))
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusFailed, 0, mock.Anything).Return(nil)

	err := svc.ProcessDocument(ctx, "doc-1")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExtraction, domainErr.Code)
	chunkRepo.AssertNotCalled(t, "ReplaceChunks")
}

func TestIngestService_ProcessDocument_EmptyTextIsReady(t *testing.T) {
	svc, docRepo, chunkRepo, embedder, store, extractor := newIngestFixture()
	ctx := context.Background()
	doc := ingestTestDocument()

	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing, 0, "").Return(nil)
	store.On("GetObject", ctx, doc.FileKey).Return([]byte("   "), nil)
	extractor.On("Extract", ctx, mock.Anything, domain.FileTypeTXT).Return("   ", nil)
	chunkRepo.On("ReplaceChunks", ctx, "doc-1", mock.Anything).Return(nil)
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusReady, 0, "").Return(nil)

	err := svc.ProcessDocument(ctx, "doc-1")

	require.NoError(t, err)
	embedder.AssertNotCalled(t, "EmbedDocuments")
	docRepo.AssertExpectations(t)
}

func TestIngestService_ProcessDocument_EmbedFailureMarksFailed(t *testing.T) {
	svc, docRepo, chunkRepo, embedder, store, extractor := newIngestFixture()
	ctx := context.Background()
	doc := ingestTestDocument()

	raw := []byte("Plant maize at the onset of the rains.")
	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusProcessing, 0, "").Return(nil)
	store.On("GetObject", ctx, doc.FileKey).Return(raw, nil)
	extractor.On("Extract", ctx, raw, domain.FileTypeTXT).Return(string(raw), nil)
	chunkRepo.On("ReplaceChunks", ctx, "doc-1", mock.Anything).Return(nil)
	embedder.On("Model").Return("text-embedding-3-small")
	embedder.On("EmbedDocuments", ctx, mock.Anything).Return(nil, errors.New("rate limited"))
	docRepo.On("UpdateStatus", ctx, "doc-1", domain.DocumentStatusFailed, 0, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "rate limited")
	})).Return(nil)

	err := svc.ProcessDocument(ctx, "doc-1")

	require.Error(t, err)
	// Chunks were written before embedding, so the document is recoverable.
	chunkRepo.AssertCalled(t, "ReplaceChunks", ctx, "doc-1", mock.Anything)
	chunkRepo.AssertNotCalled(t, "BatchUpsertVectors")
}
