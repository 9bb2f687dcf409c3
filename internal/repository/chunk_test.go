//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/agrimentor/agrimentor/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "text-embedding-3-small"

// unitVector builds a 512-dim vector with 1.0 at the given axis. Vectors on
// the same axis have cosine similarity 1, vectors on different axes 0.
func unitVector(axis int) []float32 {
	v := make([]float32, 512)
	v[axis] = 1.0
	return v
}

func seedDocumentForChunks(ctx context.Context, t *testing.T, pool *pgxpool.Pool, docRepo *DocumentRepository, orgID, agentID, kbID, title string) *domain.Document {
	d := newTestDocument(orgID, agentID, kbID, time.Now().UTC().Truncate(time.Microsecond))
	d.Title = title
	require.NoError(t, docRepo.Create(ctx, d))
	return d
}

func TestChunkRepository_ReplaceChunks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	kbID := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	d := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentID, kbID, "Soil Guide")

	first := []domain.Chunk{
		{ID: uuid.NewString(), DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 0, Content: "old content", TokenCount: 3},
	}
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, first))

	second := []domain.Chunk{
		{ID: uuid.NewString(), DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 0, Content: "new content A", TokenCount: 4},
		{ID: uuid.NewString(), DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 1, Content: "new content B", TokenCount: 4},
	}
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, second))

	chunks, err := chunkRepo.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "new content A", chunks[0].Content)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Empty(t, chunks[0].EmbeddingModel)
}

func TestChunkRepository_UpsertVector(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	kbID := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	d := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentID, kbID, "Soil Guide")

	chunkID := uuid.NewString()
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, []domain.Chunk{
		{ID: chunkID, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 0, Content: "embed me", TokenCount: 2},
	}))

	require.NoError(t, chunkRepo.UpsertVector(ctx, chunkID, testModel, unitVector(0)))

	// Embedded chunk becomes searchable.
	matches, err := chunkRepo.Search(ctx, unitVector(0), []string{kbID}, testModel, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, chunkID, matches[0].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.0001)
}

func TestChunkRepository_UpsertVector_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunkRepo := NewChunkRepository(pool)

	err := chunkRepo.UpsertVector(ctx, uuid.NewString(), testModel, unitVector(0))
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestChunkRepository_BatchUpsertVectors(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	kbID := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	d := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentID, kbID, "Soil Guide")

	var chunks []domain.Chunk
	var upserts []service.VectorUpsert
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		chunks = append(chunks, domain.Chunk{ID: id, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: i, Content: "c", TokenCount: 1})
		upserts = append(upserts, service.VectorUpsert{ChunkID: id, Model: testModel, Vector: unitVector(i)})
	}
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, chunks))

	require.NoError(t, chunkRepo.BatchUpsertVectors(ctx, upserts))

	matches, err := chunkRepo.Search(ctx, unitVector(1), []string{kbID}, testModel, 5)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, chunks[1].ID, matches[0].ChunkID)
}

func TestChunkRepository_BatchUpsertVectors_ReportsMissingChunks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunkRepo := NewChunkRepository(pool)

	err := chunkRepo.BatchUpsertVectors(ctx, []service.VectorUpsert{
		{ChunkID: uuid.NewString(), Model: testModel, Vector: unitVector(0)},
	})
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestChunkRepository_Search_EmptyScope(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunkRepo := NewChunkRepository(pool)

	matches, err := chunkRepo.Search(ctx, unitVector(0), nil, testModel, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChunkRepository_Search_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID := uuid.NewString()
	agentA, agentB := uuid.NewString(), uuid.NewString()
	kbA := seedKnowledgeBase(ctx, t, pool, orgID, agentA)
	kbB := seedKnowledgeBase(ctx, t, pool, orgID, agentB)

	docA := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentA, kbA, "Agent A Doc")
	docB := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentB, kbB, "Agent B Doc")

	chunkA := uuid.NewString()
	chunkB := uuid.NewString()
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, docA.ID, []domain.Chunk{
		{ID: chunkA, DocumentID: docA.ID, KnowledgeBaseID: kbA, ChunkIndex: 0, Content: "agent A content", TokenCount: 3},
	}))
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, docB.ID, []domain.Chunk{
		{ID: chunkB, DocumentID: docB.ID, KnowledgeBaseID: kbB, ChunkIndex: 0, Content: "agent B content", TokenCount: 3},
	}))
	require.NoError(t, chunkRepo.UpsertVector(ctx, chunkA, testModel, unitVector(0)))
	require.NoError(t, chunkRepo.UpsertVector(ctx, chunkB, testModel, unitVector(0)))

	// Searching agent A's scope never returns agent B's chunks, even when
	// B's vector is a perfect match.
	matches, err := chunkRepo.Search(ctx, unitVector(0), []string{kbA}, testModel, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, chunkA, matches[0].ChunkID)
	assert.Equal(t, "Agent A Doc", matches[0].DocumentTitle)
}

func TestChunkRepository_Search_ExcludesUnembeddedAndForeignModels(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	kbID := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	d := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentID, kbID, "Doc")

	embedded := uuid.NewString()
	unembedded := uuid.NewString()
	otherModel := uuid.NewString()
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, []domain.Chunk{
		{ID: embedded, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 0, Content: "a", TokenCount: 1},
		{ID: unembedded, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 1, Content: "b", TokenCount: 1},
		{ID: otherModel, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 2, Content: "c", TokenCount: 1},
	}))
	require.NoError(t, chunkRepo.UpsertVector(ctx, embedded, testModel, unitVector(0)))
	require.NoError(t, chunkRepo.UpsertVector(ctx, otherModel, "gemini-embedding-001", unitVector(0)))

	matches, err := chunkRepo.Search(ctx, unitVector(0), []string{kbID}, testModel, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, embedded, matches[0].ChunkID)
}

func TestChunkRepository_Search_RanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	kbID := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	d := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentID, kbID, "Doc")

	// exact points along the query axis, partial is at 45 degrees, far is
	// orthogonal.
	exact := uuid.NewString()
	partial := uuid.NewString()
	far := uuid.NewString()
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, []domain.Chunk{
		{ID: far, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 0, Content: "far", TokenCount: 1},
		{ID: partial, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 1, Content: "partial", TokenCount: 1},
		{ID: exact, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 2, Content: "exact", TokenCount: 1},
	}))

	mixed := make([]float32, 512)
	mixed[0] = 1.0
	mixed[1] = 1.0

	require.NoError(t, chunkRepo.UpsertVector(ctx, exact, testModel, unitVector(0)))
	require.NoError(t, chunkRepo.UpsertVector(ctx, partial, testModel, mixed))
	require.NoError(t, chunkRepo.UpsertVector(ctx, far, testModel, unitVector(1)))

	matches, err := chunkRepo.Search(ctx, unitVector(0), []string{kbID}, testModel, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, exact, matches[0].ChunkID)
	assert.Equal(t, partial, matches[1].ChunkID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestChunkRepository_DeleteVectorsByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	kbID := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	d := seedDocumentForChunks(ctx, t, pool, docRepo, orgID, agentID, kbID, "Doc")

	chunkID := uuid.NewString()
	require.NoError(t, chunkRepo.ReplaceChunks(ctx, d.ID, []domain.Chunk{
		{ID: chunkID, DocumentID: d.ID, KnowledgeBaseID: kbID, ChunkIndex: 0, Content: "a", TokenCount: 1},
	}))
	require.NoError(t, chunkRepo.UpsertVector(ctx, chunkID, testModel, unitVector(0)))

	require.NoError(t, chunkRepo.DeleteVectorsByDocument(ctx, d.ID))

	// Chunk rows survive but are no longer searchable.
	chunks, err := chunkRepo.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	matches, err := chunkRepo.Search(ctx, unitVector(0), []string{kbID}, testModel, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
