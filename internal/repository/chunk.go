package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// vectorBatchSize is how many vector writes go out per sub-batch. Sub-batches
// fail independently so one bad write cannot sink a whole document's vectors.
const vectorBatchSize = 50

// ChunkRepository handles persistence of document chunks and their vectors,
// and serves similarity search over them.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
// Inserted chunks carry no vector until the embedding step upserts one.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks
				(id, document_id, knowledge_base_id, chunk_index, content, token_count, embedding_model, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID,
			c.DocumentID,
			c.KnowledgeBaseID,
			c.ChunkIndex,
			c.Content,
			c.TokenCount,
			nullableString(c.EmbeddingModel),
			nullableVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// UpsertVector attaches a vector to a chunk, recording the model that
// produced it. Writing again replaces the previous vector.
func (r *ChunkRepository) UpsertVector(ctx context.Context, chunkID, model string, vector []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chunks SET embedding = $1, embedding_model = $2 WHERE id = $3`,
		pgvector.NewVector(vector), model, chunkID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// BatchUpsertVectors writes vectors in sub-batches. A failing sub-batch is
// abandoned but the rest still run; the combined error reports every failure.
func (r *ChunkRepository) BatchUpsertVectors(ctx context.Context, entries []service.VectorUpsert) error {
	var errs []error

	for offset := 0; offset < len(entries); offset += vectorBatchSize {
		end := offset + vectorBatchSize
		if end > len(entries) {
			end = len(entries)
		}

		for i := offset; i < end; i++ {
			e := entries[i]
			if err := r.UpsertVector(ctx, e.ChunkID, e.Model, e.Vector); err != nil {
				errs = append(errs, fmt.Errorf("vector upsert for chunk %s: %w", e.ChunkID, err))
				break
			}
		}
	}

	return errors.Join(errs...)
}

// Search returns the topK most similar chunks across the given knowledge
// bases, using cosine distance over vectors produced by the given model.
// Chunks without a vector are invisible. Ties are broken by chunk ordinal so
// ranking is deterministic.
func (r *ChunkRepository) Search(ctx context.Context, queryVector []float32, knowledgeBaseIDs []string, model string, topK int) ([]domain.ChunkMatch, error) {
	if len(knowledgeBaseIDs) == 0 {
		return []domain.ChunkMatch{}, nil
	}
	if topK <= 0 {
		topK = service.DefaultTopK
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.document_id, d.title, c.knowledge_base_id, c.chunk_index, c.content,
		        1.0 - (c.embedding <=> $1) AS similarity
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.knowledge_base_id = ANY($2)
		   AND c.embedding IS NOT NULL
		   AND c.embedding_model = $3
		 ORDER BY similarity DESC, c.chunk_index ASC
		 LIMIT $4`,
		pgvector.NewVector(queryVector), knowledgeBaseIDs, model, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ChunkMatch, 0, topK)
	for rows.Next() {
		var m domain.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.DocumentTitle, &m.KnowledgeBaseID, &m.ChunkIndex, &m.Content, &m.Similarity); err != nil {
			return nil, err
		}
		results = append(results, m)
	}

	return results, rows.Err()
}

// DeleteVectorsByDocument clears vectors for every chunk of a document
// without touching the chunk rows.
func (r *ChunkRepository) DeleteVectorsByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE chunks SET embedding = NULL WHERE document_id = $1`,
		documentID,
	)
	return err
}

// ListByDocument returns a document's chunks in ordinal order.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, knowledge_base_id, chunk_index, content, token_count, embedding_model, created_at
		 FROM chunks
		 WHERE document_id = $1
		 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var model *string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.KnowledgeBaseID, &c.ChunkIndex, &c.Content, &c.TokenCount, &model, &c.CreatedAt); err != nil {
			return nil, err
		}
		if model != nil {
			c.EmbeddingModel = *model
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

func nullableVector(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}
