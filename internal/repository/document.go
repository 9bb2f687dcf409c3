package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/pagination"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles persistence of documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, org_id, agent_id, knowledge_base_id, title, file_key, file_type, status, chunk_count, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.OrgID, d.AgentID, d.KnowledgeBaseID, d.Title, d.FileKey, d.FileType,
		d.Status, d.ChunkCount, nullableString(d.Error), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, agent_id, knowledge_base_id, title, file_key, file_type, status, chunk_count, error, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.OrgID, &d.AgentID, &d.KnowledgeBaseID, &d.Title, &d.FileKey, &d.FileType,
		&d.Status, &d.ChunkCount, &errMsg, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		d.Error = *errMsg
	}
	return &d, nil
}

func (r *DocumentRepository) ListByAgentWithCursor(ctx context.Context, agentID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, org_id, agent_id, knowledge_base_id, title, file_key, file_type, status, chunk_count, error, created_at, updated_at
			 FROM documents
			 WHERE agent_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			agentID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, org_id, agent_id, knowledge_base_id, title, file_key, file_type, status, chunk_count, error, created_at, updated_at
			 FROM documents
			 WHERE agent_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			agentID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateStatus records a pipeline state transition, its resulting chunk count
// and, for failures, the error message.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, error = $3, updated_at = $4 WHERE id = $5`,
		status, chunkCount, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document. Chunk rows go with it via ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var errMsg *string
		if err := rows.Scan(&d.ID, &d.OrgID, &d.AgentID, &d.KnowledgeBaseID, &d.Title, &d.FileKey, &d.FileType,
			&d.Status, &d.ChunkCount, &errMsg, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			d.Error = *errMsg
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
