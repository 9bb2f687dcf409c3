package repository

import (
	"context"
	"errors"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/pagination"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FlagRepository handles persistence of flagged interactions.
type FlagRepository struct {
	db dbtx
}

func NewFlagRepository(pool *pgxpool.Pool) *FlagRepository {
	return &FlagRepository{db: pool}
}

func NewFlagRepositoryWithTx(tx pgx.Tx) *FlagRepository {
	return &FlagRepository{db: tx}
}

func (r *FlagRepository) Create(ctx context.Context, f *domain.FlaggedInteraction) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO flagged_interactions
			(id, org_id, agent_id, message_id, reviewer_id, confidence_score, status, human_response, created_at, reviewed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.OrgID, f.AgentID, f.MessageID, nullableString(f.ReviewerID),
		f.ConfidenceScore, f.Status, nullableString(f.HumanResponse), f.CreatedAt, f.ReviewedAt,
	)
	return err
}

func (r *FlagRepository) GetByID(ctx context.Context, id string) (*domain.FlaggedInteraction, error) {
	var f domain.FlaggedInteraction
	var reviewerID, humanResponse *string
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, agent_id, message_id, reviewer_id, confidence_score, status, human_response, created_at, reviewed_at
		 FROM flagged_interactions WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.OrgID, &f.AgentID, &f.MessageID, &reviewerID,
		&f.ConfidenceScore, &f.Status, &humanResponse, &f.CreatedAt, &f.ReviewedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlagNotFound
		}
		return nil, err
	}
	if reviewerID != nil {
		f.ReviewerID = *reviewerID
	}
	if humanResponse != nil {
		f.HumanResponse = *humanResponse
	}
	return &f, nil
}

// ListPendingByReviewer returns a reviewer's open queue, oldest first, with
// cursor pagination.
func (r *FlagRepository) ListPendingByReviewer(ctx context.Context, reviewerID string, cursor *pagination.Cursor, limit int) (*service.FlagPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, org_id, agent_id, message_id, reviewer_id, confidence_score, status, human_response, created_at, reviewed_at
			 FROM flagged_interactions
			 WHERE reviewer_id = $1 AND status = $2 AND (created_at, id) > ($3, $4)
			 ORDER BY created_at ASC, id ASC
			 LIMIT $5`,
			reviewerID, domain.FlagStatusPending, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, org_id, agent_id, message_id, reviewer_id, confidence_score, status, human_response, created_at, reviewed_at
			 FROM flagged_interactions
			 WHERE reviewer_id = $1 AND status = $2
			 ORDER BY created_at ASC, id ASC
			 LIMIT $3`,
			reviewerID, domain.FlagStatusPending, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanFlagRows(rows)
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

	return &service.FlagPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Update persists a review transition. The status guard makes the write
// first-reviewer-wins under concurrency.
func (r *FlagRepository) Update(ctx context.Context, f *domain.FlaggedInteraction) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE flagged_interactions
		 SET status = $1, human_response = $2, reviewed_at = $3
		 WHERE id = $4 AND status = $5`,
		f.Status, nullableString(f.HumanResponse), f.ReviewedAt, f.ID, domain.FlagStatusPending,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFlagAlreadyReviewed
	}
	return nil
}

func scanFlagRows(rows pgx.Rows) ([]*domain.FlaggedInteraction, error) {
	var results []*domain.FlaggedInteraction
	for rows.Next() {
		var f domain.FlaggedInteraction
		var reviewerID, humanResponse *string
		if err := rows.Scan(&f.ID, &f.OrgID, &f.AgentID, &f.MessageID, &reviewerID,
			&f.ConfidenceScore, &f.Status, &humanResponse, &f.CreatedAt, &f.ReviewedAt); err != nil {
			return nil, err
		}
		if reviewerID != nil {
			f.ReviewerID = *reviewerID
		}
		if humanResponse != nil {
			f.HumanResponse = *humanResponse
		}
		results = append(results, &f)
	}
	return results, rows.Err()
}
