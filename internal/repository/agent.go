package repository

import (
	"context"
	"errors"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentRepository reads agent configuration and knowledge base membership.
// Agents and knowledge bases are managed elsewhere; this side only consumes
// them.
type AgentRepository struct {
	db dbtx
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: pool}
}

// ListKnowledgeBases returns every knowledge base attached to an agent. An
// agent with none gets an empty slice, not an error.
func (r *AgentRepository) ListKnowledgeBases(ctx context.Context, agentID string) ([]domain.KnowledgeBase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, org_id, agent_id, title
		 FROM knowledge_bases
		 WHERE agent_id = $1
		 ORDER BY created_at ASC`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.KnowledgeBase, 0)
	for rows.Next() {
		var kb domain.KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.OrgID, &kb.AgentID, &kb.Title); err != nil {
			return nil, err
		}
		results = append(results, kb)
	}
	return results, rows.Err()
}

// GetProfile returns the agent's advisory configuration.
func (r *AgentRepository) GetProfile(ctx context.Context, agentID string) (*domain.AgentProfile, error) {
	var p domain.AgentProfile
	var reviewerID *string
	err := r.db.QueryRow(ctx,
		`SELECT agent_id, org_id, confidence_threshold, reviewer_id
		 FROM agent_profiles WHERE agent_id = $1`,
		agentID,
	).Scan(&p.AgentID, &p.OrgID, &p.ConfidenceThreshold, &reviewerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, err
	}
	if reviewerID != nil {
		p.ReviewerID = *reviewerID
	}
	return &p, nil
}
