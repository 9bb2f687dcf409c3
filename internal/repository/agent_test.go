//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRepository_ListKnowledgeBases(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	orgID, agentID := uuid.NewString(), uuid.NewString()
	first := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	time.Sleep(10 * time.Millisecond)
	second := seedKnowledgeBase(ctx, t, pool, orgID, agentID)
	seedKnowledgeBase(ctx, t, pool, orgID, uuid.NewString())

	kbs, err := repo.ListKnowledgeBases(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, kbs, 2)
	assert.Equal(t, first, kbs[0].ID)
	assert.Equal(t, second, kbs[1].ID)
}

func TestAgentRepository_ListKnowledgeBases_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	kbs, err := repo.ListKnowledgeBases(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.NotNil(t, kbs)
	assert.Empty(t, kbs)
}

func TestAgentRepository_GetProfile(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	orgID, agentID, reviewerID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO agent_profiles (agent_id, org_id, confidence_threshold, reviewer_id) VALUES ($1, $2, $3, $4)`,
		agentID, orgID, 0.7, reviewerID)
	require.NoError(t, err)

	profile, err := repo.GetProfile(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, agentID, profile.AgentID)
	assert.Equal(t, orgID, profile.OrgID)
	assert.Equal(t, 0.7, profile.ConfidenceThreshold)
	assert.Equal(t, reviewerID, profile.ReviewerID)
}

func TestAgentRepository_GetProfile_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAgentRepository(pool)

	_, err := repo.GetProfile(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
