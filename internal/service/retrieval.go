package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/telemetry"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

const queryCacheSize = 256

// contextSeparator joins formatted source blocks.
const contextSeparator = "\n\n---\n\n"

// KnowledgeBaseDirectory resolves which knowledge bases belong to an agent.
// Scope is always computed from the agent's own associations, never from
// caller-supplied identifiers.
type KnowledgeBaseDirectory interface {
	ListKnowledgeBases(ctx context.Context, agentID string) ([]domain.KnowledgeBase, error)
}

// QueryEmbedder turns live search text into a query-intent vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// VectorIndex is the narrow similarity-search interface the orchestrator
// depends on; it has no concept of tenant, isolation is entirely the
// caller-supplied scope set.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, knowledgeBaseIDs []string, model string, topK int) ([]domain.ChunkMatch, error)
}

// RetrievedContext is the outcome of one retrieval pass. Chunks carries the
// raw ranked matches for citation metadata and the confidence signal;
// Context is the formatted prose block injected into the generation prompt.
type RetrievedContext struct {
	Context    string
	Chunks     []domain.ChunkMatch
	HasContext bool
}

// RetrievalService resolves an agent's knowledge scope, embeds the question
// and assembles ranked context for generation.
type RetrievalService struct {
	directory  KnowledgeBaseDirectory
	embedder   QueryEmbedder
	index      VectorIndex
	queryCache *lru.Cache[string, []float32]
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(directory KnowledgeBaseDirectory, embedder QueryEmbedder, index VectorIndex) *RetrievalService {
	// Cache failure is impossible for a positive fixed size.
	cache, _ := lru.New[string, []float32](queryCacheSize)
	return &RetrievalService{
		directory:  directory,
		embedder:   embedder,
		index:      index,
		queryCache: cache,
	}
}

// RetrieveContext embeds the query and searches the agent's knowledge scope.
// An agent with zero knowledge bases gets an immediate empty result without
// any embedding call; so does a query matching nothing. Neither is an error,
// the agent simply converses ungrounded.
func (s *RetrievalService) RetrieveContext(ctx context.Context, query string, actor domain.Actor, topK int) (*RetrievedContext, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.RetrieveContext", telemetry.SpanAttributes{
		OrgID:     actor.OrgID,
		AgentID:   actor.AgentID,
		Operation: "retrieve",
	})
	defer span.End()

	if topK <= 0 {
		topK = DefaultTopK
	}

	bases, err := s.directory.ListKnowledgeBases(ctx, actor.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve knowledge scope: %w", err)
	}
	if len(bases) == 0 {
		return emptyContext(), nil
	}

	vector, err := s.embedQueryCached(ctx, query)
	if err != nil {
		return nil, err
	}

	scope := make([]string, len(bases))
	for i, kb := range bases {
		scope[i] = kb.ID
	}

	matches, err := s.index.Search(ctx, vector, scope, s.embedder.Model(), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(matches) == 0 {
		return emptyContext(), nil
	}

	return &RetrievedContext{
		Context:    formatContext(matches),
		Chunks:     matches,
		HasContext: true,
	}, nil
}

func emptyContext() *RetrievedContext {
	return &RetrievedContext{
		Context:    "",
		Chunks:     []domain.ChunkMatch{},
		HasContext: false,
	}
}

func (s *RetrievalService) embedQueryCached(ctx context.Context, query string) ([]float32, error) {
	key := s.embedder.Model() + "\x00" + query
	if vector, ok := s.queryCache.Get(key); ok {
		return vector, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	s.queryCache.Add(key, vector)
	return vector, nil
}

// formatContext renders matches as labeled source blocks in ranked order.
// Downstream generation may weight earlier context more heavily, so the
// similarity order is preserved.
func formatContext(matches []domain.ChunkMatch) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("Source %d (%s, section %d):\n%s",
			i+1, m.DocumentTitle, m.ChunkIndex+1, m.Content)
	}
	return strings.Join(blocks, contextSeparator)
}
