package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultSystemPrompt is the base instruction for the advice generator.
const DefaultSystemPrompt = "You are an agricultural advisor helping farmers with practical, " +
	"accurate guidance on crops, soil, pests and livestock. Answer clearly and concretely."

// contextInstruction is appended to the system prompt only when retrieval
// produced grounding context.
const contextInstruction = "\n\nUse the following knowledge from the curated library to answer. " +
	"If the knowledge does not cover the question, say so honestly instead of inventing an answer.\n\n"

// ChatMessage is one prior turn of the conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerationUsage reports token totals for one generation call.
type GenerationUsage struct {
	InputTokens  int
	OutputTokens int
}

// GenerationRequest is what the external generator consumes.
type GenerationRequest struct {
	SystemPrompt string
	History      []ChatMessage
	UserMessage  string
}

// TokenStream yields generated tokens incrementally. Recv returns io.EOF
// when generation finishes; Usage is valid only after that.
type TokenStream interface {
	Recv() (string, error)
	Usage() GenerationUsage
	Close() error
}

// Generator is the black-box text generation service.
type Generator interface {
	Stream(ctx context.Context, req GenerationRequest) (TokenStream, error)
}

// AgentConfigSource supplies per-agent configuration; this core only reads it.
type AgentConfigSource interface {
	GetProfile(ctx context.Context, agentID string) (*domain.AgentProfile, error)
}

// ContextRetriever is the retrieval orchestrator as the advisor sees it.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, actor domain.Actor, topK int) (*RetrievedContext, error)
}

// FlagRecorder persists flagged interactions.
type FlagRecorder interface {
	Create(ctx context.Context, f *domain.FlaggedInteraction) error
}

// Citation points at a document consulted for an answer.
type Citation struct {
	DocumentID      string
	DocumentTitle   string
	KnowledgeBaseID string
	ChunkIndex      int
	Similarity      float64
}

// AskInput represents one farmer question.
type AskInput struct {
	Actor    domain.Actor
	Question string
	History  []ChatMessage
	// OnToken, when set, receives each generated token as it arrives. How
	// tokens reach the end user is the caller's concern.
	OnToken func(token string)
}

// Answer is the fully drained generation result with its quality verdict.
type Answer struct {
	MessageID  string
	Text       string
	HasContext bool
	Citations  []Citation
	Usage      GenerationUsage
	Confidence *float64
	Flagged    bool
}

// AdvisorService runs the read path: retrieve → generate → score → flag.
type AdvisorService struct {
	retriever    ContextRetriever
	generator    Generator
	agents       AgentConfigSource
	flags        FlagRecorder
	scorer       *ConfidenceScorer
	systemPrompt string
}

// NewAdvisorService creates a new AdvisorService instance
func NewAdvisorService(
	retriever ContextRetriever,
	generator Generator,
	agents AgentConfigSource,
	flags FlagRecorder,
	scorer *ConfidenceScorer,
) *AdvisorService {
	return &AdvisorService{
		retriever:    retriever,
		generator:    generator,
		agents:       agents,
		flags:        flags,
		scorer:       scorer,
		systemPrompt: DefaultSystemPrompt,
	}
}

// Ask answers a farmer's question, grounded in the agent's knowledge when
// retrieval finds any. Retrieval failure is never surfaced to the user; the
// answer is simply generated ungrounded and scored accordingly.
func (s *AdvisorService) Ask(ctx context.Context, input AskInput) (*Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "AdvisorService.Ask", telemetry.SpanAttributes{
		OrgID:     input.Actor.OrgID,
		AgentID:   input.Actor.AgentID,
		Operation: "ask",
	})
	defer span.End()

	if strings.TrimSpace(input.Question) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "question is required")
	}

	retrieved, err := s.retriever.RetrieveContext(ctx, input.Question, input.Actor, DefaultTopK)
	if err != nil {
		log.Printf("retrieval failed for agent %s, answering ungrounded: %v", input.Actor.AgentID, err)
		telemetry.CaptureError(ctx, err)
		retrieved = emptyContext()
	}

	prompt := s.systemPrompt
	if retrieved.HasContext {
		prompt += contextInstruction + retrieved.Context
	}

	stream, err := s.generator.Stream(ctx, GenerationRequest{
		SystemPrompt: prompt,
		History:      input.History,
		UserMessage:  input.Question,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	// Scoring needs the full concatenated text, so the stream is drained
	// completely before the verdict.
	var b strings.Builder
	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(token)
		if input.OnToken != nil {
			input.OnToken(token)
		}
	}

	answer := &Answer{
		MessageID:  uuid.NewString(),
		Text:       b.String(),
		HasContext: retrieved.HasContext,
		Citations:  citations(retrieved.Chunks),
		Usage:      stream.Usage(),
	}

	answer.Confidence = s.scorer.Score(ConfidenceInput{
		ResponseText:        answer.Text,
		HasKnowledgeContext: retrieved.HasContext,
		KnowledgeChunksUsed: len(retrieved.Chunks),
		ConversationTurns:   len(input.History),
	})

	profile, err := s.agents.GetProfile(ctx, input.Actor.AgentID)
	if err != nil {
		log.Printf("failed to load agent profile %s, skipping flag decision: %v", input.Actor.AgentID, err)
		return answer, nil
	}

	if ShouldFlag(answer.Confidence, profile.ConfidenceThreshold) {
		answer.Flagged = true
		flag := domain.NewFlaggedInteraction(
			uuid.NewString(),
			input.Actor,
			answer.MessageID,
			profile.ReviewerID,
			*answer.Confidence,
			time.Now().UTC(),
		)
		if err := s.flags.Create(ctx, flag); err != nil {
			// The farmer still gets the answer; losing the flag is logged
			// loudly instead.
			log.Printf("failed to record flagged interaction for message %s: %v", answer.MessageID, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	return answer, nil
}

func citations(matches []domain.ChunkMatch) []Citation {
	out := make([]Citation, len(matches))
	for i, m := range matches {
		out[i] = Citation{
			DocumentID:      m.DocumentID,
			DocumentTitle:   m.DocumentTitle,
			KnowledgeBaseID: m.KnowledgeBaseID,
			ChunkIndex:      m.ChunkIndex,
			Similarity:      m.Similarity,
		}
	}
	return out
}
