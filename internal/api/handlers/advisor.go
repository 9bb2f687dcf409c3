package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agrimentor/agrimentor/internal/api"
	"github.com/agrimentor/agrimentor/internal/api/middleware"
	"github.com/agrimentor/agrimentor/internal/service"
)

type AdvisorService interface {
	Ask(ctx context.Context, input service.AskInput) (*service.Answer, error)
}

type AdvisorHandler struct {
	svc AdvisorService
}

func NewAdvisorHandler(svc AdvisorService) *AdvisorHandler {
	return &AdvisorHandler{svc: svc}
}

type AskRequest struct {
	Question string              `json:"question"`
	History  []AskHistoryMessage `json:"history"`
}

type AskHistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CitationResponse struct {
	DocumentID      string  `json:"document_id"`
	DocumentTitle   string  `json:"document_title"`
	KnowledgeBaseID string  `json:"knowledge_base_id"`
	Section         int     `json:"section"`
	Similarity      float64 `json:"similarity"`
}

type AskResponse struct {
	MessageID  string             `json:"message_id"`
	Answer     string             `json:"answer"`
	Grounded   bool               `json:"grounded"`
	Citations  []CitationResponse `json:"citations"`
	Confidence *float64           `json:"confidence"`
	Flagged    bool               `json:"flagged"`
}

// Ask answers a farmer question over the agent's knowledge
func (h *AdvisorHandler) Ask(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	history := make([]service.ChatMessage, len(req.History))
	for i, m := range req.History {
		history[i] = service.ChatMessage{Role: m.Role, Content: m.Content}
	}

	answer, err := h.svc.Ask(r.Context(), service.AskInput{
		Actor:    actor,
		Question: req.Question,
		History:  history,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	citations := make([]CitationResponse, len(answer.Citations))
	for i, c := range answer.Citations {
		citations[i] = CitationResponse{
			DocumentID:      c.DocumentID,
			DocumentTitle:   c.DocumentTitle,
			KnowledgeBaseID: c.KnowledgeBaseID,
			Section:         c.ChunkIndex + 1,
			Similarity:      c.Similarity,
		}
	}

	api.Success(w, http.StatusOK, AskResponse{
		MessageID:  answer.MessageID,
		Answer:     answer.Text,
		Grounded:   answer.HasContext,
		Citations:  citations,
		Confidence: answer.Confidence,
		Flagged:    answer.Flagged,
	})
}
