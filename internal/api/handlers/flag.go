package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/agrimentor/agrimentor/internal/api"
	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/go-chi/chi/v5"
)

type FlagService interface {
	GetByID(ctx context.Context, id string) (*domain.FlaggedInteraction, error)
	ListPending(ctx context.Context, reviewerID, cursor string, limit int) (*service.FlagPageResult, error)
	Review(ctx context.Context, id string, status domain.FlagStatus, humanResponse string) (*domain.FlaggedInteraction, error)
}

type FlagHandler struct {
	svc FlagService
}

func NewFlagHandler(svc FlagService) *FlagHandler {
	return &FlagHandler{svc: svc}
}

type ReviewFlagRequest struct {
	Status        string `json:"status"`
	HumanResponse string `json:"human_response"`
}

type FlagResponse struct {
	ID              string  `json:"id"`
	OrgID           string  `json:"org_id"`
	AgentID         string  `json:"agent_id"`
	MessageID       string  `json:"message_id"`
	ReviewerID      string  `json:"reviewer_id,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
	Status          string  `json:"status"`
	HumanResponse   string  `json:"human_response,omitempty"`
	CreatedAt       string  `json:"created_at"`
	ReviewedAt      string  `json:"reviewed_at,omitempty"`
}

type FlagListResponse struct {
	Items      []*FlagResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

func flagToResponse(f *domain.FlaggedInteraction) *FlagResponse {
	resp := &FlagResponse{
		ID:              f.ID,
		OrgID:           f.OrgID,
		AgentID:         f.AgentID,
		MessageID:       f.MessageID,
		ReviewerID:      f.ReviewerID,
		ConfidenceScore: f.ConfidenceScore,
		Status:          string(f.Status),
		HumanResponse:   f.HumanResponse,
		CreatedAt:       f.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if f.ReviewedAt != nil {
		resp.ReviewedAt = f.ReviewedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// Get returns a single flagged interaction
func (h *FlagHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flag, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, flagToResponse(flag))
}

// ListPending returns a reviewer's open queue, oldest first
func (h *FlagHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	reviewerID := r.URL.Query().Get("reviewer_id")
	if reviewerID == "" {
		api.Error(w, http.StatusBadRequest, "reviewer_id is required")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.ListPending(r.Context(), reviewerID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*FlagResponse, len(page.Items))
	for i, f := range page.Items {
		items[i] = flagToResponse(f)
	}

	api.Success(w, http.StatusOK, FlagListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// Review resolves a pending flag as verified or corrected
func (h *FlagHandler) Review(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReviewFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := domain.FlagStatus(req.Status)
	if status != domain.FlagStatusVerified && status != domain.FlagStatusCorrected {
		api.Error(w, http.StatusBadRequest, "status must be verified or corrected")
		return
	}

	flag, err := h.svc.Review(r.Context(), id, status, req.HumanResponse)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, flagToResponse(flag))
}
