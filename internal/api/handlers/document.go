package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/agrimentor/agrimentor/internal/api"
	"github.com/agrimentor/agrimentor/internal/api/middleware"
	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/agrimentor/agrimentor/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type DocumentService interface {
	CompleteUpload(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error)
	GetByID(ctx context.Context, actor domain.Actor, id string) (*domain.Document, error)
	List(ctx context.Context, actor domain.Actor, cursor string, limit int) (*service.DocumentPageResult, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	Reprocess(ctx context.Context, actor domain.Actor, id string) error
}

type UploadURLProvider interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
}

type DocumentHandler struct {
	svc   DocumentService
	store UploadURLProvider
}

func NewDocumentHandler(svc DocumentService, store UploadURLProvider) *DocumentHandler {
	return &DocumentHandler{svc: svc, store: store}
}

type InitUploadRequest struct {
	FileType    string `json:"file_type"`
	ContentType string `json:"content_type"`
}

type InitUploadResponse struct {
	FileKey   string `json:"file_key"`
	UploadURL string `json:"upload_url"`
}

type CompleteUploadRequest struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	FileKey         string `json:"file_key"`
	FileType        string `json:"file_type"`
}

type DocumentResponse struct {
	ID              string `json:"id"`
	OrgID           string `json:"org_id"`
	AgentID         string `json:"agent_id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	FileType        string `json:"file_type"`
	Status          string `json:"status"`
	ChunkCount      int    `json:"chunk_count"`
	Error           string `json:"error,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type DocumentListResponse struct {
	Items      []*DocumentResponse `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
	HasMore    bool                `json:"has_more"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:              d.ID,
		OrgID:           d.OrgID,
		AgentID:         d.AgentID,
		KnowledgeBaseID: d.KnowledgeBaseID,
		Title:           d.Title,
		FileType:        string(d.FileType),
		Status:          string(d.Status),
		ChunkCount:      d.ChunkCount,
		Error:           d.Error,
		CreatedAt:       d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// InitUpload issues a presigned URL for the raw file upload
func (h *DocumentHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.Error(w, http.StatusServiceUnavailable, "document storage not configured")
		return
	}

	actor := middleware.GetActor(r.Context())

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fileType := domain.FileType(req.FileType)
	if !domain.IsValidFileType(fileType) {
		api.Error(w, http.StatusBadRequest, "invalid file type")
		return
	}

	key := fmt.Sprintf("%s/%s/%s.%s", actor.OrgID, actor.AgentID, uuid.NewString(), fileType)
	uploadURL, err := h.store.GenerateUploadURL(r.Context(), key, req.ContentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, InitUploadResponse{
		FileKey:   key,
		UploadURL: uploadURL,
	})
}

// CompleteUpload registers the uploaded file and kicks off processing
func (h *DocumentHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.svc.CompleteUpload(r.Context(), service.CreateDocumentInput{
		Actor:           actor,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Title:           req.Title,
		FileKey:         req.FileKey,
		FileType:        domain.FileType(req.FileType),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

// Get returns a single document owned by the calling agent
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.svc.GetByID(r.Context(), actor, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

// List returns the agent's documents, newest first
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), actor, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// Delete removes a document along with its chunks, vectors and raw file
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// Reprocess enqueues a fresh pipeline run for a document
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Reprocess(r.Context(), actor, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
}
