package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agrimentor/agrimentor/internal/api/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	return NewRouter(RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(nil, nil),
		AdvisorHandler:  handlers.NewAdvisorHandler(nil),
		FlagHandler:     handlers.NewFlagHandler(nil),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRouter_MissingActorHeaders(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PartialActorHeaders(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
	req.Header.Set("X-Org-ID", "org-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
