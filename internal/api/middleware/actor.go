package middleware

import (
	"context"
	"net/http"

	"github.com/agrimentor/agrimentor/internal/api"
	"github.com/agrimentor/agrimentor/internal/domain"
)

type contextKey string

const ActorKey contextKey = "actor"

// RequireActor extracts the acting agent and organization from the headers
// the upstream gateway sets after authenticating the request. Auth itself
// happens upstream; a request without these headers never reaches a handler.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := r.Header.Get("X-Org-ID")
		agentID := r.Header.Get("X-Agent-ID")

		if orgID == "" || agentID == "" {
			api.Error(w, http.StatusUnauthorized, "missing actor headers")
			return
		}

		actor := domain.Actor{AgentID: agentID, OrgID: orgID}
		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor returns the actor from context.
func GetActor(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(ActorKey).(domain.Actor)
	return actor
}
