package middleware

import (
	"net/http"

	"github.com/agrimentor/agrimentor/internal/api"
)

// MaxBodyBytes caps JSON request bodies. Raw document uploads go straight to
// object storage through presigned URLs, so the cap only needs to cover
// metadata and chat payloads. A non-positive limit disables the cap.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Reject early when the declared length already exceeds the cap;
			// chunked bodies fall through to the reader limit below.
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
