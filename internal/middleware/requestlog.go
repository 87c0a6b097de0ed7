package middleware

import (
	"net/http"

	"github.com/openmic/backend/internal/logging"
)

// RequestContextMiddleware adds request attributes to context early in the middleware chain.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs := &logging.RequestAttrs{
			Method: r.Method,
			Path:   r.URL.Path,
			IP:     logging.ExtractClientIP(r),
		}
		ctx := logging.WithRequestAttrs(r.Context(), attrs)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UpdateRequestContextMiddleware updates context with the viewer's role after
// the auth middleware has run. The room code attr is filled in by handlers
// that resolve one.
func UpdateRequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := "attendee"
		if GetClaims(r.Context()) != nil {
			role = "host"
		}
		ctx := logging.UpdateRequestAttrs(r.Context(), "", role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
