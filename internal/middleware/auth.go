// Package middleware provides HTTP middleware for authentication, CORS
// handling, rate limiting, and request context management.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/openmic/backend/internal/logging"
	"github.com/openmic/backend/internal/services"
)

type contextKey string

const (
	// ClaimsKey is the context key for storing host JWT claims.
	ClaimsKey contextKey = "claims"
)

// AuthMiddleware validates host JWTs and adds claims to the request context.
// Returns 401 for missing/invalid tokens.
func AuthMiddleware(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, errEvent := claimsFromHeader(r, authService)
			if claims == nil {
				logging.LogSecurityEvent(r.Context(), errEvent, "host authentication failed")
				http.Error(w, `{"error":"invalid or missing token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware adds claims to the context when a valid host token
// is present, and passes the request through anonymously otherwise. Used on
// endpoints whose response shape depends on the viewer's role.
func OptionalAuthMiddleware(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, _ := claimsFromHeader(r, authService); claims != nil {
				ctx := context.WithValue(r.Context(), ClaimsKey, claims)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// claimsFromHeader parses and validates the Authorization header. On failure
// it returns nil and the security event describing why.
func claimsFromHeader(r *http.Request, authService *services.AuthService) (*services.Claims, logging.SecurityEvent) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, logging.SecurityEventMissingAuth
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, logging.SecurityEventInvalidAuthFmt
	}

	claims, err := authService.ValidateToken(parts[1])
	if err != nil {
		return nil, logging.SecurityEventInvalidJWT
	}
	return claims, ""
}

// GetClaims retrieves the host JWT claims from the request context.
// Returns nil if no claims are present (e.g., an anonymous attendee).
func GetClaims(ctx context.Context) *services.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*services.Claims)
	return claims
}
