package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"miniapp_store/internal/models"
)

// contextKey is a custom type used for storing values in a context without risking collisions.
type contextKey string

const (
	// ContextUserID is the key used to store and retrieve the user ID from the request context.
	ContextUserID contextKey = "contextUserID"
	// ContextClaims is the key used to store the parsed token claims in the request context.
	ContextClaims contextKey = "contextClaims"
)

// CheckJWTMiddleware validates the Bearer token of a user session and stores the user ID
// and claims in the request context. Any failure is answered with 401.
func CheckJWTMiddleware(tokens *TokenManager) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, tokens)
			if !ok {
				return
			}
			if claims.UserID == 0 {
				writeErrorResponse(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextClaims, claims)
			h.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// CheckAdminMiddleware guards admin routes. The token is checked against adminTokens and,
// when userTokens is not nil, against user sessions as well, so a user flagged is_admin in
// the database is admitted with their session token. A missing or invalid token yields 401,
// a valid token without the isAdmin claim yields 403.
func CheckAdminMiddleware(adminTokens, userTokens *TokenManager) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, adminTokens, userTokens)
			if !ok {
				return
			}
			if !claims.IsAdmin {
				writeErrorResponse(w, "admin access required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ContextClaims, claims)
			if claims.UserID != 0 {
				ctx = context.WithValue(ctx, ContextUserID, claims.UserID)
			}
			h.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// UserIDFromContext returns the authenticated user ID stored by CheckJWTMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(ContextUserID).(int64)
	return userID, ok && userID != 0
}

// ClaimsFromContext returns the claims stored by either middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextClaims).(*Claims)
	return claims, ok
}

// authenticate parses the Bearer token with the first manager that accepts it.
func authenticate(w http.ResponseWriter, r *http.Request, managers ...*TokenManager) (*Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeErrorResponse(w, "missing auth header", http.StatusUnauthorized)
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		writeErrorResponse(w, "invalid auth header", http.StatusUnauthorized)
		return nil, false
	}

	for _, tokens := range managers {
		if tokens == nil {
			continue
		}
		if claims, err := tokens.ParseToken(parts[1]); err == nil {
			return claims, true
		}
	}

	writeErrorResponse(w, "invalid token", http.StatusUnauthorized)
	return nil, false
}

// writeErrorResponse writes a JSON-formatted error response to the HTTP response writer.
func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
