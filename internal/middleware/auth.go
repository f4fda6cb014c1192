package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/budgetwise/backend/internal/services"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	roleKey   contextKey = "role"
)

// UserIDFromContext returns the authenticated user's id set by Auth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RoleFromContext returns the authenticated user's role set by Auth.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok && role != ""
}

// Auth validates the Bearer token, rejects tokens revoked via logout, and
// puts the user id and role into the request context. Downstream services
// trust this context without re-authenticating.
func Auth(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := services.ParseToken(parts[1])
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			if redisClient != nil {
				if jti, _ := claims["jti"].(string); jti != "" {
					if exists, err := redisClient.Exists(r.Context(), services.RevokedTokenKey(jti)).Result(); err == nil && exists > 0 {
						http.Error(w, "Token has been revoked", http.StatusUnauthorized)
						return
					}
				}
			}

			userID, _ := claims["user_id"].(string)
			if userID == "" {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			role, _ := claims["role"].(string)

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
