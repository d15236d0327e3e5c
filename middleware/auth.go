package middleware

import (
	"context"
	"net/http"
	"strings"

	"writingstuff/pkg/logger"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Auth returns middleware that rejects requests without a valid token and
// stores the account id under UserIDKey.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Browsers cannot set headers on websocket upgrades, so the token
			// may also arrive in the query string.
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
					tokenString = strings.TrimSpace(authHeader[7:])
				}
			}

			if tokenString == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				logger.Sugar.Debugf("Invalid token: %v", err)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			setLoggedUser(r.Context(), userID)
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated account id, or "" outside Auth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
