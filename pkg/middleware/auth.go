package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/pkg/logger"
)

type contextKeyType string

const (
	claimsKey contextKeyType = "claims"
	tokenKey  contextKeyType = "token"
)

// Claims are the identity fields taken from a verified session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return authenticate(validate, true)
}

// OptionalAuth attaches claims when a valid bearer token is present and
// otherwise lets the request through as anonymous.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return authenticate(validate, false)
}

func authenticate(validate TokenValidator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				if required {
					writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed authorization header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validate(token)
			if err != nil {
				if required {
					writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
					return
				}
				logger.FromContext(r.Context()).DebugContext(r.Context(), "ignoring invalid token on optional route",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, tokenKey, token)
			ctx = logger.WithUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// ClaimsFromContext returns the verified claims, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// TokenFromContext returns the raw verified bearer token.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// UserIDFromContext returns the authenticated user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}
