package auth

import (
	"context"

	"github.com/utafrali/storefront/pkg/middleware"
)

// Principal is an authenticated shopper together with the bearer token that
// is forwarded to the backend.
type Principal struct {
	UserID string
	Email  string
	Token  string
}

// PrincipalFromContext returns the principal attached by the auth
// middleware, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}
	return &Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		Token:  middleware.TokenFromContext(ctx),
	}
}
