package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
)

// CartService reads the cart summary.
type CartService interface {
	Badge(ctx context.Context, token string) (*domain.CartBadge, error)
}

// CartHandler serves the header cart badge.
type CartHandler struct {
	service CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// Badge handles GET /api/v1/cart/badge
func (h *CartHandler) Badge(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	badge, err := h.service.Badge(r.Context(), p.Token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, badge)
}
