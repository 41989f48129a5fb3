package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// AuthHandler receives the login-success callback of the storefront.
type AuthHandler struct {
	gate   ActionGate
	logger *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(gate ActionGate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{gate: gate, logger: logger}
}

// Resume handles POST /api/v1/auth/resume. It replays the action the
// visitor attempted before logging in, at most once.
func (h *AuthHandler) Resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.gate.Resume(ctx, logger.VisitorIDFromContext(ctx), auth.PrincipalFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeGateResult(w, res)
}
