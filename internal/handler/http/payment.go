package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
)

// PaymentVerifier resolves an order after the gateway redirect.
type PaymentVerifier interface {
	Verify(ctx context.Context, params service.ReturnParams, token string) (*domain.OrderView, error)
}

// PaymentHandler serves the gateway return page data.
type PaymentHandler struct {
	verifier PaymentVerifier
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(verifier PaymentVerifier, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{verifier: verifier, logger: logger}
}

// Return handles GET /payment/return?orderId=...&test=true. The shopper may
// arrive without a session, in which case the view is synthesized.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	test, _ := strconv.ParseBool(q.Get("test"))

	token := ""
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		token = p.Token
	}

	view, err := h.verifier.Verify(r.Context(), service.ReturnParams{
		OrderID: q.Get("orderId"),
		Test:    test,
	}, token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}
