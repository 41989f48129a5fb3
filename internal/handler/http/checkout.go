package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

var timeNow = func() time.Time { return time.Now().UTC() }

// CheckoutService is the wizard API used by the handlers.
type CheckoutService interface {
	Get(ctx context.Context, userID, id string) (*domain.Wizard, error)
	Continue(ctx context.Context, userID, id string) (*domain.Wizard, error)
	Back(ctx context.Context, userID, id string) (*domain.Wizard, error)
	UpdateDelivery(ctx context.Context, userID, id string, patch domain.AddressPatch) (*domain.Wizard, error)
	SetTermsAccepted(ctx context.Context, userID, id string, accepted bool) (*domain.Wizard, error)
	CompletePayment(ctx context.Context, p *auth.Principal, id string) (*domain.PaymentIntent, error)
	Close(ctx context.Context, userID, id string) error
}

// ActionGate runs or defers login-gated actions.
type ActionGate interface {
	RunOrDefer(ctx context.Context, visitorID string, p *auth.Principal, cmd domain.Command) (auth.Result, error)
	Resume(ctx context.Context, visitorID string, p *auth.Principal) (auth.Result, error)
}

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service CheckoutService
	gate    ActionGate
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc CheckoutService, gate ActionGate, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		gate:    gate,
		logger:  logger,
	}
}

// --- Request DTOs ---

// BeginCheckoutRequest is the JSON request body for starting a checkout.
type BeginCheckoutRequest struct {
	Source       string          `json:"source" validate:"required,oneof=product cart"`
	Product      *ProductRequest `json:"product" validate:"required_if=Source product"`
	SizeSelected string          `json:"size_selected" validate:"required_if=Source product"`
	Quantity     int             `json:"quantity" validate:"omitempty,gte=1,lte=99"`
	Email        string          `json:"email" validate:"omitempty,email"`
}

// ProductRequest is the product page snapshot as the catalog holds it,
// with decimal prices.
type ProductRequest struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Sizes []SizeRequest `json:"sizes" validate:"dive"`
}

// SizeRequest is one size option with decimal prices.
type SizeRequest struct {
	Weight   domain.SizeWeight `json:"weight"`
	Price    float64           `json:"price" validate:"gte=0"`
	OldPrice float64           `json:"old_price" validate:"gte=0"`
	Servings int               `json:"servings"`
}

// toDomain converts the snapshot to prices in cents.
func (p *ProductRequest) toDomain() *domain.Product {
	if p == nil {
		return nil
	}
	sizes := make([]domain.SizeOption, 0, len(p.Sizes))
	for _, s := range p.Sizes {
		sizes = append(sizes, domain.SizeOption{
			Weight:   s.Weight,
			Price:    domain.CentsFromAmount(s.Price),
			OldPrice: domain.CentsFromAmount(s.OldPrice),
			Servings: s.Servings,
		})
	}
	return &domain.Product{ID: p.ID, Name: p.Name, Sizes: sizes}
}

// SetTermsRequest is the JSON request body for the terms checkbox.
type SetTermsRequest struct {
	Accepted *bool `json:"accepted" validate:"required"`
}

// --- Response DTOs ---

// WizardResponse is a wizard together with its formatted totals.
type WizardResponse struct {
	*domain.Wizard
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

func newWizardResponse(w *domain.Wizard) WizardResponse {
	return WizardResponse{
		Wizard:   w,
		Subtotal: domain.FormatAmount(w.Subtotal()),
		Shipping: domain.FormatAmount(domain.ShippingAmount),
		Total:    domain.FormatAmount(w.Total()),
	}
}

// RedirectResponse tells the storefront where to send the shopper.
type RedirectResponse struct {
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
}

// GateResponse reports a gated action that did not produce a wizard.
type GateResponse struct {
	Outcome       auth.Outcome `json:"outcome"`
	LoginRequired bool         `json:"login_required"`
}

// --- Handlers ---

// BeginCheckout handles POST /api/v1/checkout/begin. Anonymous callers get
// 202 with login_required and the action is replayed by /auth/resume.
func (h *CheckoutHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req BeginCheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	cmd, err := domain.NewCommand(domain.CommandBeginCheckout, domain.BeginCheckoutPayload{
		Source:       domain.CheckoutSource(req.Source),
		Product:      req.Product.toDomain(),
		SizeSelected: req.SizeSelected,
		Quantity:     req.Quantity,
		Email:        req.Email,
	}, timeNow())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.gate.RunOrDefer(ctx, logger.VisitorIDFromContext(ctx), auth.PrincipalFromContext(ctx), cmd)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeGateResult(w, res)
}

// GetCheckout handles GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	wiz, err := h.service.Get(r.Context(), p.UserID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newWizardResponse(wiz))
}

// Continue handles POST /api/v1/checkout/{id}/continue. Invalid delivery
// fields are answered with 422 and the per-field messages.
func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	wiz, err := h.service.Continue(r.Context(), p.UserID, id)
	if err != nil {
		var invalid *service.DeliveryInvalidError
		if errors.As(err, &invalid) {
			httputil.WriteFieldErrors(w, http.StatusUnprocessableEntity, invalid.Fields)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newWizardResponse(wiz))
}

// Back handles POST /api/v1/checkout/{id}/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	wiz, err := h.service.Back(r.Context(), p.UserID, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newWizardResponse(wiz))
}

// UpdateDelivery handles PUT /api/v1/checkout/{id}/delivery. Only the
// fields present in the body are changed.
func (h *CheckoutHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var patch domain.AddressPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	wiz, err := h.service.UpdateDelivery(r.Context(), p.UserID, id, patch)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newWizardResponse(wiz))
}

// SetTerms handles PUT /api/v1/checkout/{id}/terms
func (h *CheckoutHandler) SetTerms(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SetTermsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	wiz, err := h.service.SetTermsAccepted(r.Context(), p.UserID, id, *req.Accepted)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newWizardResponse(wiz))
}

// CompletePayment handles POST /api/v1/checkout/{id}/complete. The route
// needs a bearer token, so callers are always scripts; they get the gateway
// URL in the body and navigate to it themselves.
func (h *CheckoutHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	intent, err := h.service.CompletePayment(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, RedirectResponse{
		OrderID:     intent.OrderID,
		RedirectURL: intent.RedirectURL,
	})
}

// CloseCheckout handles DELETE /api/v1/checkout/{id}
func (h *CheckoutHandler) CloseCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := wizardID(w, r)
	if !ok {
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	if err := h.service.Close(r.Context(), p.UserID, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// wizardID reads the {id} path parameter. Wizard ids are UUIDs.
func wizardID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return "", false
	}
	return id.String(), true
}

// writeGateResult renders a gate outcome: 201 with the wizard when the
// action ran, 202 when it waits for login, 200 when nothing was pending.
func writeGateResult(w http.ResponseWriter, res auth.Result) {
	switch res.Outcome {
	case auth.OutcomeExecuted:
		if wiz, ok := res.Value.(*domain.Wizard); ok {
			httputil.WriteData(w, http.StatusCreated, newWizardResponse(wiz))
			return
		}
		httputil.WriteData(w, http.StatusOK, res.Value)
	case auth.OutcomeLoginRequired:
		httputil.WriteData(w, http.StatusAccepted, GateResponse{Outcome: res.Outcome, LoginRequired: true})
	default:
		httputil.WriteData(w, http.StatusOK, GateResponse{Outcome: res.Outcome})
	}
}
