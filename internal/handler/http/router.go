package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Checkout      *CheckoutHandler
	Auth          *AuthHandler
	Cart          *CartHandler
	Payment       *PaymentHandler
	Health        *health.Handler
	ValidateToken middleware.TokenValidator
	SubmitLimiter *middleware.RateLimiter
	CORS          middleware.CORSConfig
	ServiceName   string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Visitor())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	optionalAuth := middleware.OptionalAuth(cfg.ValidateToken)
	requireAuth := middleware.RequireAuth(cfg.ValidateToken)

	r.With(optionalAuth).Get("/payment/return", cfg.Payment.Return)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(optionalAuth).Post("/checkout/begin", cfg.Checkout.BeginCheckout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/auth/resume", cfg.Auth.Resume)
			r.Get("/cart/badge", cfg.Cart.Badge)

			r.Route("/checkout/{id}", func(r chi.Router) {
				r.Get("/", cfg.Checkout.GetCheckout)
				r.Delete("/", cfg.Checkout.CloseCheckout)
				r.Post("/continue", cfg.Checkout.Continue)
				r.Post("/back", cfg.Checkout.Back)
				r.Put("/delivery", cfg.Checkout.UpdateDelivery)
				r.Put("/terms", cfg.Checkout.SetTerms)

				complete := http.HandlerFunc(cfg.Checkout.CompletePayment)
				if cfg.SubmitLimiter != nil {
					r.Method(http.MethodPost, "/complete", cfg.SubmitLimiter.Handler(complete))
				} else {
					r.Method(http.MethodPost, "/complete", complete)
				}
			})
		})
	})

	return r
}
