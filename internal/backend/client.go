// Package backend is the HTTP client for the commerce backend that owns
// orders, payments and carts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

// Backend endpoints.
const (
	pathOrders        = "/api/orders"
	pathPayments      = "/api/payments"
	pathVerifyPayment = "/api/payments/verify/"
	pathCart          = "/api/cart"
)

// IdempotencyHeader carries the submission attempt key on create calls.
const IdempotencyHeader = "Idempotency-Key"

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 1 << 20

var (
	// ErrRejected is returned when the backend answers success:false.
	ErrRejected = errors.New("backend rejected the request")
	// ErrMalformedResponse is returned for 2xx answers missing required data.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback replaces the raw breaker error with a retryable
// 503 while the backend circuit is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("commerce backend is temporarily unavailable, please retry shortly")
}

// Client calls the commerce backend.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// envelope is the backend's response wrapper.
type envelope struct {
	Success    *bool           `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	PaymentURL string          `json:"paymentUrl"`
}

// succeeded reports whether the envelope signals success. A missing flag on
// a 2xx response counts as success.
func (e envelope) succeeded() bool {
	return e.Success == nil || *e.Success
}

// call is a request to the backend.
type call struct {
	method         string
	path           string
	query          url.Values
	token          string
	idempotencyKey string
	body           any
	service        string
}

// do sends c and decodes the envelope of a 2xx answer. Non-2xx answers are
// translated by httpclient.ParseResponseError.
func (cl *Client) do(ctx context.Context, c call) (*envelope, error) {
	var body io.Reader = http.NoBody
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.service, err)
		}
		body = bytes.NewReader(data)
	}

	target := cl.baseURL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, c.idempotencyKey)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := cl.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", c.service, err)
	}
	cl.logger.DebugContext(ctx, "backend call",
		slog.String("method", c.method),
		slog.String("path", c.path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if httpclient.IsClientError(resp.StatusCode) {
			cl.logger.WarnContext(ctx, "backend refused request",
				slog.String("service", c.service),
				slog.String("path", c.path),
				slog.Int("status", resp.StatusCode),
			)
		}
		return nil, httpclient.ParseResponseError(resp, c.service)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w: %w", c.service, ErrMalformedResponse, err)
	}
	if !env.succeeded() {
		return nil, &RejectedError{Service: c.service, Message: env.Message}
	}
	return &env, nil
}

// RejectedError is a success:false answer. It matches ErrRejected.
type RejectedError struct {
	Service string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Service, ErrRejected)
	}
	return fmt.Sprintf("%s: %s: %s", e.Service, ErrRejected, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

// RejectionMessage returns the backend's reason from a rejection, or "".
func RejectionMessage(err error) string {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Message
	}
	return ""
}
