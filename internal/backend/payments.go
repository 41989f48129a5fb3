package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// CreatePaymentRequest is the create-payment body.
type CreatePaymentRequest struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// CreatePayment creates a payment intent for an order and returns the
// gateway URL the shopper is redirected to.
func (cl *Client) CreatePayment(ctx context.Context, token, idempotencyKey string, req CreatePaymentRequest) (string, error) {
	env, err := cl.do(ctx, call{
		method:         http.MethodPost,
		path:           pathPayments,
		token:          token,
		idempotencyKey: idempotencyKey,
		body:           req,
		service:        "payments",
	})
	if err != nil {
		return "", err
	}

	redirect := env.PaymentURL
	if redirect == "" && len(env.Data) > 0 && env.Data[0] == '{' {
		var data struct {
			PaymentURL string `json:"paymentUrl"`
		}
		if json.Unmarshal(env.Data, &data) == nil {
			redirect = data.PaymentURL
		}
	}
	if redirect == "" {
		return "", fmt.Errorf("payments: %w: missing paymentUrl", ErrMalformedResponse)
	}
	if u, err := url.Parse(redirect); err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("payments: %w: paymentUrl %q is not absolute", ErrMalformedResponse, redirect)
	}
	return redirect, nil
}

// VerifyPayment asks the backend to reconcile the gateway state of an order
// and returns the resulting order. The payload lives under data.order.
func (cl *Client) VerifyPayment(ctx context.Context, token, orderID string, test bool) (*Order, error) {
	var query url.Values
	if test {
		query = url.Values{"test": []string{"true"}}
	}
	env, err := cl.do(ctx, call{
		method:  http.MethodGet,
		path:    pathVerifyPayment + url.PathEscape(orderID),
		query:   query,
		token:   token,
		service: "payments",
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Order json.RawMessage `json:"order"`
	}
	if len(env.Data) == 0 || env.Data[0] != '{' {
		return nil, fmt.Errorf("payments: %w: verify data is not an object", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("payments: %w: %w", ErrMalformedResponse, err)
	}
	return parseOrder(data.Order)
}
