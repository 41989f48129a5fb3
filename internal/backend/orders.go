package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// OrderAddress is the normalized delivery address sent with an order.
type OrderAddress struct {
	Name                 string `json:"name,omitempty"`
	Email                string `json:"email,omitempty"`
	Street               string `json:"street"`
	City                 string `json:"city"`
	State                string `json:"state"`
	Country              string `json:"country"`
	ZipCode              int    `json:"zipCode"`
	Phone                string `json:"phone"`
	DeliveryInstructions string `json:"deliveryInstructions,omitempty"`
}

// OrderItem is one line of a multi-item order.
type OrderItem struct {
	ProductID    string  `json:"productId"`
	SizeSelected string  `json:"sizeSelected"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
}

// CreateOrderRequest is the create-order body. The top-level product fields
// describe the first item; Items lists all of them.
type CreateOrderRequest struct {
	ProductID    string       `json:"productId"`
	SizeSelected string       `json:"sizeSelected"`
	Quantity     int          `json:"quantity"`
	Items        []OrderItem  `json:"items,omitempty"`
	Address      OrderAddress `json:"address"`
	Amount       float64      `json:"amount"`
}

// Order is an order payload as returned by the backend. Raw keeps the full
// document for rendering.
type Order struct {
	ID            string
	OrderStatus   string
	PaymentStatus string
	Raw           json.RawMessage
}

type orderFields struct {
	MongoID       string `json:"_id"`
	OrderID       string `json:"orderId"`
	ID            string `json:"id"`
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
}

func (f orderFields) id() string {
	switch {
	case f.MongoID != "":
		return f.MongoID
	case f.OrderID != "":
		return f.OrderID
	default:
		return f.ID
	}
}

// parseOrder decodes an order document. It must be a JSON object that
// carries an id.
func parseOrder(raw json.RawMessage) (*Order, error) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: order is not an object", ErrMalformedResponse)
	}
	var f orderFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if f.id() == "" {
		return nil, fmt.Errorf("%w: order has no id", ErrMalformedResponse)
	}
	return &Order{
		ID:            f.id(),
		OrderStatus:   f.OrderStatus,
		PaymentStatus: f.PaymentStatus,
		Raw:           raw,
	}, nil
}

// CreateOrder creates an order and returns its id.
func (cl *Client) CreateOrder(ctx context.Context, token, idempotencyKey string, req CreateOrderRequest) (string, error) {
	env, err := cl.do(ctx, call{
		method:         http.MethodPost,
		path:           pathOrders,
		token:          token,
		idempotencyKey: idempotencyKey,
		body:           req,
		service:        "orders",
	})
	if err != nil {
		return "", err
	}

	var f orderFields
	if len(env.Data) > 0 && env.Data[0] == '{' {
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return "", fmt.Errorf("decode created order: %w: %w", ErrMalformedResponse, err)
		}
	}
	id := f.MongoID
	if id == "" {
		id = f.OrderID
	}
	if id == "" {
		return "", fmt.Errorf("orders: %w: missing order id", ErrMalformedResponse)
	}
	return id, nil
}

// GetOrder fetches an order by id.
func (cl *Client) GetOrder(ctx context.Context, token, orderID string) (*Order, error) {
	env, err := cl.do(ctx, call{
		method:  http.MethodGet,
		path:    pathOrders + "/" + url.PathEscape(orderID),
		token:   token,
		service: "orders",
	})
	if err != nil {
		return nil, err
	}
	return parseOrder(env.Data)
}
