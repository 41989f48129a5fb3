package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandKind names a deferrable action.
type CommandKind string

// CommandBeginCheckout opens a checkout wizard.
const CommandBeginCheckout CommandKind = "begin_checkout"

// Command is a deferred action as data: a kind plus its JSON payload.
type Command struct {
	Kind      CommandKind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewCommand encodes payload into a command of the given kind.
func NewCommand(kind CommandKind, payload any, now time.Time) (Command, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Command{Kind: kind, Payload: raw, CreatedAt: now}, nil
}

// Decode unmarshals the payload into dst.
func (c Command) Decode(dst any) error {
	if err := json.Unmarshal(c.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", c.Kind, err)
	}
	return nil
}

// CheckoutSource is where a checkout was started from.
type CheckoutSource string

// Checkout sources.
const (
	SourceProduct CheckoutSource = "product"
	SourceCart    CheckoutSource = "cart"
)

// Product is the snapshot of a product page taken when "buy now" is pressed.
type Product struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Sizes []SizeOption `json:"sizes"`
}

// BeginCheckoutPayload is the payload of CommandBeginCheckout. Product
// sources carry their snapshot; cart sources read the cart when the command
// runs.
type BeginCheckoutPayload struct {
	Source       CheckoutSource `json:"source"`
	Product      *Product       `json:"product,omitempty"`
	SizeSelected string         `json:"size_selected,omitempty"`
	Quantity     int            `json:"quantity,omitempty"`
	Email        string         `json:"email,omitempty"`
}

// LineItem builds the single line item of a product-sourced checkout.
func (p BeginCheckoutPayload) LineItem() (LineItem, error) {
	if p.Product == nil {
		return LineItem{}, fmt.Errorf("product snapshot is required: %w", ErrInvalidLineItem)
	}
	return LineItem{
		ProductID:    p.Product.ID,
		ProductName:  p.Product.Name,
		Sizes:        p.Product.Sizes,
		SizeSelected: p.SizeSelected,
		Quantity:     p.Quantity,
	}, nil
}
