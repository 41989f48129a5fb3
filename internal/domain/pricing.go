package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ShippingAmount is the shipping charge in cents. Shipping is always free.
const ShippingAmount int64 = 0

// SizeWeight identifies a size option. Product feeds send it either as a JSON
// number (30) or a string ("30"); both decode to the same value.
type SizeWeight string

// UnmarshalJSON accepts both numeric and string weights.
func (w *SizeWeight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = SizeWeight(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("size weight must be a string or number: %w", err)
	}
	*w = SizeWeight(n.String())
	return nil
}

// SizeOption is one purchasable size of a product. Prices are in cents.
type SizeOption struct {
	Weight   SizeWeight `json:"weight"`
	Price    int64      `json:"price"`
	OldPrice int64      `json:"old_price,omitempty"`
	Servings int        `json:"servings,omitempty"`
}

// LineItem is one product+size+quantity entry being purchased. It carries the
// product's size list so prices resolve against the snapshot taken when
// checkout began.
type LineItem struct {
	ProductID    string       `json:"product_id"`
	ProductName  string       `json:"product_name,omitempty"`
	Sizes        []SizeOption `json:"sizes"`
	SizeSelected string       `json:"size_selected"`
	Quantity     int          `json:"quantity"`
}

// ResolveSize returns the size option whose weight matches selector.
func ResolveSize(sizes []SizeOption, selector string) (SizeOption, bool) {
	selector = strings.TrimSpace(selector)
	for _, s := range sizes {
		if string(s.Weight) == selector {
			return s, true
		}
	}
	return SizeOption{}, false
}

// UnitPrice returns the price of the selected size, if it resolves.
func (li LineItem) UnitPrice() (int64, bool) {
	s, ok := ResolveSize(li.Sizes, li.SizeSelected)
	if !ok {
		return 0, false
	}
	return s.Price, true
}

// LineTotal is price × quantity, or 0 when the size does not resolve.
func (li LineItem) LineTotal() int64 {
	price, ok := li.UnitPrice()
	if !ok {
		return 0
	}
	return price * int64(li.Quantity)
}

// Subtotal sums price × quantity over items whose size resolves. Unresolved
// items contribute nothing.
func Subtotal(items []LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}
	return subtotal
}

// Total is the amount charged for items.
func Total(items []LineItem) int64 {
	return Subtotal(items) + ShippingAmount
}

// ItemCount sums quantities across items.
func ItemCount(items []LineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// ValidateLineItems checks the snapshot invariants: at least one item, every
// quantity ≥ 1 and every listed price > 0.
func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyCheckout
	}
	for i, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("item %d: product id is required: %w", i, ErrInvalidLineItem)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %d: %w", i, ErrInvalidQuantity)
		}
		for _, s := range item.Sizes {
			if s.Price <= 0 {
				return fmt.Errorf("item %d: size %s: price must be greater than 0: %w", i, s.Weight, ErrInvalidLineItem)
			}
		}
	}
	return nil
}

// CentsFromAmount converts a decimal amount (89.99) to cents (8999).
func CentsFromAmount(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// AmountFromCents converts cents to the decimal amount sent to the backend.
func AmountFromCents(cents int64) float64 {
	return float64(cents) / 100
}

// FormatAmount renders cents with two decimals, e.g. 17998 -> "179.98".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
