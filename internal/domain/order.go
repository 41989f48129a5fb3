package domain

import "encoding/json"

// Order and payment statuses shown on the return page.
const (
	OrderStatusConfirmed   = "Confirmed"
	OrderStatusUnconfirmed = "Unconfirmed"
	PaymentStatusCompleted = "Completed"
	PaymentStatusPending   = "Pending"
)

// VerificationSource records which tier produced an OrderView.
type VerificationSource string

// Verification tiers.
const (
	VerifiedByGateway VerificationSource = "gateway"
	VerifiedByOrder   VerificationSource = "order"
	VerifiedFallback  VerificationSource = "fallback"
)

// OrderView is what the return page renders after the gateway redirect.
// Verified is false only for synthesized views.
type OrderView struct {
	ID            string             `json:"id"`
	OrderStatus   string             `json:"orderStatus"`
	PaymentStatus string             `json:"paymentStatus"`
	Test          bool               `json:"test,omitempty"`
	Source        VerificationSource `json:"source"`
	Verified      bool               `json:"verified"`
	Order         json.RawMessage    `json:"order,omitempty"`
}

// PaymentIntent is the result of a successful order+payment protocol.
type PaymentIntent struct {
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	RedirectURL string `json:"redirect_url"`
}

// CartBadge is the cart summary shown in the header.
type CartBadge struct {
	Items []LineItem `json:"items"`
	Count int        `json:"count"`
}
