package entity

import "time"

const (
	EventQuoteAccepted = "accepted"
	EventQuoteRejected = "rejected"
	EventOrderCreated  = "order_created"
	EventOrderPaid     = "paid"
	EventPaymentFailed = "payment_failed"
	EventVerifyFailed  = "verify_failed"
)

// CheckoutEvent is published for every settled checkout transition.
type CheckoutEvent struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	QuoteID        string    `json:"quote_id"`
	UserID         string    `json:"user_id"`
	OrderID        string    `json:"order_id,omitempty"`
	GatewayOrderID string    `json:"gateway_order_id,omitempty"`
	Stage          string    `json:"stage"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
