package payment

import (
	"context"
	"math"

	"storefront-service/internal/entity"
)

// Options mirrors the configuration object the hosted checkout widget takes.
type Options struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color,omitempty"`
}

// Checkout is one payment attempt for a created order.
type Checkout struct {
	Options      Options `json:"options"`
	LocalOrderID string  `json:"local_order_id"`
	QuoteID      string  `json:"quote_id"`
	UserID       string  `json:"user_id"`
}

// Result is the single completion of a payment attempt.
type Result struct {
	PaymentID   string `json:"payment_id,omitempty"`
	Signature   string `json:"signature,omitempty"`
	Description string `json:"description,omitempty"`
	Failed      bool   `json:"failed"`
}

func Succeeded(paymentID, signature string) Result {
	return Result{PaymentID: paymentID, Signature: signature}
}

func Failed(description string) Result {
	if description == "" {
		description = "Payment failed"
	}
	return Result{Description: description, Failed: true}
}

// Gateway opens a payment attempt and blocks until it completes or ctx ends.
type Gateway interface {
	Open(ctx context.Context, c Checkout) (Result, error)
}

// Merchant holds the static widget settings.
type Merchant struct {
	Key        string
	Name       string
	ThemeColor string
}

// NewCheckout builds the widget configuration for a created order.
func (m Merchant) NewCheckout(q entity.Quote, order entity.Order, d entity.PaymentDescriptor) Checkout {
	amount := d.Amount
	if amount == 0 {
		amount = int64(math.Round(order.TotalAmount * 100))
	}
	description := "Quote checkout"
	if order.OrderNumber != "" {
		description = "Order " + order.OrderNumber
	}
	return Checkout{
		Options: Options{
			Key:         m.Key,
			Amount:      amount,
			Currency:    d.Currency,
			Name:        m.Name,
			Description: description,
			OrderID:     d.ID,
			Prefill: Prefill{
				Name:    q.UserName,
				Email:   q.UserEmail,
				Contact: q.UserPhone,
			},
			Theme: Theme{Color: m.ThemeColor},
		},
		LocalOrderID: order.ID,
		QuoteID:      q.ID,
		UserID:       q.UserID,
	}
}
