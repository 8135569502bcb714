package service

import (
	"storefront-service/internal/entity"
	"storefront-service/internal/payment"
)

// Stage is where a quote sits in the checkout flow as the user sees it.
type Stage string

const (
	StageViewing          Stage = "viewing"
	StageDeciding         Stage = "deciding"
	StageAwaitingCheckout Stage = "accepted_awaiting_checkout"
	StageAwaitingPayment  Stage = "order_created_awaiting_payment"
	StagePaid             Stage = "paid"
	StagePaymentFailed    Stage = "payment_failed"
	StageRejected         Stage = "rejected"
	StageCheckedOut       Stage = "checked_out"
)

// State is the checkout view-model for one quote.
type State struct {
	QuoteID        string            `json:"quote_id"`
	Stage          Stage             `json:"stage"`
	OrderID        string            `json:"order_id,omitempty"`
	GatewayOrderID string            `json:"gateway_order_id,omitempty"`
	Payment        *payment.Checkout `json:"payment,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Action is a tagged state transition input.
type Action interface {
	isAction()
}

type (
	QuoteLoaded        struct{ Quote entity.Quote }
	Accepted           struct{}
	Rejected           struct{}
	OrderCreated       struct{ Checkout payment.Checkout }
	PaymentSucceeded   struct{ PaymentID string }
	PaymentFailed      struct{ Description string }
	VerificationFailed struct{ Message string }
	Failed             struct{ Message string }
)

func (QuoteLoaded) isAction()        {}
func (Accepted) isAction()           {}
func (Rejected) isAction()           {}
func (OrderCreated) isAction()       {}
func (PaymentSucceeded) isAction()   {}
func (PaymentFailed) isAction()      {}
func (VerificationFailed) isAction() {}
func (Failed) isAction()             {}

// StateFromQuote derives the stage the backend's view of q implies.
func StateFromQuote(q entity.Quote) State {
	s := State{QuoteID: q.ID, OrderID: q.OrderID}
	switch {
	case q.CheckedOut():
		s.Stage = StageCheckedOut
	case q.Status == entity.QuoteStatusResponded:
		s.Stage = StageDeciding
	case q.Status == entity.QuoteStatusAccepted:
		s.Stage = StageAwaitingCheckout
	case q.Status == entity.QuoteStatusRejected:
		s.Stage = StageRejected
	default:
		s.Stage = StageViewing
	}
	return s
}

// CanCheckout reports whether a checkout may start from s.
func (s State) CanCheckout() bool {
	return s.Stage == StageAwaitingCheckout || s.Stage == StagePaymentFailed
}

// Reduce applies a to s. Transitions that do not apply to the current stage
// leave s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case QuoteLoaded:
		next := StateFromQuote(a.Quote)
		pending := a.Quote.OrderID == "" || a.Quote.OrderID == s.OrderID
		if s.QuoteID == a.Quote.ID && pending && a.Quote.Status == entity.QuoteStatusAccepted {
			switch s.Stage {
			case StageAwaitingPayment, StagePaymentFailed:
				// a payment attempt is still open or retryable locally
				return s
			}
		}
		next.Error = s.Error
		return next

	case Accepted:
		if s.Stage != StageDeciding {
			return s
		}
		s.Stage = StageAwaitingCheckout
		s.Error = ""

	case Rejected:
		if s.Stage != StageDeciding {
			return s
		}
		s.Stage = StageRejected
		s.Error = ""

	case OrderCreated:
		// bulk quotes chain straight from deciding into checkout
		if !s.CanCheckout() && s.Stage != StageDeciding {
			return s
		}
		c := a.Checkout
		s.Stage = StageAwaitingPayment
		s.OrderID = c.LocalOrderID
		s.GatewayOrderID = c.Options.OrderID
		s.Payment = &c
		s.Error = ""

	case PaymentSucceeded:
		if s.Stage != StageAwaitingPayment {
			return s
		}
		s.Stage = StagePaid
		s.Payment = nil
		s.Error = ""

	case PaymentFailed:
		if s.Stage != StageAwaitingPayment {
			return s
		}
		s.Stage = StagePaymentFailed
		s.Payment = nil
		s.Error = a.Description

	case VerificationFailed:
		if s.Stage != StageAwaitingPayment {
			return s
		}
		s.Payment = nil
		s.Error = a.Message

	case Failed:
		s.Error = a.Message
	}
	return s
}

const (
	ActionAccept    = "accept"
	ActionReject    = "reject"
	ActionCheckout  = "checkout"
	ActionViewOrder = "view_order"
)

// QuoteActions lists the controls a dashboard shows for q.
func QuoteActions(q entity.Quote) []string {
	switch {
	case q.CheckedOut():
		return []string{ActionViewOrder}
	case q.Status == entity.QuoteStatusResponded:
		return []string{ActionAccept, ActionReject}
	case q.AwaitingCheckout():
		return []string{ActionCheckout}
	}
	return nil
}
