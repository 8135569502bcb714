package service

import (
	"errors"

	"storefront-service/internal/entity"
)

var (
	ErrNotRespondable     = errors.New("quote is not awaiting a decision")
	ErrNotAccepted        = errors.New("quote is not awaiting checkout")
	ErrNoValidProducts    = errors.New("no valid products in quote")
	ErrCheckoutCancelled  = errors.New("checkout cancelled")
	ErrEmptyAddress       = errors.New("shipping address is required")
	ErrInFlight           = errors.New("another operation on this quote is in progress")
	ErrBackend            = errors.New("backend request failed")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrPaymentAbandoned   = errors.New("payment not completed")
	ErrVerificationFailed = errors.New("payment verification failed")
)

// FlowError is a failure surfaced to the user. Message is safe to display;
// errors.Is matches the sentinel in Kind.
type FlowError struct {
	Kind    error
	Message string
	Err     error

	// Set when Kind is ErrCheckoutCancelled because some products were dropped.
	Kept    []entity.QuoteItem
	Dropped []entity.QuoteItem
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FlowError) Is(target error) bool {
	return target == e.Kind
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func flowError(kind error, message string, err error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Err: err}
}
