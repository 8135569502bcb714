package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"storefront-service/internal/backend"
	"storefront-service/internal/entity"
	"storefront-service/internal/payment"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Backend is the subset of the REST backend the checkout flow calls.
type Backend interface {
	AcceptQuote(ctx context.Context, id string) (*entity.Quote, error)
	RejectQuote(ctx context.Context, id string) (*entity.Quote, error)
	CreateOrder(ctx context.Context, req entity.CreateOrderRequest) (*entity.CreateOrderResponse, error)
	VerifyOrder(ctx context.Context, req entity.VerifyOrderRequest) error
}

// Prompter collects the user's answers during checkout.
type Prompter interface {
	// ConfirmPartial asks whether to continue with only the kept items.
	ConfirmPartial(ctx context.Context, kept, dropped []entity.QuoteItem) bool
	// ShippingAddress returns the formatted shipping address.
	ShippingAddress(ctx context.Context) (string, error)
}

// Refresher re-fetches dashboard data after a mutation.
type Refresher interface {
	RefreshQuotes(ctx context.Context, actor Actor) error
	RefreshAll(ctx context.Context, actor Actor) error
}

// Observer is told about every checkout state change.
type Observer interface {
	CheckoutChanged(actor Actor, state State)
}

// Actor is the signed-in user driving a flow.
type Actor struct {
	UserID string
	Role   entity.Role
}

// CheckoutService drives quotes from a decision through to a paid order.
type CheckoutService struct {
	backend   Backend
	gateway   payment.Gateway
	merchant  payment.Merchant
	guard     Guard
	refresher Refresher
	observer  Observer
	publisher Publisher
}

// NewCheckoutService creates a new instance of CheckoutService. refresher,
// observer and publisher may be nil.
func NewCheckoutService(backend Backend, gateway payment.Gateway, merchant payment.Merchant, guard Guard, refresher Refresher, observer Observer, publisher Publisher) *CheckoutService {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	return &CheckoutService{
		backend:   backend,
		gateway:   gateway,
		merchant:  merchant,
		guard:     guard,
		refresher: refresher,
		observer:  observer,
		publisher: publisher,
	}
}

// Accept accepts a responded quote. Bulk-order quotes continue straight into
// checkout using q as given; standard quotes stop awaiting checkout.
func (s *CheckoutService) Accept(ctx context.Context, actor Actor, q entity.Quote, prompter Prompter) (State, error) {
	state := StateFromQuote(q)
	if q.Status != entity.QuoteStatusResponded || q.CheckedOut() {
		return state, ErrNotRespondable
	}

	release, err := s.acquire(ctx, q.ID)
	if err != nil {
		return state, err
	}
	defer release()

	if _, err := s.backend.AcceptQuote(ctx, q.ID); err != nil {
		logger.Error().Err(err).Msgf("Error accepting quote %s", q.ID)
		return s.fail(actor, state, backendError(err, "Failed to accept quote"))
	}

	state = s.apply(actor, state, Accepted{})
	s.publish(ctx, actor, state, entity.EventQuoteAccepted, "")
	s.refreshQuotes(ctx, actor)

	if !q.IsBulkOrder() {
		return state, nil
	}
	return s.checkout(ctx, actor, q, state, prompter)
}

// Reject rejects a responded quote.
func (s *CheckoutService) Reject(ctx context.Context, actor Actor, q entity.Quote) (State, error) {
	state := StateFromQuote(q)
	if q.Status != entity.QuoteStatusResponded || q.CheckedOut() {
		return state, ErrNotRespondable
	}

	release, err := s.acquire(ctx, q.ID)
	if err != nil {
		return state, err
	}
	defer release()

	if _, err := s.backend.RejectQuote(ctx, q.ID); err != nil {
		logger.Error().Err(err).Msgf("Error rejecting quote %s", q.ID)
		return s.fail(actor, state, backendError(err, "Failed to reject quote"))
	}

	state = s.apply(actor, state, Rejected{})
	s.publish(ctx, actor, state, entity.EventQuoteRejected, "")
	s.refreshQuotes(ctx, actor)
	return state, nil
}

// Checkout turns an accepted quote into a paid order. A quote already linked
// to an order is routed to that order without any calls.
func (s *CheckoutService) Checkout(ctx context.Context, actor Actor, q entity.Quote, prompter Prompter) (State, error) {
	state := StateFromQuote(q)
	if q.CheckedOut() {
		return state, nil
	}
	if !q.AwaitingCheckout() {
		return state, ErrNotAccepted
	}

	release, err := s.acquire(ctx, q.ID)
	if err != nil {
		return state, err
	}
	defer release()

	return s.checkout(ctx, actor, q, state, prompter)
}

func (s *CheckoutService) checkout(ctx context.Context, actor Actor, q entity.Quote, state State, prompter Prompter) (State, error) {
	kept, dropped := SplitResolvable(q.Items)
	if len(kept) == 0 {
		return s.fail(actor, state, flowError(ErrNoValidProducts, "None of the products in this quote are available anymore.", nil))
	}

	if len(dropped) > 0 && !prompter.ConfirmPartial(ctx, kept, dropped) {
		fe := flowError(ErrCheckoutCancelled, "Some products in this quote are no longer available.", nil)
		fe.Kept = kept
		fe.Dropped = dropped
		return state, fe
	}

	shippingAddress, err := prompter.ShippingAddress(ctx)
	if err != nil {
		return s.fail(actor, state, flowError(ErrEmptyAddress, "Please provide a valid shipping address.", err))
	}
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return s.fail(actor, state, flowError(ErrEmptyAddress, "Please provide a valid shipping address.", nil))
	}

	resp, err := s.backend.CreateOrder(ctx, entity.CreateOrderRequest{
		Products:        AllocatePrices(kept, q.TotalPrice()),
		TotalAmount:     q.TotalPrice(),
		QuoteID:         q.ID,
		ShippingAddress: shippingAddress,
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error creating order for quote %s", q.ID)
		return s.fail(actor, state, backendError(err, "Failed to create order"))
	}

	pay := s.merchant.NewCheckout(q, resp.Order, resp.Payment)
	pay.UserID = actor.UserID
	state = s.apply(actor, state, OrderCreated{Checkout: pay})
	s.publish(ctx, actor, state, entity.EventOrderCreated, "")

	result, err := s.gateway.Open(ctx, pay)
	if err != nil {
		logger.Warn().Err(err).Msgf("Payment for order %s not completed", resp.Order.ID)
		state = s.apply(actor, state, PaymentFailed{Description: "Payment was not completed."})
		s.publish(ctx, actor, state, entity.EventPaymentFailed, err.Error())
		return state, flowError(ErrPaymentAbandoned, "Payment was not completed.", err)
	}
	if result.Failed {
		logger.Warn().Msgf("Payment for order %s failed: %s", resp.Order.ID, result.Description)
		state = s.apply(actor, state, PaymentFailed{Description: result.Description})
		s.publish(ctx, actor, state, entity.EventPaymentFailed, result.Description)
		return state, flowError(ErrPaymentFailed, result.Description, nil)
	}

	err = s.backend.VerifyOrder(ctx, entity.VerifyOrderRequest{
		OrderID:           resp.Order.ID,
		RazorpayPaymentID: result.PaymentID,
		RazorpaySignature: result.Signature,
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error verifying payment for order %s", resp.Order.ID)
		state = s.apply(actor, state, VerificationFailed{Message: "Payment verification failed"})
		s.publish(ctx, actor, state, entity.EventVerifyFailed, err.Error())
		return state, flowError(ErrVerificationFailed, "Payment verification failed", err)
	}

	state = s.apply(actor, state, PaymentSucceeded{PaymentID: result.PaymentID})
	s.publish(ctx, actor, state, entity.EventOrderPaid, "")
	if s.refresher != nil {
		if err := s.refresher.RefreshAll(ctx, actor); err != nil {
			logger.Warn().Err(err).Msgf("Error refreshing dashboard for user %s", actor.UserID)
		}
	}
	return state, nil
}

func (s *CheckoutService) acquire(ctx context.Context, quoteID string) (func(), error) {
	release, err := s.guard.Acquire(ctx, quoteID)
	if err == nil || errors.Is(err, ErrInFlight) {
		return release, err
	}
	logger.Error().Err(err).Msgf("Error taking in-flight flag for quote %s", quoteID)
	return nil, flowError(ErrBackend, "Service temporarily unavailable", err)
}

func (s *CheckoutService) apply(actor Actor, state State, a Action) State {
	state = Reduce(state, a)
	if s.observer != nil {
		s.observer.CheckoutChanged(actor, state)
	}
	return state
}

func (s *CheckoutService) fail(actor Actor, state State, fe *FlowError) (State, error) {
	state = s.apply(actor, state, Failed{Message: fe.Message})
	return state, fe
}

func (s *CheckoutService) refreshQuotes(ctx context.Context, actor Actor) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.RefreshQuotes(ctx, actor); err != nil {
		logger.Warn().Err(err).Msgf("Error refreshing quotes for user %s", actor.UserID)
	}
}

func (s *CheckoutService) publish(ctx context.Context, actor Actor, state State, kind, message string) {
	if s.publisher == nil {
		return
	}
	event := entity.CheckoutEvent{
		ID:             uuid.NewString(),
		Kind:           kind,
		QuoteID:        state.QuoteID,
		UserID:         actor.UserID,
		OrderID:        state.OrderID,
		GatewayOrderID: state.GatewayOrderID,
		Stage:          string(state.Stage),
		Message:        message,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for quote %s", kind, state.QuoteID)
	}
}

func backendError(err error, fallback string) *FlowError {
	message := fallback
	if msg, ok := backend.ServerMessage(err); ok {
		message = msg
	}
	return flowError(ErrBackend, message, err)
}
