package api

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"storefront-service/internal/address"
	"storefront-service/internal/entity"
	"storefront-service/internal/notify"
	"storefront-service/internal/payment"
	"storefront-service/internal/service"
)

var errQuoteNotFound = errors.New("quote not found")

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "api").Logger()

// OrderReader loads a single order for display.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*entity.Order, error)
}

type StorefrontHandler struct {
	orders     OrderReader
	checkout   *service.CheckoutService
	admin      *service.AdminService
	dashboards *service.DashboardStore
	bridge     *payment.Bridge
	hub        *notify.Hub
}

func NewStorefrontHandler(orders OrderReader, checkout *service.CheckoutService, admin *service.AdminService, dashboards *service.DashboardStore, bridge *payment.Bridge, hub *notify.Hub) *StorefrontHandler {
	return &StorefrontHandler{
		orders:     orders,
		checkout:   checkout,
		admin:      admin,
		dashboards: dashboards,
		bridge:     bridge,
		hub:        hub,
	}
}

type dashboardResponse struct {
	service.Dashboard
	Actions map[string][]string `json:"actions"`
}

// GetDashboard refreshes and returns the caller's dashboard --> /api/dashboard
func (h *StorefrontHandler) GetDashboard(c echo.Context) error {
	actor := actorFrom(c)
	if err := h.dashboards.RefreshAll(c.Request().Context(), actor); err != nil {
		logger.Error().Err(err).Msgf("Error loading dashboard for user %s", actor.UserID)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to load dashboard"})
	}
	d, _ := h.dashboards.Get(actor.UserID)

	actions := make(map[string][]string, len(d.Quotes))
	for _, q := range d.Quotes {
		actions[q.ID] = service.QuoteActions(q)
	}
	return c.JSON(http.StatusOK, dashboardResponse{Dashboard: d, Actions: actions})
}

// AcceptQuote --> /api/quotes/:id/accept
func (h *StorefrontHandler) AcceptQuote(c echo.Context) error {
	actor := actorFrom(c)
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	q, err := h.quote(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return quoteLookupError(c, err)
	}
	return h.run(c, q.ID, func(ctx context.Context) (service.State, error) {
		return h.checkout.Accept(ctx, actor, q, req)
	})
}

// RejectQuote --> /api/quotes/:id/reject
func (h *StorefrontHandler) RejectQuote(c echo.Context) error {
	actor := actorFrom(c)
	q, err := h.quote(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return quoteLookupError(c, err)
	}
	state, err := h.checkout.Reject(c.Request().Context(), actor, q)
	return h.respond(c, state, err)
}

// Checkout --> /api/quotes/:id/checkout
func (h *StorefrontHandler) Checkout(c echo.Context) error {
	actor := actorFrom(c)
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	q, err := h.quote(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return quoteLookupError(c, err)
	}
	return h.run(c, q.ID, func(ctx context.Context) (service.State, error) {
		return h.checkout.Checkout(ctx, actor, q, req)
	})
}

type callbackRequest struct {
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	Error     *struct {
		Description string `json:"description"`
	} `json:"error"`
}

// PaymentCallback receives the widget outcome --> /api/payments/:gatewayOrderId/callback
func (h *StorefrontHandler) PaymentCallback(c echo.Context) error {
	actor := actorFrom(c)
	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	var result payment.Result
	switch {
	case req.Error != nil:
		result = payment.Failed(req.Error.Description)
	case req.PaymentID != "" && req.Signature != "":
		result = payment.Succeeded(req.PaymentID, req.Signature)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "payment id and signature are required"})
	}

	err := h.bridge.Resolve(c.Request().Context(), c.Param("gatewayOrderId"), actor.UserID, result)
	switch {
	case errors.Is(err, payment.ErrUnknownSession):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, payment.ErrNotOwner):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "received"})
}

// Stream streams dashboard updates over a websocket --> /api/ws
func (h *StorefrontHandler) Stream(c echo.Context) error {
	actor := actorFrom(c)
	if err := h.hub.Serve(c.Response(), c.Request(), actor.UserID); err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
	}
	return nil
}

// RespondQuote --> /api/admin/quotes/:id/respond
func (h *StorefrontHandler) RespondQuote(c echo.Context) error {
	body := struct {
		Message            string   `json:"message"`
		TotalPrice         float64  `json:"totalPrice"`
		DiscountPercentage *float64 `json:"discountPercentage"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	resp := entity.AdminResponse{Message: body.Message, TotalPrice: body.TotalPrice, DiscountPercentage: body.DiscountPercentage}

	q, err := h.admin.RespondQuote(c.Request().Context(), actorFrom(c), c.Param("id"), resp)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// UpdateTracking --> /api/admin/orders/:id/tracking
func (h *StorefrontHandler) UpdateTracking(c echo.Context) error {
	body := struct {
		TrackingLink string `json:"trackingLink"`
		TrackingID   string `json:"trackingId"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	o, err := h.admin.UpdateTracking(c.Request().Context(), actorFrom(c), c.Param("id"), body.TrackingLink, body.TrackingID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// ListAttempts --> /api/admin/quotes/:id/attempts
func (h *StorefrontHandler) ListAttempts(c echo.Context) error {
	events, err := h.admin.Attempts(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing attempts for quote %s", c.Param("id"))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load attempts"})
	}
	if events == nil {
		events = []entity.CheckoutEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// quote re-fetches the caller's quotes and returns id. Mutations never act on
// a cached copy: another tab or replica may have moved the quote on.
func (h *StorefrontHandler) quote(ctx context.Context, actor service.Actor, id string) (entity.Quote, error) {
	if err := h.dashboards.RefreshQuotes(ctx, actor); err != nil {
		return entity.Quote{}, err
	}
	if q, ok := h.dashboards.Quote(actor.UserID, id); ok {
		return q, nil
	}
	return entity.Quote{}, errQuoteNotFound
}

func quoteLookupError(c echo.Context, err error) error {
	if errors.Is(err, errQuoteNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Quote not found"})
	}
	logger.Error().Err(err).Msg("Error loading quotes")
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to load quotes"})
}

type flowResult struct {
	state service.State
	err   error
}

// run executes a flow that may open a payment. The flow outlives the request:
// once the payment widget is open the handler answers with its options and the
// rest of the flow reports through the websocket.
func (h *StorefrontHandler) run(c echo.Context, quoteID string, flow func(ctx context.Context) (service.State, error)) error {
	opened, stop := h.bridge.Watch(quoteID)
	defer stop()

	ctx := context.WithoutCancel(c.Request().Context())
	done := make(chan flowResult, 1)
	go func() {
		state, err := flow(ctx)
		if err != nil {
			logger.Info().Err(err).Msgf("Flow for quote %s ended in %s", quoteID, state.Stage)
		}
		done <- flowResult{state: state, err: err}
	}()

	select {
	case r := <-done:
		return h.respond(c, r.state, r.err)
	case pay := <-opened:
		state := service.State{
			QuoteID:        quoteID,
			Stage:          service.StageAwaitingPayment,
			OrderID:        pay.LocalOrderID,
			GatewayOrderID: pay.Options.OrderID,
			Payment:        &pay,
		}
		return c.JSON(http.StatusCreated, map[string]interface{}{"state": state, "payment": pay.Options})
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
}

func (h *StorefrontHandler) respond(c echo.Context, state service.State, err error) error {
	if err != nil {
		return h.respondError(c, err, state)
	}
	body := map[string]interface{}{"state": state}
	if state.Stage == service.StageCheckedOut && state.OrderID != "" {
		body["redirect"] = "/orders/" + state.OrderID
		order, err := h.orders.GetOrder(c.Request().Context(), state.OrderID)
		if err != nil {
			logger.Warn().Err(err).Msgf("Error loading order %s for quote %s", state.OrderID, state.QuoteID)
		} else {
			body["order"] = order
		}
	}
	return c.JSON(http.StatusOK, body)
}

func (h *StorefrontHandler) respondError(c echo.Context, err error, state ...service.State) error {
	body := map[string]interface{}{"error": err.Error()}
	if len(state) > 0 {
		body["state"] = state[0]
	}

	var fe *service.FlowError
	if errors.As(err, &fe) {
		body["error"] = fe.Message
	}

	var fields address.FieldErrors
	if errors.As(err, &fields) {
		body["fields"] = fields
	}

	switch {
	case errors.Is(err, service.ErrCheckoutCancelled):
		if fe != nil {
			body["kept"] = fe.Kept
			body["dropped"] = fe.Dropped
		}
		body["confirm"] = "resubmit with confirmPartial to continue with the available products"
		return c.JSON(http.StatusConflict, body)
	case errors.Is(err, service.ErrNotRespondable), errors.Is(err, service.ErrNotAccepted):
		return c.JSON(http.StatusConflict, body)
	case errors.Is(err, service.ErrInFlight):
		return c.JSON(http.StatusTooManyRequests, body)
	case errors.Is(err, service.ErrEmptyAddress), errors.Is(err, address.ErrEmptyAddress):
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrNoValidProducts):
		return c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, service.ErrBackend):
		return c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, service.ErrPaymentFailed), errors.Is(err, service.ErrPaymentAbandoned), errors.Is(err, service.ErrVerificationFailed):
		return c.JSON(http.StatusPaymentRequired, body)
	}
	if fe == nil {
		// admin input validation
		return c.JSON(http.StatusBadRequest, body)
	}
	return c.JSON(http.StatusInternalServerError, body)
}
