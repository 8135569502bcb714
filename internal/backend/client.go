package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"storefront-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "backend").Logger()

var ErrEmptyID = errors.New("empty id")

// Client talks to the storefront REST backend. The backend is the source of
// truth; nothing here caches or retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token; every backend call forwards it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// AcceptQuote --> PUT /quotes/:id/accept
func (c *Client) AcceptQuote(ctx context.Context, id string) (*entity.Quote, error) {
	return c.quoteTransition(ctx, id, "accept")
}

// RejectQuote --> PUT /quotes/:id/reject
func (c *Client) RejectQuote(ctx context.Context, id string) (*entity.Quote, error) {
	return c.quoteTransition(ctx, id, "reject")
}

func (c *Client) quoteTransition(ctx context.Context, id, action string) (*entity.Quote, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var raw rawQuote
	path := fmt.Sprintf("/quotes/%s/%s", url.PathEscape(id), action)
	if err := c.do(ctx, http.MethodPut, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	q := raw.normalize()
	return &q, nil
}

// RespondQuote --> PUT /quotes/:id/respond
func (c *Client) RespondQuote(ctx context.Context, id string, resp entity.AdminResponse) (*entity.Quote, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	body := map[string]interface{}{
		"message":    resp.Message,
		"totalPrice": resp.TotalPrice,
	}
	if resp.DiscountPercentage != nil {
		body["discountPercentage"] = *resp.DiscountPercentage
	}
	var raw rawQuote
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/quotes/%s/respond", url.PathEscape(id)), body, nil, &raw); err != nil {
		return nil, err
	}
	q := raw.normalize()
	return &q, nil
}

// CreateOrder --> POST /orders
func (c *Client) CreateOrder(ctx context.Context, req entity.CreateOrderRequest) (*entity.CreateOrderResponse, error) {
	headers := http.Header{}
	if req.QuoteID != "" {
		headers.Set("Idempotent-Key", "quote-"+req.QuoteID)
	}

	var raw struct {
		Order   rawOrder                 `json:"order"`
		Payment entity.PaymentDescriptor `json:"razorpayOrder"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", req, headers, &raw); err != nil {
		return nil, err
	}
	return &entity.CreateOrderResponse{
		Order:   raw.Order.normalize(),
		Payment: raw.Payment,
	}, nil
}

// VerifyOrder --> POST /orders/verify
func (c *Client) VerifyOrder(ctx context.Context, req entity.VerifyOrderRequest) error {
	var out struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders/verify", req, nil, &out); err != nil {
		return err
	}
	if out.Success != nil && !*out.Success {
		return &APIError{Status: http.StatusOK, Message: out.Message}
	}
	return nil
}

// GetOrder --> GET /orders/:id
func (c *Client) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var raw rawOrder
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &raw); err != nil {
		return nil, err
	}
	o := raw.normalize()
	return &o, nil
}

// UpdateTracking --> PUT /orders/:id/tracking
func (c *Client) UpdateTracking(ctx context.Context, id, link, trackingID string) (*entity.Order, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	body := map[string]string{"trackingLink": link, "trackingId": trackingID}
	var raw rawOrder
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%s/tracking", url.PathEscape(id)), body, nil, &raw); err != nil {
		return nil, err
	}
	o := raw.normalize()
	return &o, nil
}

// ListQuotes returns the quotes visible to role: everything for admins, the
// caller's own quotes otherwise.
func (c *Client) ListQuotes(ctx context.Context, role entity.Role) ([]entity.Quote, error) {
	path := "/quotes/my-quotes"
	if role.IsAdmin() {
		path = "/quotes"
	}
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	var raws []rawQuote
	if err := decodeList(body, "quotes", &raws); err != nil {
		return nil, err
	}
	quotes := make([]entity.Quote, 0, len(raws))
	for _, r := range raws {
		quotes = append(quotes, r.normalize())
	}
	return quotes, nil
}

// ListOrders returns the orders visible to role.
func (c *Client) ListOrders(ctx context.Context, role entity.Role) ([]entity.Order, error) {
	path := "/orders/my-orders"
	if role.IsAdmin() {
		path = "/orders"
	}
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	var raws []rawOrder
	if err := decodeList(body, "orders", &raws); err != nil {
		return nil, err
	}
	orders := make([]entity.Order, 0, len(raws))
	for _, r := range raws {
		orders = append(orders, r.normalize())
	}
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, headers http.Header, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error().Err(err).Msgf("%s %s failed", method, path)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
		logger.Warn().Int("status", resp.StatusCode).Msgf("%s %s: %s", method, path, apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeList accepts either a bare array or an object wrapping it under key
// (or "data").
func decodeList(body json.RawMessage, key string, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	for _, k := range []string{key, "data"} {
		if inner, ok := wrapped[k]; ok {
			return json.Unmarshal(inner, out)
		}
	}
	return fmt.Errorf("list response has no %q field", key)
}
