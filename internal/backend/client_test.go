package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront-service/internal/entity"
)

func TestListQuotesNormalizesLegacyShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quotes/my-quotes", r.URL.Path)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"quotes":[
			{"_id":"q1","userId":"u1","status":"responded","type":"bulk_order",
			 "products":[
				{"productId":{"_id":"p1","name":"Router","price":120},"quantity":2,"offeredPrice":100},
				{"product":null,"quantity":1},
				{"product":"p3","quantity":4}
			 ],
			 "adminResponse":{"message":"ok","totalPrice":900,"discountPercentage":5}},
			{"_id":"q2","user":{"_id":"u2","name":"Asha","phone":"999"},"status":"accepted","orderId":{"_id":"o9"},"products":[]}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	quotes, err := c.ListQuotes(WithToken(context.Background(), "tkn"), entity.RoleRetailer)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	q1 := quotes[0]
	assert.Equal(t, "u1", q1.UserID)
	assert.Equal(t, entity.QuoteTypeBulkOrder, q1.Type)
	require.Len(t, q1.Items, 3)
	assert.True(t, q1.Items[0].Resolved())
	assert.Equal(t, "p1", q1.Items[0].ProductID)
	assert.Equal(t, "Router", q1.Items[0].Product.Name)
	assert.False(t, q1.Items[1].Resolved())
	assert.True(t, q1.Items[2].Resolved())
	assert.Equal(t, "p3", q1.Items[2].ProductID)
	require.NotNil(t, q1.AdminResponse)
	assert.Equal(t, 900.0, q1.TotalPrice())

	q2 := quotes[1]
	assert.Equal(t, "u2", q2.UserID)
	assert.Equal(t, "Asha", q2.UserName)
	assert.Equal(t, "o9", q2.OrderID)
	assert.Equal(t, entity.QuoteTypeStandard, q2.Type)
	assert.True(t, q2.CheckedOut())
}

func TestListOrdersAdminScopeAndBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		_, _ = io.WriteString(w, `[{"_id":"o1","orderNumber":"ORD-1","status":"processing",
			"products":[{"product":{"_id":"p1"},"quantity":1,"price":10,"serialNumbers":["SN1"]}],
			"isDropship":true,"dropshipDetails":{"customerName":"Ravi","customerPhone":"1","address":"Pune"},
			"trackingLink":"https://track/1","quote":"q1"}]`)
	}))
	defer srv.Close()

	orders, err := NewClient(srv.URL, nil).ListOrders(context.Background(), entity.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, "processing", o.OrderStatus)
	assert.Equal(t, "q1", o.QuoteID)
	require.NotNil(t, o.Dropship)
	assert.Equal(t, "Ravi", o.Dropship.CustomerName)
	assert.Equal(t, []string{"SN1"}, o.Items[0].SerialNumbers)
}

func TestCreateOrderSendsBodyAndIdempotentKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "quote-q1", r.Header.Get("Idempotent-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "q1", body["quoteId"])
		assert.Equal(t, "addr", body["shippingAddress"])
		assert.Len(t, body["products"], 1)

		_, _ = io.WriteString(w, `{"order":{"_id":"o1"},"razorpayOrder":{"id":"rp_1","amount":50000,"currency":"INR"}}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, nil).CreateOrder(context.Background(), entity.CreateOrderRequest{
		Products:        []entity.OrderLine{{Product: "p1", Quantity: 1, Price: 500}},
		TotalAmount:     500,
		QuoteID:         "q1",
		ShippingAddress: "addr",
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", resp.Order.ID)
	assert.Equal(t, "rp_1", resp.Payment.ID)
	assert.Equal(t, int64(50000), resp.Payment.Amount)
}

func TestErrorsCarryServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Quote is not in responded state"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).AcceptQuote(context.Background(), "q1")
	require.Error(t, err)
	msg, ok := ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Quote is not in responded state", msg)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestVerifyOrderReportsUnsuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"signature mismatch"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, nil).VerifyOrder(context.Background(), entity.VerifyOrderRequest{OrderID: "o1"})
	require.Error(t, err)
	msg, _ := ServerMessage(err)
	assert.Equal(t, "signature mismatch", msg)
}

func TestEmptyIDIsRejectedBeforeAnyCall(t *testing.T) {
	c := NewClient("http://unused.invalid", nil)
	_, err := c.RejectQuote(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestGetOrderNormalizesLegacyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/orders/o9", r.URL.Path)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"_id":"o9","orderNumber":"ORD-9","status":"shipped","paymentStatus":"paid",
			"totalAmount":900,"quoteId":"q2","isDropship":true,
			"dropshipDetails":{"customerName":"Ravi","customerPhone":"888","address":"Pune"},
			"trackingLink":"https://track.example.com/9",
			"products":[{"product":{"_id":"p1"},"quantity":2,"price":450}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	o, err := c.GetOrder(WithToken(context.Background(), "tkn"), "o9")
	require.NoError(t, err)

	assert.Equal(t, "o9", o.ID)
	assert.Equal(t, "shipped", o.OrderStatus)
	assert.Equal(t, "q2", o.QuoteID)
	require.NotNil(t, o.Dropship)
	assert.Equal(t, "Ravi", o.Dropship.CustomerName)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "p1", o.Items[0].ProductID)

	_, err = c.GetOrder(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyID)
}
