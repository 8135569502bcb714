package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront-service/internal/backend"
	"storefront-service/internal/notify"
	"storefront-service/internal/payment"
	"storefront-service/internal/service"
)

const testSecret = "secret"

// fakeBackend is an in-memory stand-in for the REST backend.
type fakeBackend struct {
	mu     sync.Mutex
	quotes map[string]map[string]interface{}
	calls  map[string]int
	bodies map[string][]byte
	auth   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		quotes: map[string]map[string]interface{}{},
		calls:  map[string]int{},
		bodies: map[string][]byte{},
	}
}

func (f *fakeBackend) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeBackend) record(r *http.Request) {
	f.calls[r.Method+" "+r.URL.Path]++
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	if r.Body != nil {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			f.bodies[r.Method+" "+r.URL.Path] = raw
		}
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /quotes/my-quotes", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		list := make([]map[string]interface{}, 0, len(f.quotes))
		for _, q := range f.quotes {
			list = append(list, q)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"quotes": list})
	})
	mux.HandleFunc("GET /orders/my-orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		writeJSON(w, http.StatusOK, []interface{}{})
	})
	mux.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"_id": r.PathValue("id"), "orderNumber": "ORD-" + r.PathValue("id"), "orderStatus": "processing", "totalAmount": 1000,
		})
	})
	mux.HandleFunc("PUT /quotes/{id}/accept", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		q := f.quotes[r.PathValue("id")]
		q["status"] = "accepted"
		writeJSON(w, http.StatusOK, q)
	})
	mux.HandleFunc("PUT /quotes/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Quote is locked"})
	})
	mux.HandleFunc("PUT /quotes/{id}/respond", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		q := f.quotes[r.PathValue("id")]
		q["status"] = "responded"
		writeJSON(w, http.StatusOK, q)
	})
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"order":         map[string]interface{}{"_id": "o1", "orderNumber": "ORD-1", "totalAmount": 1000},
			"razorpayOrder": map[string]interface{}{"id": "rzp_1", "amount": 100000, "currency": "INR"},
		})
	})
	mux.HandleFunc("POST /orders/verify", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)
		for _, q := range f.quotes {
			if q["status"] == "accepted" {
				q["status"] = "completed"
				q["orderId"] = "o1"
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	})
	return mux
}

func quoteJSON(id, status, typ string, products ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"_id":           id,
		"user":          map[string]interface{}{"_id": "u1", "name": "Asha", "phone": "9876543210"},
		"products":      products,
		"status":        status,
		"type":          typ,
		"adminResponse": map[string]interface{}{"message": "ok", "totalPrice": 1000},
		"createdAt":     time.Now().UTC().Format(time.RFC3339),
	}
}

func product(id interface{}, qty int) map[string]interface{} {
	return map[string]interface{}{"product": id, "quantity": qty}
}

type testServer struct {
	e      http.Handler
	fake   *fakeBackend
	store  *service.DashboardStore
	bridge *payment.Bridge
}

func newTestServer(t *testing.T, rateLimit float64) *testServer {
	t.Helper()
	fake := newFakeBackend()
	srv := httptest.NewServer(fake.handler())

	client := backend.NewClient(srv.URL, srv.Client())
	store := service.NewDashboardStore(client)
	bridge := payment.NewBridge(5*time.Second, nil)
	hub := notify.NewHub()
	go hub.Run()

	merchant := payment.Merchant{Key: "rzp_test", Name: "Telecom Store", ThemeColor: "#3399cc"}
	checkout := service.NewCheckoutService(client, bridge, merchant, service.NewMemoryGuard(), store, store, nil)
	admin := service.NewAdminService(client, store, nil)
	h := NewStorefrontHandler(client, checkout, admin, store, bridge, hub)

	e := NewRouter(h, RouterConfig{JWTSecret: testSecret, RateLimit: rateLimit, RateBurst: 2})
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return &testServer{e: WithCORS(e, []string{"https://dash.example.com"}), fake: fake, store: store, bridge: bridge}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := &JwtCustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const validAddress = `{"address":{"fullName":"Asha Rao","phone":"9876543210","street":"12 MG Road","city":"Pune","state":"MH","pincode":"411001"}}`

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/api/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRoleForbidden(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/api/dashboard", token(t, "u1", "superuser"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardListsQuotesWithActions(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "responded", "standard", product("p1", 2))
	tok := token(t, "u1", "retailer")

	rec := s.do(t, http.MethodGet, "/api/dashboard", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	quotes := body["quotes"].([]interface{})
	require.Len(t, quotes, 1)
	actions := body["actions"].(map[string]interface{})
	assert.Equal(t, []interface{}{"accept", "reject"}, actions["q1"])
	assert.Equal(t, 1, s.fake.count("GET /quotes/my-quotes"))
	assert.Equal(t, 1, s.fake.count("GET /orders/my-orders"))
	assert.Contains(t, s.fake.auth, "Bearer "+tok)
}

func TestAcceptStandardQuote(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "responded", "standard", product("p1", 2))
	tok := token(t, "u1", "user")

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/accept", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode(t, rec)["state"].(map[string]interface{})
	assert.Equal(t, string(service.StageAwaitingCheckout), state["stage"])
	assert.Equal(t, 1, s.fake.count("PUT /quotes/q1/accept"))
	assert.Zero(t, s.fake.count("POST /orders"))
}

func TestAcceptNotRespondableConflicts(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "pending", "standard", product("p1", 2))

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/accept", token(t, "u1", "user"), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, s.fake.count("PUT /quotes/q1/accept"))
}

func TestRejectSurfacesServerMessage(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "responded", "standard", product("p1", 2))

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/reject", token(t, "u1", "user"), "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Quote is locked", decode(t, rec)["error"])
}

func TestUnknownQuoteNotFound(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodPost, "/api/quotes/missing/checkout", token(t, "u1", "user"), validAddress)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutPartialRequiresConfirmation(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "accepted", "standard", product("p1", 2), product(nil, 1))
	tok := token(t, "u1", "user")

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/checkout", tok, validAddress)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["kept"], 1)
	assert.Len(t, body["dropped"], 1)
	assert.Zero(t, s.fake.count("POST /orders"))
}

func TestCheckoutNoValidProducts(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "accepted", "standard", product(nil, 1))

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/checkout", token(t, "u1", "user"), validAddress)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, s.fake.count("POST /orders"))
}

func TestCheckoutInvalidAddress(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "accepted", "standard", product("p1", 2))

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/checkout", token(t, "u1", "user"),
		`{"address":{"fullName":"Asha Rao","phone":" ","street":"12 MG Road","city":"Pune","state":"MH","pincode":"411001"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "phone")
	assert.Zero(t, s.fake.count("POST /orders"))
}

func TestCheckoutCheckedOutRedirects(t *testing.T) {
	s := newTestServer(t, 0)
	q := quoteJSON("q1", "completed", "standard", product("p1", 2))
	q["orderId"] = "o9"
	s.fake.quotes["q1"] = q

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/checkout", token(t, "u1", "user"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/orders/o9", body["redirect"])
	order := body["order"].(map[string]interface{})
	assert.Equal(t, "o9", order["id"])
	assert.Equal(t, 1, s.fake.count("GET /orders/o9"))
	assert.Zero(t, s.fake.count("POST /orders"))
}

func TestCheckoutUsesBackendStateNotDashboardCache(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "accepted", "standard", product("p1", 2))
	tok := token(t, "u1", "user")

	rec := s.do(t, http.MethodGet, "/api/dashboard", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// checked out from another tab since the dashboard loaded
	s.fake.mu.Lock()
	s.fake.quotes["q1"]["status"] = "completed"
	s.fake.quotes["q1"]["orderId"] = "o_existing"
	s.fake.mu.Unlock()

	rec = s.do(t, http.MethodPost, "/api/quotes/q1/checkout", tok, validAddress)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/orders/o_existing", decode(t, rec)["redirect"])
	assert.Zero(t, s.fake.count("POST /orders"))
}

func TestAcceptSeesResponseMadeAfterDashboardLoad(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "pending", "standard", product("p1", 2))
	tok := token(t, "u1", "user")

	rec := s.do(t, http.MethodGet, "/api/dashboard", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	s.fake.mu.Lock()
	s.fake.quotes["q1"]["status"] = "responded"
	s.fake.mu.Unlock()

	rec = s.do(t, http.MethodPost, "/api/quotes/q1/accept", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.fake.count("PUT /quotes/q1/accept"))
}

func TestCheckoutPaymentCallbackCompletesOrder(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "accepted", "standard", product("p1", 2), product("p2", 3))
	tok := token(t, "u1", "user")

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/checkout", tok, validAddress)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	options := body["payment"].(map[string]interface{})
	assert.Equal(t, "rzp_1", options["order_id"])
	assert.EqualValues(t, 100000, options["amount"])
	assert.Equal(t, 1, s.fake.count("POST /orders"))

	var created struct {
		Products []struct {
			Price float64 `json:"price"`
		} `json:"products"`
		QuoteID string `json:"quoteId"`
	}
	require.NoError(t, json.Unmarshal(s.fake.bodies["POST /orders"], &created))
	assert.Equal(t, "q1", created.QuoteID)
	require.Len(t, created.Products, 2)
	assert.Equal(t, 200.0, created.Products[0].Price)

	// a second tab cannot start another checkout while the first is open
	rec = s.do(t, http.MethodPost, "/api/quotes/q1/checkout", tok, validAddress)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/payments/rzp_1/callback", token(t, "u2", "user"),
		`{"razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/payments/rzp_1/callback", tok,
		`{"razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		d, ok := s.store.Get("u1")
		return ok && d.Checkouts["q1"].Stage == service.StageCheckedOut
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.fake.count("POST /orders/verify"))

	rec = s.do(t, http.MethodPost, "/api/payments/rzp_1/callback", tok,
		`{"razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentFailureKeepsQuoteRetryable(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "accepted", "standard", product("p1", 2))
	tok := token(t, "u1", "user")

	rec := s.do(t, http.MethodPost, "/api/quotes/q1/checkout", tok, validAddress)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/payments/rzp_1/callback", tok, `{"error":{"description":"Card declined"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		d, ok := s.store.Get("u1")
		return ok && d.Checkouts["q1"].Stage == service.StagePaymentFailed
	}, 2*time.Second, 10*time.Millisecond)
	d, _ := s.store.Get("u1")
	assert.Equal(t, "Card declined", d.Checkouts["q1"].Error)
	assert.Zero(t, s.fake.count("POST /orders/verify"))
}

func TestCallbackRequiresPaymentFields(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodPost, "/api/payments/rzp_1/callback", token(t, "u1", "user"), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, 0)
	s.fake.quotes["q1"] = quoteJSON("q1", "pending", "standard", product("p1", 2))
	body := `{"message":"Best price","totalPrice":900}`

	rec := s.do(t, http.MethodPut, "/api/admin/quotes/q1/respond", token(t, "u1", "retailer"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/admin/quotes/q1/respond", token(t, "a1", "admin"), `{"message":"x","totalPrice":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/admin/quotes/q1/respond", token(t, "a1", "admin"), body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.fake.count("PUT /quotes/q1/respond"))

	rec = s.do(t, http.MethodGet, "/api/admin/quotes/q1/attempts", token(t, "a1", "admin"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	var last int
	for i := 0; i < 5; i++ {
		last = s.do(t, http.MethodGet, "/health", "", "").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebsocketRequiresToken(t *testing.T) {
	s := newTestServer(t, 0)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token(t, "u1", "user"), nil)
	require.NoError(t, err)
	conn.Close()
}
