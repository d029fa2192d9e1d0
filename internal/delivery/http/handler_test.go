package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/messaging"
	"github.com/reisinl/veg-shop/internal/pricing"
	"github.com/reisinl/veg-shop/internal/repository/memory"
	"github.com/reisinl/veg-shop/internal/service"
	"github.com/reisinl/veg-shop/internal/session"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	store  *memory.Store
	carrot entity.Item
	gourd  entity.Item
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()

	hash, err := service.HashPassword("pw")
	require.NoError(t, err)
	people := []*entity.Person{
		{Username: "staff", FirstName: "Sam", LastName: "Staff", PasswordHash: hash, Kind: entity.PersonStaff,
			Staff: &entity.StaffInfo{StaffCode: "S1", Department: "Sales"}},
		{Username: "pat", FirstName: "Pat", LastName: "Private", PasswordHash: hash, Kind: entity.PersonCustomer,
			Customer: &entity.Customer{Address: "1 Elm St", Balance: d("40"), Owing: d("50"), DistanceFromStore: 3}},
		{Username: "cora", FirstName: "Cora", LastName: "Corp", PasswordHash: hash, Kind: entity.PersonCorporate,
			Customer: &entity.Customer{Address: "2 Elm St", Balance: d("5000"), DistanceFromStore: 3,
				Corporate: &entity.CorporateInfo{CreditCeiling: d("1000"), DiscountRate: d("0.1"), MaxCredit: d("10000")}}},
	}
	for _, p := range people {
		require.NoError(t, repos.Persons.Create(ctx, p))
	}

	ts := &testServer{t: t, store: store}
	ts.carrot = entity.Item{Name: "Carrot", Price: d("0.5"), Stock: d("10"), Kind: entity.ItemUnit,
		Variant: &entity.VariantPricing{Rate: d("2.0"), PerOrderUnit: d("1")}}
	require.NoError(t, repos.Items.Create(ctx, &ts.carrot))
	ts.gourd = entity.Item{Name: "Gourd", Price: d("4"), Stock: d("5"), Kind: entity.ItemPlain}
	require.NoError(t, repos.Items.Create(ctx, &ts.gourd))
	medium := entity.Item{Name: "Medium Box", Price: d("15"), Stock: d("50"), Kind: entity.ItemBox, Box: &entity.BoxInfo{Size: entity.BoxMedium}}
	require.NoError(t, repos.Items.Create(ctx, &medium))

	publisher := messaging.Nop{}
	h := NewHandler(Services{
		Auth:      service.NewAuthService(store, session.NewMemoryStore(time.Hour)),
		Catalog:   service.NewCatalogService(store),
		Orders:    service.NewOrderService(store, pricing.NewEngine(pricing.NewULIDNumbers()), publisher),
		Payments:  service.NewPaymentService(store, publisher),
		Customers: service.NewCustomerService(store),
		Reports:   service.NewReportService(store),
		Health:    store,
	})
	ts.srv = httptest.NewServer(h.Routes())
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *http.Response {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) login(username string) string {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/login", "", LoginRequest{Username: username, Password: "pw"})
	require.Equal(ts.t, http.StatusOK, resp.StatusCode)
	var out LoginResponse
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/login", "", LoginRequest{Username: "pat", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", decode[ErrorResponse](t, resp).Error)

	resp = ts.do(http.MethodPost, "/api/login", "", LoginRequest{Username: "pat"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := ts.login("pat")
	resp = ts.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[entity.Person](t, resp)
	assert.Equal(t, "pat", me.Username)

	resp = ts.do(http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodPost, "/api/login", "", LoginRequest{Username: "pat", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/items", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	items, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer items.Body.Close()
	assert.Equal(t, http.StatusOK, items.StatusCode)
}

func TestPlaceAndPayOrder(t *testing.T) {
	ts := newTestServer(t)
	cora := ts.login("cora")

	resp := ts.do(http.MethodPost, "/api/orders", cora, service.PlaceOrderRequest{Request: pricing.Request{
		Box: &pricing.BoxSelection{Size: entity.BoxMedium, Count: 2},
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[service.PlacedOrder](t, resp)
	assert.Equal(t, "27.00", placed.DisplayTotal)
	id := placed.Order.ID

	resp = ts.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/payments", id), cora, service.PaymentRequest{
		Method: "Credit Card", Amount: d("10"), Card: &service.CardInput{Number: "4111111111111111"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[service.PaymentResult](t, resp)
	assert.Equal(t, entity.StatusPending, res.Status)

	resp = ts.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/payments", id), cora, service.PaymentRequest{Method: "Account", Amount: d("17")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res = decode[service.PaymentResult](t, resp)
	assert.Equal(t, entity.StatusCompleted, res.Status)

	resp = ts.do(http.MethodGet, "/api/orders?state=previous", cora, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]entity.Order](t, resp), 1)

	resp = ts.do(http.MethodGet, fmt.Sprintf("/api/orders/%s/history", placed.Order.Number), cora, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[service.OrderHistory](t, resp)
	assert.Len(t, history.Events, 4)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	pat := ts.login("pat")

	resp := ts.do(http.MethodPost, "/api/orders", pat, service.PlaceOrderRequest{Request: pricing.Request{
		Lines: []pricing.Line{{ItemID: ts.gourd.ID, Quantity: 10}},
	}})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "insufficient_stock", body.Error)
	assert.Equal(t, ts.gourd.ID, body.ItemID)
	require.NotNil(t, body.Available)
	assert.True(t, d("5").Equal(*body.Available))

	it, err := ts.store.Repos().Items.FindByID(context.Background(), ts.gourd.ID)
	require.NoError(t, err)
	assert.True(t, d("5").Equal(it.Stock))
}

func TestPlaceOrder_ModeSpellings(t *testing.T) {
	ts := newTestServer(t)
	pat := ts.login("pat")

	resp := ts.do(http.MethodPost, "/api/orders", pat, map[string]any{
		"lines": []map[string]any{{"item_id": ts.gourd.ID, "mode": "plain", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[service.PlacedOrder](t, resp)
	assert.Equal(t, "8.00", placed.DisplayTotal)
	require.Len(t, placed.Order.Lines, 1)
	assert.Equal(t, entity.ModePlain, placed.Order.Lines[0].Mode)

	resp = ts.do(http.MethodPost, "/api/orders", pat, map[string]any{
		"lines": []map[string]any{{"item_id": ts.gourd.ID, "mode": "by-weight", "quantity": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, resp).Error)

	it, err := ts.store.Repos().Items.FindByID(context.Background(), ts.gourd.ID)
	require.NoError(t, err)
	assert.True(t, d("3").Equal(it.Stock))
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	pat := ts.login("pat")
	staff := ts.login("staff")

	resp := ts.do(http.MethodPost, "/api/orders", pat, service.PlaceOrderRequest{Request: pricing.Request{
		Lines: []pricing.Line{{ItemID: ts.carrot.ID, Mode: entity.ModeUnit, Quantity: 1}},
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[service.PlacedOrder](t, resp).Order.ID

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"bad id", http.MethodGet, "/api/orders/abc", pat, nil, http.StatusBadRequest, "invalid_request"},
		{"missing order", http.MethodGet, "/api/orders/999", staff, nil, http.StatusNotFound, "not_found"},
		{"bad state", http.MethodGet, "/api/orders?state=later", pat, nil, http.StatusBadRequest, "invalid_request"},
		{"unknown box", http.MethodPost, "/api/orders", pat, service.PlaceOrderRequest{Request: pricing.Request{
			Box: &pricing.BoxSelection{Size: entity.BoxLarge, Count: 1}}}, http.StatusUnprocessableEntity, "unknown_box_size"},
		{"bad method", http.MethodPost, fmt.Sprintf("/api/orders/%d/payments", id), pat,
			service.PaymentRequest{Method: "Barter", Amount: d("1")}, http.StatusUnprocessableEntity, "payment_method_invalid"},
		{"balance", http.MethodPost, fmt.Sprintf("/api/orders/%d/payments", id), pat,
			service.PaymentRequest{Method: "Account", Amount: d("41")}, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"customers forbidden", http.MethodGet, "/api/customers", pat, nil, http.StatusForbidden, "forbidden"},
		{"status by customer", http.MethodPut, fmt.Sprintf("/api/orders/%d/status", id), pat,
			UpdateStatusRequest{Status: "Packed"}, http.StatusForbidden, "forbidden"},
		{"empty status", http.MethodPut, fmt.Sprintf("/api/orders/%d/status", id), staff,
			UpdateStatusRequest{Status: " "}, http.StatusBadRequest, "invalid_status"},
		{"staff cannot cancel", http.MethodDelete, fmt.Sprintf("/api/orders/%d", id), staff, nil, http.StatusForbidden, "forbidden"},
		{"unknown field", http.MethodPut, fmt.Sprintf("/api/orders/%d/status", id), staff,
			map[string]string{"state": "Packed"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Error)
		})
	}

	resp = ts.do(http.MethodPut, fmt.Sprintf("/api/orders/%d/status", id), staff, UpdateStatusRequest{Status: "Packed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.OrderStatus("Packed"), decode[entity.Order](t, resp).Status)

	resp = ts.do(http.MethodDelete, fmt.Sprintf("/api/orders/%d", id), pat, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelOrder(t *testing.T) {
	ts := newTestServer(t)
	pat := ts.login("pat")

	resp := ts.do(http.MethodPost, "/api/orders", pat, service.PlaceOrderRequest{Request: pricing.Request{
		Lines: []pricing.Line{{ItemID: ts.carrot.ID, Mode: entity.ModeUnit, Quantity: 4}},
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[service.PlacedOrder](t, resp).Order.ID

	resp = ts.do(http.MethodDelete, fmt.Sprintf("/api/orders/%d", id), pat, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", id), pat, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	it, err := ts.store.Repos().Items.FindByID(context.Background(), ts.carrot.ID)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(it.Stock))
}

func TestStaffEndpoints(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login("staff")

	resp := ts.do(http.MethodGet, "/api/customers", staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]service.CustomerView](t, resp), 2)

	resp = ts.do(http.MethodGet, "/api/customers/export", staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	resp = ts.do(http.MethodGet, "/api/reports/sales?period=monthly", staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[service.SalesReport](t, resp)
	assert.Equal(t, "monthly", report.Period)
	assert.True(t, report.Total.IsZero())

	resp = ts.do(http.MethodGet, "/api/reports/popular-items", staff, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/customers/me", staff, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEnableCORS_Preflight(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodOptions, "/api/orders", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
