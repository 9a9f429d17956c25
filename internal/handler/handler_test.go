package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/service"
	"github.com/efreitasn/minibroker/internal/store"
	"github.com/shopspring/decimal"
)

// testEnv bundles a router over a seeded in-memory backend. ACME is added
// on top of the seed with a latest close of 123.45.
type testEnv struct {
	router http.Handler
	mem    *store.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := seededMemory(t)
	return &testEnv{router: newTestRouter(mem, RouterOptions{}), mem: mem}
}

func seededMemory(t *testing.T) *store.Memory {
	t.Helper()
	seed, err := store.LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	mem := store.NewMemory("")
	if err := mem.Apply(seed); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	acme := &domain.Instrument{Ticker: "ACME", Name: "Acme Corp", Type: domain.InstrumentTypeStock}
	if err := mem.Instruments.Create(acme); err != nil {
		t.Fatalf("create ACME: %v", err)
	}
	mem.Quotes.Upsert(&domain.MarketQuote{
		InstrumentID: acme.ID,
		Date:         time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC),
		Close:        decimal.RequireFromString("123.45"),
	})
	return mem
}

func newTestRouter(backend service.Backend, opts RouterOptions) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(
		service.NewOrderService(backend, logger),
		service.NewAccountService(backend, "", logger),
		service.NewInstrumentService(backend),
		logger,
		opts,
	)
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// submitOrder posts body to /orders, expects 201 and returns the response.
func (env *testEnv) submitOrder(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	rr := env.doJSON(t, "POST", "/orders", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit order: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp
}

func (env *testEnv) cashIn(t *testing.T, account string, size int64) {
	t.Helper()
	env.submitOrder(t, map[string]any{
		"account_number": account,
		"type":           "MARKET",
		"side":           "CASH_IN",
		"size":           size,
	})
}

func (env *testEnv) cashAvailable(t *testing.T, account string) float64 {
	t.Helper()
	rr := env.doJSON(t, "GET", "/accounts/"+account+"/balance", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp["cash_available"].(float64)
}

// --- Healthz ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected application/json, got %s", ct)
	}
}

// --- Order Endpoints ---

func TestOrder_CashIn(t *testing.T) {
	env := newTestEnv(t)
	resp := env.submitOrder(t, map[string]any{
		"account_number": "10002",
		"type":           "MARKET",
		"side":           "CASH_IN",
		"size":           10000,
	})

	if resp["status"] != "FILLED" {
		t.Fatalf("expected FILLED, got %v", resp["status"])
	}
	if resp["price"] != 1.0 || resp["size"] != 10000.0 {
		t.Fatalf("expected price 1 size 10000, got %v %v", resp["price"], resp["size"])
	}
	if resp["ticker"] != "ARS" {
		t.Fatalf("expected ticker ARS, got %v", resp["ticker"])
	}
	createdAt, ok := resp["created_at"].(string)
	if !ok {
		t.Fatal("created_at should be a string")
	}
	if _, err := time.Parse(time.RFC3339, createdAt); err != nil {
		t.Fatalf("created_at not RFC 3339: %v", err)
	}
	if got := env.cashAvailable(t, "10002"); got != 10000 {
		t.Fatalf("cash_available = %v, want 10000", got)
	}
}

func TestOrder_CashOut(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"account_number": "10002",
		"type":           "MARKET",
		"side":           "CASH_OUT",
		"size":           10000,
	}

	// Empty account: rejected but still created.
	resp := env.submitOrder(t, body)
	if resp["status"] != "REJECTED" {
		t.Fatalf("expected REJECTED, got %v", resp["status"])
	}

	env.cashIn(t, "10002", 50000)
	resp = env.submitOrder(t, body)
	if resp["status"] != "FILLED" {
		t.Fatalf("expected FILLED, got %v", resp["status"])
	}
	if got := env.cashAvailable(t, "10002"); got != 40000 {
		t.Fatalf("cash_available = %v, want 40000", got)
	}
}

func TestOrder_MarketBuyByAmount(t *testing.T) {
	env := newTestEnv(t)
	env.cashIn(t, "10002", 1000)

	resp := env.submitOrder(t, map[string]any{
		"account_number": "10002",
		"type":           "MARKET",
		"side":           "BUY",
		"ticker":         "ACME",
		"amount":         1001.33,
	})
	if resp["status"] != "FILLED" {
		t.Fatalf("expected FILLED, got %v", resp["status"])
	}
	if resp["size"] != 8.0 || resp["price"] != 123.45 {
		t.Fatalf("expected 8 @ 123.45, got %v @ %v", resp["size"], resp["price"])
	}
	if got := env.cashAvailable(t, "10002"); got != 12.4 {
		t.Fatalf("cash_available = %v, want 12.4", got)
	}
}

func TestOrder_AmountAsString(t *testing.T) {
	env := newTestEnv(t)
	env.cashIn(t, "10002", 1000)

	rr := env.doRaw(t, "POST", "/orders", "application/json",
		`{"account_number":"10002","type":"MARKET","side":"BUY","ticker":"ACME","amount":"246.90"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["size"] != 2.0 {
		t.Fatalf("expected size 2, got %v", resp["size"])
	}
}

func TestOrder_MarketSellMoreThanOwned(t *testing.T) {
	env := newTestEnv(t)
	resp := env.submitOrder(t, map[string]any{
		"account_number": "10001",
		"type":           "MARKET",
		"side":           "SELL",
		"ticker":         "PAMP",
		"size":           100,
	})
	if resp["status"] != "REJECTED" {
		t.Fatalf("expected REJECTED, got %v", resp["status"])
	}
	if resp["size"] != 100.0 || resp["price"] != 925.85 {
		t.Fatalf("rejected order must keep size and price, got %v @ %v", resp["size"], resp["price"])
	}
}

func TestOrder_LimitBuyInsufficientCash(t *testing.T) {
	env := newTestEnv(t)
	env.cashIn(t, "10002", 876)

	resp := env.submitOrder(t, map[string]any{
		"account_number": "10002",
		"type":           "LIMIT",
		"side":           "BUY",
		"ticker":         "PAMP",
		"size":           100,
		"price":          99.35,
	})
	if resp["status"] != "REJECTED" {
		t.Fatalf("expected REJECTED, got %v", resp["status"])
	}
}

func TestOrder_LimitBuyAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.cashIn(t, "10002", 10000)

	resp := env.submitOrder(t, map[string]any{
		"account_number": "10002",
		"type":           "LIMIT",
		"side":           "BUY",
		"ticker":         "PAMP",
		"size":           100,
		"price":          99.35,
	})
	if resp["status"] != "NEW" {
		t.Fatalf("expected NEW, got %v", resp["status"])
	}
	// NEW orders reserve nothing.
	if got := env.cashAvailable(t, "10002"); got != 10000 {
		t.Fatalf("cash_available = %v, want 10000", got)
	}
}

func TestOrder_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantErr  string
	}{
		{
			"both size and amount",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "BUY", "ticker": "PAMP", "size": 1, "amount": 1000},
			http.StatusBadRequest, "validation_error",
		},
		{
			"neither size nor amount",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "BUY", "ticker": "PAMP"},
			http.StatusBadRequest, "validation_error",
		},
		{
			"limit without price",
			map[string]any{"account_number": "10001", "type": "LIMIT", "side": "SELL", "ticker": "PAMP", "size": 1},
			http.StatusBadRequest, "validation_error",
		},
		{
			"limit cash in",
			map[string]any{"account_number": "10001", "type": "LIMIT", "side": "CASH_IN", "size": 1, "price": 1},
			http.StatusBadRequest, "validation_error",
		},
		{
			"unknown side",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "SHORT", "ticker": "PAMP", "size": 1},
			http.StatusBadRequest, "validation_error",
		},
		{
			"three decimal amount",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "BUY", "ticker": "PAMP", "amount": 10.001},
			http.StatusBadRequest, "validation_error",
		},
		{
			"amount below one share",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "BUY", "ticker": "PAMP", "amount": 100},
			http.StatusUnprocessableEntity, "unprocessable_order",
		},
		{
			"market trade on currency",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "BUY", "ticker": "ARS", "size": 1},
			http.StatusUnprocessableEntity, "unprocessable_order",
		},
		{
			"unknown account",
			map[string]any{"account_number": "99999", "type": "MARKET", "side": "CASH_IN", "size": 1},
			http.StatusNotFound, "account_not_found",
		},
		{
			"unknown ticker",
			map[string]any{"account_number": "10001", "type": "MARKET", "side": "BUY", "ticker": "NOPE", "size": 1},
			http.StatusNotFound, "instrument_not_found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.doJSON(t, "POST", "/orders", tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
			var resp errorResponse
			decodeJSON(t, rr, &resp)
			if resp.Error != tc.wantErr {
				t.Fatalf("expected error=%s, got %s", tc.wantErr, resp.Error)
			}
		})
	}

	// No failing submission may reach the ledger.
	rr := env.doJSON(t, "GET", "/accounts/10001/orders?limit=100", nil)
	var list orderListResponse
	decodeJSON(t, rr, &list)
	if list.Total != 8 {
		t.Fatalf("expected the 8 seeded orders, got %d", list.Total)
	}
}

func TestOrder_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"missing content type", "", `{"account_number":"10001"}`},
		{"wrong content type", "text/plain", `{"account_number":"10001"}`},
		{"malformed json", "application/json", `{not json`},
		{"unknown field", "application/json", `{"account_number":"10001","quantity":5}`},
		{"non-numeric amount", "application/json", `{"account_number":"10001","amount":"lots"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.doRaw(t, "POST", "/orders", tc.contentType, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp errorResponse
			decodeJSON(t, rr, &resp)
			if resp.Error != "invalid_request" {
				t.Fatalf("expected invalid_request, got %s", resp.Error)
			}
		})
	}
}

func TestOrder_Get(t *testing.T) {
	env := newTestEnv(t)
	created := env.submitOrder(t, map[string]any{
		"account_number": "10002",
		"type":           "MARKET",
		"side":           "CASH_IN",
		"size":           25,
	})

	rr := env.doJSON(t, "GET", fmt.Sprintf("/orders/%s", created["order_id"]), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got map[string]any
	decodeJSON(t, rr, &got)
	if got["order_id"] != created["order_id"] || got["status"] != "FILLED" {
		t.Fatalf("unexpected order %v", got)
	}

	rr = env.doJSON(t, "GET", "/orders/00000000-0000-0000-0000-000000000000", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

// --- Account Endpoints ---

func TestAccount_GetBalance(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/accounts/10001/balance", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["account_number"] != "10001" || resp["currency"] != "ARS" {
		t.Fatalf("unexpected balance header %v", resp)
	}
	if resp["cash_available"] != 753000.0 {
		t.Fatalf("cash_available = %v, want 753000", resp["cash_available"])
	}

	rr = env.doJSON(t, "GET", "/accounts/99999/balance", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAccount_GetPortfolio(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/accounts/10001/portfolio", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp portfolioResponse
	decodeJSON(t, rr, &resp)

	if resp.AccountTotal != 915100 || resp.CashAvailable != 753000 {
		t.Fatalf("totals = %v / %v, want 915100 / 753000", resp.AccountTotal, resp.CashAvailable)
	}
	want := []assetResponse{
		{Ticker: "PAMP", Name: "Pampa Holding S.A.", SharesAmount: 40, TotalValue: 37100, Performance: -0.18},
		{Ticker: "METR", Name: "MetroGAS S.A.", SharesAmount: 500, TotalValue: 125000, Performance: -8.2},
	}
	if len(resp.Assets) != len(want) {
		t.Fatalf("expected %d assets, got %+v", len(want), resp.Assets)
	}
	for i, a := range resp.Assets {
		if a.Ticker != want[i].Ticker || a.SharesAmount != want[i].SharesAmount ||
			a.TotalValue != want[i].TotalValue || a.Performance != want[i].Performance {
			t.Errorf("asset[%d] = %+v, want %+v", i, a, want[i])
		}
	}
}

func TestAccount_GetPortfolio_Empty(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/accounts/10002/portfolio", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]any
	decodeJSON(t, rr, &raw)
	assets, ok := raw["assets"].([]any)
	if !ok || len(assets) != 0 {
		t.Fatalf("expected empty assets array, got %v", raw["assets"])
	}
}

func TestAccount_ListOrders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/accounts/10001/orders?page=2&limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderListResponse
	decodeJSON(t, rr, &resp)
	if resp.Total != 8 || resp.Page != 2 || resp.Limit != 5 || len(resp.Orders) != 3 {
		t.Fatalf("unexpected page %+v", resp)
	}

	rr = env.doJSON(t, "GET", "/accounts/10001/orders?status=NEW", nil)
	decodeJSON(t, rr, &resp)
	if resp.Total != 1 || resp.Orders[0].Ticker != "YPFD" {
		t.Fatalf("NEW filter: %+v", resp)
	}

	for _, q := range []string{"status=EXPIRED", "page=abc", "page=0", "limit=1000", "limit=x"} {
		t.Run(q, func(t *testing.T) {
			rr := env.doJSON(t, "GET", "/accounts/10001/orders?"+q, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

// --- Instrument Endpoints ---

func TestInstrument_Search(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/instruments?query=pamp", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp []instrumentResponse
	decodeJSON(t, rr, &resp)
	if len(resp) != 1 || resp[0].Ticker != "PAMP" || resp[0].Type != "STOCK" {
		t.Fatalf("unexpected search result %+v", resp)
	}

	rr = env.doJSON(t, "GET", "/instruments?query=zzz", nil)
	var raw []any
	decodeJSON(t, rr, &raw)
	if raw == nil || len(raw) != 0 {
		t.Fatalf("expected empty array, got %v", raw)
	}
}

func TestInstrument_GetQuote(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/instruments/PAMP/quote", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["ticker"] != "PAMP" || resp["close"] != 925.85 || resp["date"] != "2023-07-14" {
		t.Fatalf("unexpected quote %v", resp)
	}

	tests := []struct {
		path    string
		wantErr string
	}{
		{"/instruments/NOPE/quote", "instrument_not_found"},
		{"/instruments/ARS/quote", "quote_not_found"},
	}
	for _, tc := range tests {
		rr := env.doJSON(t, "GET", tc.path, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", tc.path, rr.Code)
		}
		var e errorResponse
		decodeJSON(t, rr, &e)
		if e.Error != tc.wantErr {
			t.Fatalf("%s: expected %s, got %s", tc.path, tc.wantErr, e.Error)
		}
	}
}

func TestInstrument_GetQuoteHistory(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/instruments/PAMP/quotes?to=2023-07-13", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp quoteHistoryResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Quotes) != 1 || resp.Quotes[0].Close != 928.5 {
		t.Fatalf("unexpected history %+v", resp)
	}

	rr = env.doJSON(t, "GET", "/instruments/PAMP/quotes?from=2023-07-14&to=2023-07-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// --- Middleware ---

// storageDownBackend fails every ledger aggregation with a storage error.
type storageDownBackend struct {
	*store.Memory
}

func (storageDownBackend) SumFilledCash(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("%w: sum filled cash: connection refused", domain.ErrStorage)
}

func TestStorageFailureIs503(t *testing.T) {
	router := newTestRouter(storageDownBackend{seededMemory(t)}, RouterOptions{})

	req := httptest.NewRequest("GET", "/accounts/10001/balance", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "storage_unavailable" {
		t.Fatalf("expected storage_unavailable, got %s", resp.Error)
	}
}

func TestCORS(t *testing.T) {
	router := newTestRouter(seededMemory(t), RouterOptions{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "GET", "/accounts/10001/positions", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
