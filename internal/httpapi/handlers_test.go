package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/service"
	"udhaar/backend/internal/store/memory"
)

const testManagerPIN = "482913"

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, service.Options{Location: time.FixedZone("IST", 5*3600+1800), Logger: quiet})
	auth := NewAuthManager("test-secret-key", time.Hour, testManagerPIN)

	return New(svc, auth, "*", quiet)
}

func mustToken(t *testing.T, api *API, role string) string {
	t.Helper()
	token, _, err := api.auth.IssueToken("meena", role, memory.SeedOrgID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func saleDraft(productID string, qty int64, price, cost string, mode domain.PaymentMode) domain.SaleDraft {
	q := decimal.NewFromInt(qty)
	lineTotal := decimal.RequireFromString(price).Mul(q)
	lineCost := decimal.RequireFromString(cost).Mul(q)
	return domain.SaleDraft{
		Items: []domain.SaleDraftItem{{
			ProductID:     productID,
			Quantity:      int(qty),
			SellingPrice:  decimal.RequireFromString(price),
			UnitCost:      decimal.RequireFromString(cost),
			LineTotal:     lineTotal,
			LineCostTotal: lineCost,
		}},
		SubTotal:    lineTotal,
		GrandTotal:  lineTotal,
		TotalCost:   lineCost,
		TotalPaid:   lineTotal,
		PaymentMode: mode,
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api, http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestRecordSaleThenReadBack(t *testing.T) {
	api := newTestAPI(t)
	token := mustToken(t, api, RoleStaff)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, saleDraft("prod-parle-g", 2, "25", "21", domain.PaymentCash))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	receipt := decodeBody(t, rec)
	invoice, _ := receipt["invoice_number"].(string)
	if !strings.HasPrefix(invoice, "INV-") || !strings.HasSuffix(invoice, "-0001") {
		t.Fatalf("unexpected invoice number %q", invoice)
	}
	saleID, _ := receipt["sale_id"].(string)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sales/"+saleID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading sale, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sales", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing sales, got %d", rec.Code)
	}
	if sales, _ := decodeBody(t, rec)["sales"].([]any); len(sales) != 1 {
		t.Fatalf("expected one sale today, got %d", len(sales))
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/stats/daily", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for daily stats, got %d", rec.Code)
	}
	stats := decodeBody(t, rec)
	if stats["total_bills"] != float64(1) || stats["total_sales_amount"] != "50" {
		t.Fatalf("unexpected daily stats %v", stats)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/prod-parle-g", token, nil)
	product, _ := decodeBody(t, rec)["product"].(map[string]any)
	if product["current_stock"] != float64(118) {
		t.Fatalf("expected stock 118 after sale, got %v", product["current_stock"])
	}
}

func TestRecordSaleErrorsMapToStatus(t *testing.T) {
	api := newTestAPI(t)
	token := mustToken(t, api, RoleStaff)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, saleDraft("prod-sunflower-oil", 5, "155", "128", domain.PaymentCash))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, saleDraft("prod-missing", 1, "10", "5", domain.PaymentCash))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.SaleDraft{PaymentMode: domain.PaymentCash})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sale, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"items":[],"surprise":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestCreateProductIsOwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	req := domain.ProductCreateRequest{
		Name:         "Sugar 1kg",
		CostPrice:    decimal.RequireFromString("42"),
		SellingPrice: decimal.RequireFromString("48"),
		InitialStock: 20,
	}

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", mustToken(t, api, RoleStaff), req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/products", mustToken(t, api, RoleOwner), req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for owner, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestStockAdjustmentPermissions(t *testing.T) {
	api := newTestAPI(t)
	path := "/api/v1/products/prod-tata-salt/adjustments"
	count := domain.StockAdjustmentRequest{Type: domain.MovementAdjustment, Quantity: 55, Reason: "monthly count"}

	rec := doJSON(t, api, http.MethodPost, path, mustToken(t, api, RoleStaff), domain.StockAdjustmentRequest{Type: domain.MovementIn, Quantity: 12})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected staff to receive stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, path, mustToken(t, api, RoleStaff), count)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff count correction, got %d", rec.Code)
	}

	owner := mustToken(t, api, RoleOwner)
	rec = doJSON(t, api, http.MethodPost, path, owner, count)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without manager pin, got %d", rec.Code)
	}

	raw, _ := json.Marshal(count)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+owner)
	req.Header.Set("X-Manager-PIN", testManagerPIN)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 with manager pin, got %d (body: %s)", res.Code, res.Body.String())
	}
	movement, _ := decodeBody(t, res)["movement"].(map[string]any)
	if movement["previous_stock"] != float64(72) || movement["new_stock"] != float64(55) {
		t.Fatalf("unexpected movement %v", movement)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/prod-tata-salt/movements", owner, nil)
	if movements, _ := decodeBody(t, rec)["movements"].([]any); len(movements) != 2 {
		t.Fatalf("expected two movements, got %d", len(movements))
	}
}

func TestCustomerCreditFlow(t *testing.T) {
	api := newTestAPI(t)
	token := mustToken(t, api, RoleStaff)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/customers", token, domain.CustomerCreateRequest{
		Name:           "Suresh",
		Phone:          "9811122233",
		OpeningBalance: decimal.RequireFromString("100"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	customer, _ := decodeBody(t, rec)["customer"].(map[string]any)
	customerID, _ := customer["id"].(string)

	rec = doJSON(t, api, http.MethodPost, "/api/v1/customers/"+customerID+"/payments", token, domain.PaymentRequest{Amount: decimal.RequireFromString("40")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for payment, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	entry, _ := decodeBody(t, rec)["transaction"].(map[string]any)
	if entry["balance_after"] != "60" || entry["type"] != "PAYMENT" {
		t.Fatalf("unexpected ledger entry %v", entry)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/customers/"+customerID+"/reconcile", token, nil)
	if report := decodeBody(t, rec); report["consistent"] != true || report["entries"] != float64(2) {
		t.Fatalf("unexpected reconciliation %v", report)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/customers/cust-nobody/payments", token, domain.PaymentRequest{Amount: decimal.RequireFromString("40")})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown customer, got %d", rec.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodDelete, "/healthz", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
