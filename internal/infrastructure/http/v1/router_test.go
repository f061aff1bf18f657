package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/events"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/domain/reconcile"
	v1 "supplyhub/internal/infrastructure/http/v1"
	"supplyhub/internal/infrastructure/http/v1/handlers"
	"supplyhub/internal/infrastructure/idempotency"
	"supplyhub/internal/infrastructure/numerator"
	"supplyhub/internal/infrastructure/storage/local"
	"supplyhub/pkg/logger"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := local.New()
	txm := local.NewTxManager(store)
	orderRepo := local.NewOrderRepo(store)
	products := local.NewProductRepo(store)
	suppliers := local.NewSupplierRepo(store)
	ledger := local.NewLedgerRepo(store)

	reconciler := reconcile.New(reconcile.Deps{
		Products:  products,
		Ledger:    ledger,
		Items:     orderRepo,
		TxManager: txm,
	}, reconcile.DefaultConfig())

	svc := orders.NewService(orders.Deps{
		Repo:       orderRepo,
		TxManager:  txm,
		Numerator:  numerator.New(local.NewSequenceRepo(store)),
		Suppliers:  suppliers,
		Products:   products,
		Movements:  ledger,
		Reconciler: reconciler,
		Publisher:  events.NewBus(),
	}, orders.DefaultConfig())

	return v1.NewRouter(v1.RouterConfig{
		Logger:      logger.Nop(),
		Orders:      svc,
		Products:    products,
		Ledger:      ledger,
		Suppliers:   suppliers,
		TxManager:   txm,
		Idempotency: idempotency.NewMemory(time.Hour),
		Checks:      map[string]handlers.Pinger{"storage": store},
		Info:        handlers.AppInfo{App: "supplyhub", Version: "test", Driver: "local"},
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type createdBody struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
}

func TestSupplierOrderLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPut, "/api/v1/suppliers/3", map[string]any{"name": "Grossiste Nord"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/products", map[string]any{
		"name":           "Riz 5kg",
		"purchase_price": "4.00",
		"sale_price":     "6.00",
		"stock":          5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[inventory.Product](t, rec)
	require.Positive(t, int64(product.ID))

	rec = do(t, h, http.MethodPost, "/api/v1/supplier-orders", map[string]any{
		"supplier_id": "3",
		"items": []map[string]any{
			{"product_id": product.ID, "quantity_ordered": 10, "unit_price": "4.50"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createdBody](t, rec)
	assert.Regexp(t, `^PO-\d{4}-000001$`, created.OrderNumber)

	rec = do(t, h, http.MethodGet, "/api/v1/supplier-orders?supplierId=3&status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[struct {
		Items []orders.OrderView `json:"items"`
	}](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Grossiste Nord", list.Items[0].SupplierName)
	assert.True(t, list.Items[0].TotalAmount.Equal(types.MustMoney("45.00")))

	rec = do(t, h, http.MethodPost, "/api/v1/supplier-orders/"+created.ID+"/status", map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	change := decode[orders.StatusChange](t, rec)
	assert.Equal(t, orders.StatusPending, change.OldStatus)
	assert.Equal(t, orders.StatusConfirmed, change.NewStatus)

	rec = do(t, h, http.MethodGet, "/api/v1/products/"+product.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	after := decode[inventory.Product](t, rec)
	assert.Equal(t, types.NewQuantity(15), after.Stock)

	rec = do(t, h, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/lots", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lots := decode[struct {
		Items []inventory.StockLot `json:"items"`
	}](t, rec)
	assert.Len(t, lots.Items, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/supplier-orders/"+created.ID+"/movements", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	movements := decode[struct {
		Items []inventory.StockMovement `json:"items"`
	}](t, rec)
	require.Len(t, movements.Items, 1)
	assert.Equal(t, inventory.MovementIn, movements.Items[0].MovementType)
}

func TestSupplierOrderErrors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed id",
			method:     http.MethodGet,
			path:       "/api/v1/supplier-orders/not-a-uuid",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "unknown order",
			method:     http.MethodGet,
			path:       "/api/v1/supplier-orders/6f1c2a57-0c1e-4d4e-9a7b-2f0c1f3f5d11",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "missing supplier",
			method:     http.MethodPost,
			path:       "/api/v1/supplier-orders",
			body:       map[string]any{"items": []any{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "unknown status filter",
			method:     http.MethodGet,
			path:       "/api/v1/supplier-orders?status=LOST",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "bad date filter",
			method:     http.MethodGet,
			path:       "/api/v1/supplier-orders?dateFrom=yesterday",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "unknown product",
			method:     http.MethodGet,
			path:       "/api/v1/products/999",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[errorBody](t, rec).Code)
		})
	}
}

func TestIdempotentCreateIsReplayed(t *testing.T) {
	h := newTestRouter(t)
	body := map[string]any{
		"supplier_id": 3,
		"items": []map[string]any{
			{"product_name": "Farine T55", "quantity_ordered": 2, "unit_price": "1.20"},
		},
	}

	first := do(t, h, http.MethodPost, "/api/v1/supplier-orders", body, "X-Idempotency-Key", "create-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := do(t, h, http.MethodPost, "/api/v1/supplier-orders", body, "X-Idempotency-Key", "create-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := do(t, h, http.MethodGet, "/api/v1/supplier-orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []orders.OrderView `json:"items"`
	}](t, rec)
	assert.Len(t, list.Items, 1)
}

func TestHealthProbes(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"ok","checks":{"storage":"healthy"}}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/health/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]any](t, rec)
	assert.Equal(t, "supplyhub", info["app"])
	assert.Equal(t, "local", info["driver"])
}
