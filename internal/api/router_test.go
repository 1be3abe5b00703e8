package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/akylbek/payment-system/order-reconciler/internal/api"
	"github.com/akylbek/payment-system/order-reconciler/internal/changeset"
	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/idempotency"
	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/testutil"
)

type fakeReconciler struct {
	mu       sync.Mutex
	calls    int
	captured []models.ItemQuantity
	changes  []models.Change
	err      error
}

func (f *fakeReconciler) record() (*models.ReconciliationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.ReconciliationRun{
		ID:                "run-1",
		MerchantReference: "order-1",
		Status:            models.RunSucceeded,
		TransactionIDs:    []int64{int64(100 + f.calls)},
	}, nil
}

func (f *fakeReconciler) Summary(_ context.Context, ref string) (ledger.Summary, error) {
	if f.err != nil {
		return ledger.Summary{}, f.err
	}
	return ledger.NewOrder(testutil.Snapshot(
		[]models.PaymentTransaction{
			testutil.Tx(1, models.TransactionPreauthorization, models.TransactionSuccess, "100", 0),
		},
		[]models.LineItemAction{testutil.Action(models.ActionReserve, "SKU-A", "100", 1, 1)},
	)).Summary(), nil
}

func (f *fakeReconciler) Capture(_ context.Context, _ string, items []models.ItemQuantity) (*models.ReconciliationRun, error) {
	f.mu.Lock()
	f.captured = items
	f.mu.Unlock()
	return f.record()
}

func (f *fakeReconciler) Return(_ context.Context, _ string, _ []models.ItemQuantity) (*models.ReconciliationRun, error) {
	return f.record()
}

func (f *fakeReconciler) Update(_ context.Context, _ string, changes []models.Change) (*models.ReconciliationRun, error) {
	f.mu.Lock()
	f.changes = changes
	f.mu.Unlock()
	return f.record()
}

func (f *fakeReconciler) Cancel(_ context.Context, _ string) (*models.ReconciliationRun, error) {
	return f.record()
}

func (f *fakeReconciler) AddItems(_ context.Context, _ string, _ []models.LineItem) (*models.ReconciliationRun, error) {
	return f.record()
}

func (f *fakeReconciler) UpdateReference(_ context.Context, _, _ string) (*models.ReconciliationRun, error) {
	return f.record()
}

func (f *fakeReconciler) RetryReversal(_ context.Context, _ string, _ int64) (*models.ReconciliationRun, error) {
	return f.record()
}

type fakeRunRepo struct{}

func (fakeRunRepo) RecordRun(context.Context, *models.ReconciliationRun) error { return nil }

func (fakeRunRepo) ListRuns(_ context.Context, ref string, limit int) ([]models.ReconciliationRun, error) {
	return []models.ReconciliationRun{{ID: "run-1", MerchantReference: ref, Status: models.RunSucceeded}}, nil
}

var _ interfaces.ReconciliationRepository = fakeRunRepo{}

func newTestRouter(t *testing.T, reconciler *fakeReconciler) http.Handler {
	t.Helper()
	store, err := idempotency.New(filepath.Join(t.TempDir(), "idempotency.db"))
	if err != nil {
		t.Fatalf("failed to open idempotency store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return api.NewRouter(reconciler, fakeRunRepo{}, store)
}

func do(router http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

const captureBody = `{"items":[{"merchant_reference":"SKU-A","unit_price":"100.00","quantity":2}]}`

func TestGetOrder(t *testing.T) {
	router := newTestRouter(t, &fakeReconciler{})

	w := do(router, http.MethodGet, "/orders/order-1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != string(models.OrderNew) {
		t.Fatalf("expected status New, got %v", body["status"])
	}
	if current, ok := body["current"].([]interface{}); !ok || len(current) != 1 {
		t.Fatalf("expected one current line, got %v", body["current"])
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	router := newTestRouter(t, &fakeReconciler{err: gateway.ErrOrderNotFound})

	w := do(router, http.MethodGet, "/orders/missing", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if code := decode(t, w)["code"]; code != "order_not_found" {
		t.Fatalf("expected order_not_found, got %v", code)
	}
}

func TestCapture(t *testing.T) {
	reconciler := &fakeReconciler{}
	router := newTestRouter(t, reconciler)

	w := do(router, http.MethodPost, "/orders/order-1/captures", captureBody, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(reconciler.captured) != 1 {
		t.Fatalf("expected one requested line, got %d", len(reconciler.captured))
	}
	got := reconciler.captured[0]
	if got.Identity.Key() != testutil.Identity("SKU-A", "100").Key() || got.Quantity != 2 {
		t.Fatalf("unexpected requested line %+v", got)
	}
}

func TestCapture_InvalidBody(t *testing.T) {
	reconciler := &fakeReconciler{}
	router := newTestRouter(t, reconciler)

	for _, body := range []string{`{"items":[]}`, `{`, `{"items":[{"quantity":1}]}`} {
		w := do(router, http.MethodPost, "/orders/order-1/captures", body, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
	}
	if reconciler.calls != 0 {
		t.Fatalf("expected no reconciliation for invalid bodies")
	}
}

func TestCapture_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "quantity exceeded",
			err:    &changeset.QuantityExceededError{Identity: testutil.Identity("SKU-A", "100"), Pool: "current", Requested: 3, Available: 1},
			status: http.StatusUnprocessableEntity,
			code:   "quantity_exceeded",
		},
		{
			name:   "line not found",
			err:    &changeset.LineNotFoundError{Identity: testutil.Identity("SKU-A", "100"), Pool: "current"},
			status: http.StatusUnprocessableEntity,
			code:   "line_not_found",
		},
		{
			name:   "order locked",
			err:    interfaces.ErrOrderLocked,
			status: http.StatusConflict,
			code:   "order_locked",
		},
		{
			name:   "gateway rejected item",
			err:    gateway.ParseError(http.StatusBadRequest, []byte(`{"ErrorCode":"INVALID_ITEM","ErrorMessage":"no"}`)),
			status: http.StatusBadRequest,
			code:   "invalid_item",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeReconciler{err: tt.err})
			w := do(router, http.MethodPost, "/orders/order-1/captures", captureBody, "")
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if code := decode(t, w)["code"]; code != tt.code {
				t.Fatalf("expected code %s, got %v", tt.code, code)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	reconciler := &fakeReconciler{}
	router := newTestRouter(t, reconciler)

	body := `{"changes":[{"type":"Decrease","merchant_reference":"SKU-A","unit_price":"100","quantity":1}]}`
	w := do(router, http.MethodPost, "/orders/order-1/updates", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(reconciler.changes) != 1 || reconciler.changes[0].Type != models.ChangeDecrease {
		t.Fatalf("unexpected changes %+v", reconciler.changes)
	}

	w = do(router, http.MethodPost, "/orders/order-1/updates", `{"changes":[{"type":"Grow","merchant_reference":"SKU-A"}]}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown change type, got %d", w.Code)
	}
}

func TestRetryReversal_InvalidID(t *testing.T) {
	router := newTestRouter(t, &fakeReconciler{})

	w := do(router, http.MethodPost, "/orders/order-1/transactions/abc/retry-reversal", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListRuns(t *testing.T) {
	router := newTestRouter(t, &fakeReconciler{})

	w := do(router, http.MethodGet, "/orders/order-1/runs?limit=10", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if runs, ok := decode(t, w)["runs"].([]interface{}); !ok || len(runs) != 1 {
		t.Fatalf("expected one run, got %s", w.Body.String())
	}
}

func TestIdempotentReplay(t *testing.T) {
	reconciler := &fakeReconciler{}
	router := newTestRouter(t, reconciler)

	first := do(router, http.MethodPost, "/orders/order-1/captures", captureBody, "key-1")
	second := do(router, http.MethodPost, "/orders/order-1/captures", captureBody, "key-1")

	if reconciler.calls != 1 {
		t.Fatalf("expected one reconciliation, got %d", reconciler.calls)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected the second response to be replayed")
	}
	if first.Body.String() != second.Body.String() || first.Code != second.Code {
		t.Fatalf("expected identical responses, got %q and %q", first.Body.String(), second.Body.String())
	}

	conflict := do(router, http.MethodPost, "/orders/order-1/captures", `{"items":[{"merchant_reference":"SKU-B","unit_price":"1","quantity":1}]}`, "key-1")
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a reused key, got %d", conflict.Code)
	}
}

func TestIdempotency_LockedResponseNotStored(t *testing.T) {
	reconciler := &fakeReconciler{err: interfaces.ErrOrderLocked}
	router := newTestRouter(t, reconciler)

	do(router, http.MethodPost, "/orders/order-1/cancel", "", "key-2")
	reconciler.mu.Lock()
	reconciler.err = nil
	reconciler.mu.Unlock()

	w := do(router, http.MethodPost, "/orders/order-1/cancel", "", "key-2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected the retried request to run, got %d", w.Code)
	}
	if reconciler.calls != 2 {
		t.Fatalf("expected two reconciliations, got %d", reconciler.calls)
	}
}
