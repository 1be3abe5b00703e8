package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/akylbek/payment-system/order-reconciler/internal/changeset"
	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/testutil"
)

type orchestratorFixture struct {
	gw        *fakeGateway
	repo      *fakeRepo
	lock      *fakeLock
	publisher *fakePublisher
	o         *Orchestrator
}

func newOrchestratorFixture(snapshot *models.OrderSnapshot) *orchestratorFixture {
	f := &orchestratorFixture{
		gw:        newFakeGateway(snapshot),
		repo:      &fakeRepo{},
		lock:      &fakeLock{},
		publisher: &fakePublisher{},
	}
	retry := NewRetryOrchestrator(f.gw, f.gw, WithSleep((&sleepRecorder{}).sleep))
	f.o = NewOrchestrator(f.gw, f.gw, f.repo, f.lock, f.publisher, retry)
	return f
}

func captureA(qty int) []models.ItemQuantity {
	return []models.ItemQuantity{{Identity: testutil.Identity("SKU-A", "100"), Quantity: qty}}
}

func TestOrchestrator_CaptureWithResubmission(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())
	f.gw.statuses = []models.TransactionStatus{models.TransactionError}

	run, err := f.o.Capture(context.Background(), "order-1", captureA(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != models.RunSucceeded || run.Rounds != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
	if !reflect.DeepEqual(run.TransactionIDs, []int64{101, 102}) {
		t.Fatalf("expected transactions [101 102], got %v", run.TransactionIDs)
	}
	if run.OrderStatus != models.OrderPartiallyCompleted {
		t.Fatalf("expected PartiallyCompleted, got %s", run.OrderStatus)
	}
	if len(f.repo.runs) != 1 || len(f.publisher.runs) != 1 {
		t.Fatalf("expected the run recorded and published once, got %d and %d", len(f.repo.runs), len(f.publisher.runs))
	}
	if f.lock.releases != 1 {
		t.Fatalf("expected the lock released, got %d releases", f.lock.releases)
	}
}

func TestOrchestrator_CaptureExhausted(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())
	f.gw.statuses = []models.TransactionStatus{
		models.TransactionError, models.TransactionError, models.TransactionError, models.TransactionError,
	}

	run, err := f.o.Capture(context.Background(), "order-1", captureA(1))

	var exhausted *ExhaustedRetriesError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedRetriesError, got %v", err)
	}
	if run.Status != models.RunExhaustedRetries || run.Rounds != DefaultMaxRetries {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(f.repo.runs) != 1 || f.repo.runs[0].Error == "" {
		t.Fatalf("expected the failed run recorded with its error")
	}
	if run.OrderStatus != models.OrderNew {
		t.Fatalf("expected New, got %s", run.OrderStatus)
	}
}

func TestOrchestrator_ValidationRejectedBeforeSending(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())

	run, err := f.o.Capture(context.Background(), "order-1", captureA(3))

	var exceeded *changeset.QuantityExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected QuantityExceededError, got %v", err)
	}
	if run != nil || len(f.gw.sent) != 0 || len(f.repo.runs) != 0 {
		t.Fatalf("expected nothing sent or recorded")
	}
	if f.lock.releases != 1 {
		t.Fatalf("expected the lock released after rejection")
	}
}

func TestOrchestrator_OrderLocked(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())
	release, err := f.lock.Acquire(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release()

	_, err = f.o.Capture(context.Background(), "order-1", captureA(1))
	if !errors.Is(err, interfaces.ErrOrderLocked) {
		t.Fatalf("expected ErrOrderLocked, got %v", err)
	}
	if f.gw.fetches != 0 {
		t.Fatalf("expected no fetch while locked")
	}
}

func TestOrchestrator_GatewayError(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())
	f.gw.sendErrs = []error{gateway.ParseError(http.StatusBadRequest,
		[]byte(`{"ErrorCode":"ORDER_HAS_BEEN_CANCELLED","ErrorMessage":"cancelled"}`))}

	run, err := f.o.Cancel(context.Background(), "order-1")
	if !errors.Is(err, gateway.ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}
	if run == nil || run.Status != models.RunFailed {
		t.Fatalf("expected a failed run, got %+v", run)
	}
	if len(f.repo.runs) != 1 {
		t.Fatalf("expected the failed run recorded")
	}
}

func TestOrchestrator_Cancel(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())

	run, err := f.o.Cancel(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kinds := f.gw.kinds(); !reflect.DeepEqual(kinds, []gateway.CommandKind{gateway.CommandCancelOrder}) {
		t.Fatalf("expected cancel_order, got %v", kinds)
	}
	if run.Rounds != 0 || len(run.TransactionIDs) != 0 {
		t.Fatalf("expected no retry for a cancel, got %+v", run)
	}
	payload := f.gw.sent[0].Payload.(models.CancelOrderPayload)
	if payload.OrderID != 1001 || payload.RequestID == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestOrchestrator_Update(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())

	_, err := f.o.Update(context.Background(), "order-1", []models.Change{
		models.DecreaseLine(testutil.Identity("SKU-A", "100"), 1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := f.gw.sent[0].Payload.(models.UpdateItemsPayload)
	quantities := map[string]int{}
	for _, item := range payload.Updates[0].OrderItems {
		quantities[item.MerchantReference] = item.Quantity
	}
	if quantities["SKU-A"] != 1 || quantities["SKU-B"] != 1 {
		t.Fatalf("unexpected update quantities %v", quantities)
	}
}

func TestOrchestrator_AddItemsRejectsEmpty(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())

	if _, err := f.o.AddItems(context.Background(), "order-1", nil); !changeset.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if len(f.gw.sent) != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestOrchestrator_RetryReversal(t *testing.T) {
	s := authorizedOrder()
	s.Transactions = append(s.Transactions,
		testutil.Tx(7, models.TransactionReversal, models.TransactionError, "50", 5))
	f := newOrchestratorFixture(s)

	if _, err := f.o.RetryReversal(context.Background(), "order-1", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := f.gw.sent[0].Payload.(models.RetryReversalPayload)
	if payload.PaymentReference != 7 {
		t.Fatalf("expected payment reference 7, got %d", payload.PaymentReference)
	}

	var unsupported *ledger.UnsupportedTransactionTypeError
	if _, err := f.o.RetryReversal(context.Background(), "order-1", 1); !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTransactionTypeError, got %v", err)
	}
	if _, err := f.o.RetryReversal(context.Background(), "order-1", 42); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestOrchestrator_HandleUnknownOperation(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())

	_, err := f.o.Handle(context.Background(), &models.ReconcileRequest{Operation: "refund_everything", MerchantReference: "order-1"})
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestOrchestrator_HandleMessage(t *testing.T) {
	f := newOrchestratorFixture(authorizedOrder())

	value, _ := json.Marshal(models.ReconcileRequest{
		Operation:         models.OperationCapture,
		MerchantReference: "order-1",
		Items:             captureA(1),
	})
	if err := f.o.handleMessage(context.Background(), value); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kinds := f.gw.kinds(); !reflect.DeepEqual(kinds, []gateway.CommandKind{gateway.CommandMarkShipped}) {
		t.Fatalf("expected mark_shipped, got %v", kinds)
	}

	if err := f.o.handleMessage(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
	if err := f.o.handleMessage(context.Background(), []byte(`{"operation":"cancel"}`)); err == nil {
		t.Fatalf("expected an error without a merchant reference")
	}
}
