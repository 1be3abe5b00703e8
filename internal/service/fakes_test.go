package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/testutil"
)

// fakeGateway keeps one order in memory and appends a transaction, plus the
// matching item actions, for every capture or return it accepts.
type fakeGateway struct {
	mu       sync.Mutex
	snapshot *models.OrderSnapshot
	nextID   int64
	sent     []gateway.Command
	fetches  int

	// statuses are handed out to created transactions in order; Success once
	// exhausted.
	statuses []models.TransactionStatus
	// sendErrs are returned by Send in order before any command is accepted.
	sendErrs []error
	fetchErr error
}

func newFakeGateway(snapshot *models.OrderSnapshot) *fakeGateway {
	return &fakeGateway{snapshot: snapshot, nextID: 100}
}

func (g *fakeGateway) FetchOrder(_ context.Context, _ string) (*models.OrderSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	copied := *g.snapshot
	if g.snapshot.Transactions != nil {
		copied.Transactions = append([]models.PaymentTransaction{}, g.snapshot.Transactions...)
	}
	if g.snapshot.Actions != nil {
		copied.Actions = append([]models.LineItemAction{}, g.snapshot.Actions...)
	}
	return &copied, nil
}

func (g *fakeGateway) Send(_ context.Context, cmd gateway.Command) (*gateway.RawResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, cmd)

	if len(g.sendErrs) > 0 {
		err := g.sendErrs[0]
		g.sendErrs = g.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	var (
		txType models.TransactionType
		action models.ActionType
		groups []models.TransactionGroup
	)
	switch payload := cmd.Payload.(type) {
	case models.MarkShippedPayload:
		txType, action, groups = models.TransactionCapture, models.ActionShip, payload.Shipments
	case models.ReturnItemsPayload:
		txType, action, groups = models.TransactionRefund, models.ActionReturn, payload.Returns
	default:
		return &gateway.RawResponse{Status: 200}, nil
	}

	g.nextID++
	id := g.nextID
	status := models.TransactionSuccess
	if len(g.statuses) > 0 {
		status = g.statuses[0]
		g.statuses = g.statuses[1:]
	}

	amount := decimal.Zero
	for _, group := range groups {
		for _, item := range group.OrderItems {
			amount = amount.Add(item.PricePerItemIncVat.Mul(decimal.NewFromInt(int64(item.Quantity))))
			g.snapshot.Actions = append(g.snapshot.Actions, actionFromItem(action, item, id))
		}
	}
	g.snapshot.Transactions = append(g.snapshot.Transactions, models.PaymentTransaction{
		ID:        id,
		Type:      txType,
		Status:    status,
		Amount:    amount,
		Currency:  "SEK",
		Timestamp: testutil.Base.Add(time.Duration(id) * time.Minute),
	})

	body, _ := json.Marshal(map[string][]models.CreatedTransaction{
		"PaymentTransactions": {{ID: id, Status: status}},
	})
	return &gateway.RawResponse{Status: 200, Body: body}, nil
}

func (g *fakeGateway) kinds() []gateway.CommandKind {
	g.mu.Lock()
	defer g.mu.Unlock()
	kinds := make([]gateway.CommandKind, 0, len(g.sent))
	for _, cmd := range g.sent {
		kinds = append(kinds, cmd.Kind)
	}
	return kinds
}

func actionFromItem(actionType models.ActionType, item models.LineItem, txID int64) models.LineItemAction {
	qty := item.Quantity
	inc := item.PricePerItemIncVat
	ex := item.PricePerItemExVat
	return models.LineItemAction{
		ActionType:           actionType,
		MerchantReference:    item.MerchantReference,
		Description:          item.Description,
		Type:                 item.Type,
		Quantity:             &qty,
		PricePerItemIncVat:   &inc,
		PricePerItemExVat:    &ex,
		VatRate:              item.VatRate,
		PaymentTransactionID: txID,
	}
}

type fakeRepo struct {
	mu   sync.Mutex
	runs []models.ReconciliationRun
}

func (r *fakeRepo) RecordRun(_ context.Context, run *models.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *fakeRepo) ListRuns(_ context.Context, _ string, _ int) ([]models.ReconciliationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ReconciliationRun{}, r.runs...), nil
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	releases int
}

func (l *fakeLock) Acquire(_ context.Context, ref string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[ref] {
		return nil, interfaces.ErrOrderLocked
	}
	l.held[ref] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, ref)
		l.releases++
	}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	runs []models.ReconciliationRun
}

func (p *fakePublisher) PublishRun(_ context.Context, run *models.ReconciliationRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, *run)
	return nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

// authorizedOrder is a preauthorized order with two units of SKU-A and one
// of SKU-B reserved.
func authorizedOrder() *models.OrderSnapshot {
	return testutil.Snapshot(
		[]models.PaymentTransaction{
			testutil.Tx(1, models.TransactionPreauthorization, models.TransactionSuccess, "250", 0),
		},
		[]models.LineItemAction{
			testutil.Action(models.ActionReserve, "SKU-A", "100", 2, 1),
			testutil.Action(models.ActionReserve, "SKU-B", "50", 1, 1),
		},
	)
}
