package ledger

import (
	"sort"
	"time"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

// ItemLedger projects the line item log, filtered through a
// TransactionLedger, into per-line quantities. Nothing is cached; every call
// recomputes from the snapshot.
type ItemLedger struct {
	actions      []models.LineItemAction
	transactions *TransactionLedger
}

func NewItemLedger(actions []models.LineItemAction, transactions *TransactionLedger) *ItemLedger {
	return &ItemLedger{actions: actions, transactions: transactions}
}

// ActionsInWindow returns the actions owned by a transaction in the
// reconciliation window. ok is false when either the actions or the
// transactions are unknown.
func (l *ItemLedger) ActionsInWindow() ([]models.LineItemAction, bool) {
	window, ok := l.transactions.ReconciliationWindow()
	return l.ownedBy(window, ok)
}

// ActionsSinceLastAuthorization returns the actions owned by successful
// transactions at or after the last preauthorization.
func (l *ItemLedger) ActionsSinceLastAuthorization() ([]models.LineItemAction, bool) {
	window, ok := l.transactions.SinceLastAuthorization()
	return l.ownedBy(window, ok)
}

func (l *ItemLedger) ownedBy(transactions []models.PaymentTransaction, ok bool) ([]models.LineItemAction, bool) {
	if !ok || l.actions == nil {
		return nil, false
	}
	ids := transactionIDs(transactions)
	owned := make([]models.LineItemAction, 0, len(l.actions))
	for _, action := range l.actions {
		if _, in := ids[action.PaymentTransactionID]; in {
			owned = append(owned, action)
		}
	}
	return owned, true
}

// ProjectByIdentity accumulates the windowed actions per line identity, in
// order of first appearance.
func (l *ItemLedger) ProjectByIdentity() []models.LineProjection {
	actions, _ := l.ActionsInWindow()
	return project(actions)
}

func project(actions []models.LineItemAction) []models.LineProjection {
	index := make(map[string]int)
	var projections []models.LineProjection
	for i := range actions {
		action := actions[i]
		if !action.Complete() {
			continue
		}
		id := action.Identity()
		pos, ok := index[id.Key()]
		if !ok {
			pos = len(projections)
			index[id.Key()] = pos
			projections = append(projections, models.LineProjection{Identity: id})
		}
		p := &projections[pos]
		switch action.ActionType {
		case models.ActionReserve:
			p.Reserved += action.Qty()
			if p.Source == nil {
				p.Source = &actions[i]
			}
		case models.ActionShip:
			p.Shipped += action.Qty()
		case models.ActionRelease:
			p.Released += action.Qty()
		case models.ActionReturn:
			p.Returned += action.Qty()
		}
	}
	return projections
}

// Current returns the stock still reserved and neither shipped nor released.
// Only actions since the last preauthorization count, so captures made under
// an earlier authorization do not reduce it.
func (l *ItemLedger) Current() []models.LineItem {
	actions, ok := l.ActionsSinceLastAuthorization()
	if !ok {
		return nil
	}
	var items []models.LineItem
	for _, p := range project(actions) {
		remaining := p.Remaining()
		if remaining <= 0 || p.Source == nil {
			continue
		}
		items = append(items, p.Source.Item(remaining))
	}
	return items
}

// ByActionType lists the windowed actions of one type as line items.
func (l *ItemLedger) ByActionType(actionType models.ActionType) []models.LineItem {
	var items []models.LineItem
	for _, action := range l.windowedByType(actionType) {
		items = append(items, action.Item(action.Qty()))
	}
	return items
}

func (l *ItemLedger) windowedByType(actionType models.ActionType) []models.LineItemAction {
	actions, ok := l.ActionsInWindow()
	if !ok {
		return nil
	}
	var filtered []models.LineItemAction
	for _, action := range actions {
		if action.ActionType == actionType && action.Complete() {
			filtered = append(filtered, action)
		}
	}
	return filtered
}

func (l *ItemLedger) Reserved() []models.LineItem {
	return l.ByActionType(models.ActionReserve)
}

func (l *ItemLedger) Captured() []models.LineItem {
	return l.ByActionType(models.ActionShip)
}

func (l *ItemLedger) Cancelled() []models.LineItem {
	return l.ByActionType(models.ActionRelease)
}

func (l *ItemLedger) Refunded() []models.LineItem {
	return l.ByActionType(models.ActionReturn)
}

// ByTransactionID lists every action owned by one transaction, whatever its
// status.
func (l *ItemLedger) ByTransactionID(id int64) []models.LineItem {
	var items []models.LineItem
	for _, action := range l.actions {
		if action.PaymentTransactionID != id || !action.Complete() {
			continue
		}
		items = append(items, action.Item(action.Qty()))
	}
	return items
}

// EligibleForCapture is the reserved quantity minus the released quantity per
// line identity. Shipments do not reduce it.
func (l *ItemLedger) EligibleForCapture() []models.LineItem {
	index := make(map[string]int)
	var items []models.LineItem
	for _, reserved := range l.Reserved() {
		key := reserved.Identity().Key()
		if pos, ok := index[key]; ok {
			items[pos].Quantity += reserved.Quantity
			continue
		}
		index[key] = len(items)
		items = append(items, reserved)
	}
	for _, released := range l.Cancelled() {
		if pos, ok := index[released.Identity().Key()]; ok {
			items[pos].Quantity -= released.Quantity
		}
	}
	eligible := items[:0]
	for _, item := range items {
		if item.Quantity > 0 {
			eligible = append(eligible, item)
		}
	}
	return eligible
}

type capturedRecord struct {
	item      models.LineItem
	timestamp time.Time
}

// EligibleForRefund returns, per captured record, the quantity not yet
// returned. Returns are charged against the oldest captures first, and each
// remaining record keeps its capture transaction id.
func (l *ItemLedger) EligibleForRefund() []models.LineItem {
	var (
		order    []string
		captured = make(map[string][]capturedRecord)
		returned = make(map[string]int)
	)
	for _, item := range l.Captured() {
		tx, ok := l.transactions.FindByID(item.PaymentTransactionID)
		if !ok {
			continue
		}
		key := item.Identity().Key()
		if _, seen := captured[key]; !seen {
			order = append(order, key)
		}
		captured[key] = append(captured[key], capturedRecord{item: item, timestamp: tx.Timestamp})
	}
	for _, item := range l.Refunded() {
		returned[item.Identity().Key()] += item.Quantity
	}

	var eligible []models.LineItem
	for _, key := range order {
		records := captured[key]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].timestamp.Before(records[j].timestamp)
		})
		consumed := returned[key]
		for _, record := range records {
			qty := record.item.Quantity
			if consumed >= qty {
				consumed -= qty
				continue
			}
			remaining := qty - consumed
			consumed = 0
			eligible = append(eligible, record.item.WithQuantity(remaining))
		}
	}
	return eligible
}
