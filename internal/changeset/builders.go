// Package changeset turns caller intent into the transaction-grouped
// payloads the gateway accepts. Builders are pure: they read a ledger.Order
// and never perform I/O.
package changeset

import (
	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

// ApplyChanges applies delete/decrease/replace changes to the pool, keyed by
// line identity. Changes for lines missing from the pool are ignored.
func ApplyChanges(pool []models.LineItem, changes []models.Change) []models.LineItem {
	var order []string
	items := make(map[string]models.LineItem, len(pool))
	for _, item := range pool {
		key := item.Identity().Key()
		if _, ok := items[key]; !ok {
			order = append(order, key)
		}
		items[key] = item
	}

	for _, change := range changes {
		key := change.Identity.Key()
		item, ok := items[key]
		if !ok {
			continue
		}
		switch change.Type {
		case models.ChangeDelete:
			delete(items, key)
		case models.ChangeDecrease:
			if qty := item.Quantity - change.Quantity; qty <= 0 {
				delete(items, key)
			} else {
				items[key] = item.WithQuantity(qty)
			}
		case models.ChangeReplace:
			if change.Quantity <= 0 {
				delete(items, key)
			} else {
				items[key] = item.WithQuantity(change.Quantity)
			}
		}
	}

	var updated []models.LineItem
	for _, key := range order {
		if item, ok := items[key]; ok {
			updated = append(updated, item)
		}
	}
	return updated
}

// BuildUpdate applies changes to the lines eligible for capture and groups
// what remains by owning transaction.
func BuildUpdate(order *ledger.Order, changes []models.Change) models.UpdateItemsPayload {
	updated := ApplyChanges(order.Items().EligibleForCapture(), changes)
	return models.UpdateItemsPayload{
		RequestID: models.NewRequestID(),
		OrderID:   order.OrderID(),
		Currency:  order.Currency(),
		Updates:   models.GroupByTransaction(updated),
	}
}

// BuildReturn allocates the requested returns across the refundable
// captures, oldest first.
func BuildReturn(order *ledger.Order, returns []models.ItemQuantity) (models.ReturnItemsPayload, error) {
	allocated, err := Allocate(order.Items().EligibleForRefund(), returns, poolRefundable)
	if err != nil {
		return models.ReturnItemsPayload{}, err
	}
	return models.ReturnItemsPayload{
		RequestID: models.NewRequestID(),
		OrderID:   order.OrderID(),
		Currency:  order.Currency(),
		Returns:   models.GroupByTransaction(allocated),
	}, nil
}

// BuildCapture allocates the requested captures across the current lines.
func BuildCapture(order *ledger.Order, captures []models.ItemQuantity) (models.MarkShippedPayload, error) {
	allocated, err := Allocate(order.Items().Current(), captures, poolCurrent)
	if err != nil {
		return models.MarkShippedPayload{}, err
	}
	return models.MarkShippedPayload{
		RequestID: models.NewRequestID(),
		OrderID:   order.OrderID(),
		Currency:  order.Currency(),
		Shipments: models.GroupByTransaction(allocated),
	}, nil
}
