package changeset

import (
	"fmt"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

const (
	poolCurrent    = "current"
	poolRefundable = "captured"
)

// Allocate splits each requested quantity across the pool records of the
// same line identity, consuming them in pool order. A request that the pool
// cannot satisfy fails as a whole; nothing is allocated partially.
func Allocate(pool []models.LineItem, requests []models.ItemQuantity, poolName string) ([]models.LineItem, error) {
	byIdentity := make(map[string][]models.LineItem)
	for _, item := range pool {
		key := item.Identity().Key()
		byIdentity[key] = append(byIdentity[key], item)
	}

	var allocated []models.LineItem
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("item %s: %w", req.Identity, ErrInvalidQuantity)
		}
		records, ok := byIdentity[req.Identity.Key()]
		if !ok {
			return nil, &LineNotFoundError{Identity: req.Identity, Pool: poolName}
		}

		available := 0
		for _, record := range records {
			available += record.Quantity
		}
		if req.Quantity > available {
			return nil, &QuantityExceededError{
				Identity:  req.Identity,
				Pool:      poolName,
				Requested: req.Quantity,
				Available: available,
			}
		}

		remaining := req.Quantity
		for i := range records {
			if remaining == 0 {
				break
			}
			take := min(remaining, records[i].Quantity)
			if take == 0 {
				continue
			}
			remaining -= take
			records[i].Quantity -= take
			allocated = append(allocated, records[i].WithQuantity(take))
		}
	}
	return allocated, nil
}
