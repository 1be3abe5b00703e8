package ledger

import (
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

type StatusCalculator struct {
	amounts *AmountCalculator
}

func NewStatusCalculator(amounts *AmountCalculator) *StatusCalculator {
	return &StatusCalculator{amounts: amounts}
}

// Calculate derives the order status. The first matching rule wins.
func (c *StatusCalculator) Calculate() models.OrderStatus {
	a := c.amounts.Amounts()

	switch {
	case a.Original.Equal(a.Cancelled):
		return models.OrderCancelled
	case a.Refunded.Equal(a.Original):
		return models.OrderRefunded
	case a.Total.IsPositive() && !a.Refunded.IsZero():
		return models.OrderPartiallyRefunded
	case !a.Captured.IsZero() && !a.Remaining.IsZero():
		return models.OrderPartiallyCompleted
	case a.Remaining.IsZero():
		return models.OrderCompleted
	default:
		return models.OrderNew
	}
}
