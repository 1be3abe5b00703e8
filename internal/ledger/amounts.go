package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

// AmountCalculator sums successful transaction amounts by type.
type AmountCalculator struct {
	transactions *TransactionLedger
}

func NewAmountCalculator(transactions *TransactionLedger) *AmountCalculator {
	return &AmountCalculator{transactions: transactions}
}

func (c *AmountCalculator) Original() decimal.Decimal {
	return c.sumByType(models.TransactionPreauthorization)
}

func (c *AmountCalculator) Captured() decimal.Decimal {
	return c.sumByType(models.TransactionCapture)
}

func (c *AmountCalculator) Refunded() decimal.Decimal {
	return c.sumByType(models.TransactionRefund)
}

func (c *AmountCalculator) Cancelled() decimal.Decimal {
	return c.sumByType(models.TransactionReversal)
}

// Remaining is what is still authorized and neither captured nor reversed.
func (c *AmountCalculator) Remaining() decimal.Decimal {
	return c.Original().Sub(c.Captured()).Sub(c.Cancelled())
}

func (c *AmountCalculator) Total() decimal.Decimal {
	return c.Captured().Sub(c.Refunded()).Add(c.Remaining())
}

func (c *AmountCalculator) sumByType(t models.TransactionType) decimal.Decimal {
	total := decimal.Zero
	successful, _ := c.transactions.Successful()
	for _, tx := range successful {
		if tx.Type == t {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Amounts is a point-in-time copy of every aggregate.
type Amounts struct {
	Original  decimal.Decimal `json:"original"`
	Captured  decimal.Decimal `json:"captured"`
	Refunded  decimal.Decimal `json:"refunded"`
	Cancelled decimal.Decimal `json:"cancelled"`
	Remaining decimal.Decimal `json:"remaining"`
	Total     decimal.Decimal `json:"total"`
}

func (c *AmountCalculator) Amounts() Amounts {
	return Amounts{
		Original:  c.Original(),
		Captured:  c.Captured(),
		Refunded:  c.Refunded(),
		Cancelled: c.Cancelled(),
		Remaining: c.Remaining(),
		Total:     c.Total(),
	}
}
