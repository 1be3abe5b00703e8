package ledger

import (
	"errors"
	"fmt"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

var ErrTransactionNotFound = errors.New("payment transaction not found")

// UnsupportedTransactionTypeError is returned when the intent of a
// transaction other than a capture or refund is requested.
type UnsupportedTransactionTypeError struct {
	TransactionID int64
	Type          models.TransactionType
}

func (e *UnsupportedTransactionTypeError) Error() string {
	return fmt.Sprintf("unsupported transaction type %q for transaction %d", e.Type, e.TransactionID)
}

// Order bundles the derived views over one snapshot.
type Order struct {
	snapshot     *models.OrderSnapshot
	transactions *TransactionLedger
	items        *ItemLedger
	amounts      *AmountCalculator
	status       *StatusCalculator
}

func NewOrder(snapshot *models.OrderSnapshot) *Order {
	transactions := NewTransactionLedger(snapshot.Transactions)
	amounts := NewAmountCalculator(transactions)
	return &Order{
		snapshot:     snapshot,
		transactions: transactions,
		items:        NewItemLedger(snapshot.Actions, transactions),
		amounts:      amounts,
		status:       NewStatusCalculator(amounts),
	}
}

func (o *Order) OrderID() int64            { return o.snapshot.OrderID }
func (o *Order) MerchantReference() string { return o.snapshot.MerchantReference }
func (o *Order) Currency() string          { return o.snapshot.Currency }

func (o *Order) Transactions() *TransactionLedger { return o.transactions }
func (o *Order) Items() *ItemLedger               { return o.items }
func (o *Order) Amounts() *AmountCalculator       { return o.amounts }
func (o *Order) Status() models.OrderStatus       { return o.status.Calculate() }

// TransactionChanges is the intent recovered from an existing transaction.
type TransactionChanges struct {
	Operation models.Operation
	Items     []models.ItemQuantity
}

// ChangesForTransaction rebuilds the capture or return request that produced
// a transaction, so it can be submitted again.
func (o *Order) ChangesForTransaction(id int64) (TransactionChanges, error) {
	tx, ok := o.transactions.FindByID(id)
	if !ok {
		return TransactionChanges{}, fmt.Errorf("transaction %d: %w", id, ErrTransactionNotFound)
	}

	var changes TransactionChanges
	switch tx.Type {
	case models.TransactionCapture:
		changes.Operation = models.OperationCapture
	case models.TransactionRefund:
		changes.Operation = models.OperationReturn
	default:
		return TransactionChanges{}, &UnsupportedTransactionTypeError{TransactionID: id, Type: tx.Type}
	}

	for _, item := range o.items.ByTransactionID(id) {
		changes.Items = append(changes.Items, models.ItemQuantity{
			Identity: item.Identity(),
			Quantity: item.Quantity,
		})
	}
	return changes, nil
}

// Summary is every derived view of the order, as served by the API.
type Summary struct {
	OrderID             int64              `json:"order_id"`
	MerchantReference   string             `json:"merchant_reference"`
	Currency            string             `json:"currency"`
	Status              models.OrderStatus `json:"status"`
	Amounts             Amounts            `json:"amounts"`
	Current             []models.LineItem  `json:"current"`
	Reserved            []models.LineItem  `json:"reserved"`
	Captured            []models.LineItem  `json:"captured"`
	Cancelled           []models.LineItem  `json:"cancelled"`
	Refunded            []models.LineItem  `json:"refunded"`
	EligibleForCapture  []models.LineItem  `json:"eligible_for_capture"`
	EligibleForRefund   []models.LineItem  `json:"eligible_for_refund"`
	TransactionsUnknown bool               `json:"transactions_unknown,omitempty"`
}

func (o *Order) Summary() Summary {
	_, known := o.transactions.All()
	return Summary{
		OrderID:             o.OrderID(),
		MerchantReference:   o.MerchantReference(),
		Currency:            o.Currency(),
		Status:              o.Status(),
		Amounts:             o.amounts.Amounts(),
		Current:             o.items.Current(),
		Reserved:            o.items.Reserved(),
		Captured:            o.items.Captured(),
		Cancelled:           o.items.Cancelled(),
		Refunded:            o.items.Refunded(),
		EligibleForCapture:  o.items.EligibleForCapture(),
		EligibleForRefund:   o.items.EligibleForRefund(),
		TransactionsUnknown: !known,
	}
}
