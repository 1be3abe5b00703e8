package ledger

import (
	"time"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

// TransactionLedger classifies the payment transactions of one snapshot.
// Methods that return a slice also return ok=false when the snapshot carried
// no transaction list at all.
type TransactionLedger struct {
	transactions []models.PaymentTransaction
}

func NewTransactionLedger(transactions []models.PaymentTransaction) *TransactionLedger {
	return &TransactionLedger{transactions: transactions}
}

func (l *TransactionLedger) All() ([]models.PaymentTransaction, bool) {
	return l.transactions, l.transactions != nil
}

func (l *TransactionLedger) Successful() ([]models.PaymentTransaction, bool) {
	if l.transactions == nil {
		return nil, false
	}
	successful := make([]models.PaymentTransaction, 0, len(l.transactions))
	for _, tx := range l.transactions {
		if tx.Status == models.TransactionSuccess {
			successful = append(successful, tx)
		}
	}
	return successful, true
}

// lastAuthorization returns the timestamp of the newest successful
// preauthorization.
func (l *TransactionLedger) lastAuthorization() (time.Time, bool) {
	var (
		last  time.Time
		found bool
	)
	successful, _ := l.Successful()
	for _, tx := range successful {
		if tx.Type != models.TransactionPreauthorization {
			continue
		}
		if !found || tx.Timestamp.After(last) {
			last = tx.Timestamp
			found = true
		}
	}
	return last, found
}

// SinceLastAuthorization returns the successful transactions at or after the
// newest successful preauthorization, or every successful transaction when
// the order was never preauthorized.
func (l *TransactionLedger) SinceLastAuthorization() ([]models.PaymentTransaction, bool) {
	successful, ok := l.Successful()
	if !ok {
		return nil, false
	}
	last, found := l.lastAuthorization()
	if !found {
		return successful, true
	}
	window := make([]models.PaymentTransaction, 0, len(successful))
	for _, tx := range successful {
		if !tx.Timestamp.Before(last) {
			window = append(window, tx)
		}
	}
	return window, true
}

// ReconciliationWindow is SinceLastAuthorization plus the successful
// captures, reversals and refunds made before the last reauthorization, so
// earlier captures stay refundable.
func (l *TransactionLedger) ReconciliationWindow() ([]models.PaymentTransaction, bool) {
	successful, ok := l.Successful()
	if !ok {
		return nil, false
	}
	last, found := l.lastAuthorization()
	if !found {
		return successful, true
	}
	window := make([]models.PaymentTransaction, 0, len(successful))
	for _, tx := range successful {
		if !tx.Timestamp.Before(last) || carriesOver(tx.Type) {
			window = append(window, tx)
		}
	}
	return window, true
}

func carriesOver(t models.TransactionType) bool {
	switch t {
	case models.TransactionCapture, models.TransactionReversal, models.TransactionRefund:
		return true
	}
	return false
}

func (l *TransactionLedger) FindByID(id int64) (models.PaymentTransaction, bool) {
	for _, tx := range l.transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return models.PaymentTransaction{}, false
}

func (l *TransactionLedger) StatusOf(id int64) (models.TransactionStatus, bool) {
	tx, ok := l.FindByID(id)
	return tx.Status, ok
}

func (l *TransactionLedger) TypeOf(id int64) (models.TransactionType, bool) {
	tx, ok := l.FindByID(id)
	return tx.Type, ok
}

func transactionIDs(transactions []models.PaymentTransaction) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(transactions))
	for _, tx := range transactions {
		ids[tx.ID] = struct{}{}
	}
	return ids
}
