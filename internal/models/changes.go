package models

import (
	"github.com/google/uuid"
)

type ChangeType string

const (
	ChangeDelete   ChangeType = "Delete"
	ChangeDecrease ChangeType = "Decrease"
	ChangeReplace  ChangeType = "Replace"
)

// Change is a caller's intent against the quantity of one order line.
type Change struct {
	Type     ChangeType   `json:"type"`
	Identity LineIdentity `json:"identity"`
	Quantity int          `json:"quantity,omitempty"`
}

func DeleteLine(id LineIdentity) Change {
	return Change{Type: ChangeDelete, Identity: id}
}

func DecreaseLine(id LineIdentity, qty int) Change {
	return Change{Type: ChangeDecrease, Identity: id, Quantity: qty}
}

func ReplaceLine(id LineIdentity, qty int) Change {
	return Change{Type: ChangeReplace, Identity: id, Quantity: qty}
}

// ItemQuantity requests qty units of a line, used for returns and captures.
type ItemQuantity struct {
	Identity LineIdentity `json:"identity"`
	Quantity int          `json:"quantity"`
}

// TransactionGroup is the set of lines a request applies to one payment
// transaction.
type TransactionGroup struct {
	PaymentTransactionID int64      `json:"PaymentTransactionId"`
	OrderItems           []LineItem `json:"OrderItems"`
}

type UpdateItemsPayload struct {
	RequestID string             `json:"RequestId"`
	OrderID   int64              `json:"OrderId"`
	Currency  string             `json:"Currency"`
	Updates   []TransactionGroup `json:"Updates"`
}

type ReturnItemsPayload struct {
	RequestID string             `json:"RequestId"`
	OrderID   int64              `json:"OrderId"`
	Currency  string             `json:"Currency"`
	Returns   []TransactionGroup `json:"Returns"`
}

type MarkShippedPayload struct {
	RequestID string             `json:"RequestId"`
	OrderID   int64              `json:"OrderId"`
	Currency  string             `json:"Currency"`
	Shipments []TransactionGroup `json:"Shipments"`
}

type AddItemsPayload struct {
	RequestID  string     `json:"RequestId"`
	OrderID    int64      `json:"OrderId"`
	Currency   string     `json:"Currency"`
	OrderItems []LineItem `json:"OrderItems"`
}

type CancelOrderPayload struct {
	RequestID string `json:"RequestId"`
	OrderID   int64  `json:"OrderId"`
}

type UpdateReferencePayload struct {
	RequestID            string `json:"RequestId"`
	OrderID              int64  `json:"OrderId"`
	NewMerchantReference string `json:"NewMerchantReference"`
}

type RetryReversalPayload struct {
	RequestID        string `json:"RequestId"`
	PaymentReference int64  `json:"PaymentReference"`
}

// NewRequestID returns the idempotency token the gateway expects on every
// mutating request.
func NewRequestID() string {
	return uuid.NewString()
}

// GroupByTransaction groups items by owning transaction, keeping transactions
// in order of first appearance.
func GroupByTransaction(items []LineItem) []TransactionGroup {
	index := make(map[int64]int)
	var groups []TransactionGroup
	for _, item := range items {
		i, ok := index[item.PaymentTransactionID]
		if !ok {
			i = len(groups)
			index[item.PaymentTransactionID] = i
			groups = append(groups, TransactionGroup{PaymentTransactionID: item.PaymentTransactionID})
		}
		groups[i].OrderItems = append(groups[i].OrderItems, item)
	}
	return groups
}
