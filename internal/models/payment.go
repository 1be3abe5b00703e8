package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionPreauthorization TransactionType = "Preauthorization"
	TransactionDebit            TransactionType = "Debit"
	TransactionCredit           TransactionType = "Credit"
	TransactionCapture          TransactionType = "Capture"
	TransactionReversal         TransactionType = "Reversal"
	TransactionRefund           TransactionType = "Refund"
	TransactionUpdateInvoice    TransactionType = "UpdateInvoice"
	TransactionRegistration     TransactionType = "Registration"
)

type TransactionStatus string

const (
	TransactionCreated                 TransactionStatus = "Created"
	TransactionInProcess               TransactionStatus = "InProcess"
	TransactionUserInteractionRequired TransactionStatus = "UserInteractionRequired"
	TransactionOnHold                  TransactionStatus = "OnHold"
	TransactionSuccess                 TransactionStatus = "Success"
	TransactionError                   TransactionStatus = "Error"
	TransactionCancelled               TransactionStatus = "Cancelled"
)

// PaymentTransaction is one entry of the gateway's payment log. Entries are
// immutable once observed.
type PaymentTransaction struct {
	ID        int64             `json:"PaymentTransactionId"`
	Type      TransactionType   `json:"Type"`
	Status    TransactionStatus `json:"Status"`
	Amount    decimal.Decimal   `json:"Amount"`
	Currency  string            `json:"Currency,omitempty"`
	Timestamp time.Time         `json:"Timestamp"`
}

// CreatedTransaction is the short form the gateway returns for transactions
// spawned by a command.
type CreatedTransaction struct {
	ID     int64             `json:"PaymentTransactionId"`
	Status TransactionStatus `json:"Status"`
}
