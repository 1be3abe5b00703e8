package models

import "time"

type Operation string

const (
	OperationCapture         Operation = "capture"
	OperationReturn          Operation = "return"
	OperationUpdate          Operation = "update"
	OperationCancel          Operation = "cancel"
	OperationAddItems        Operation = "add_items"
	OperationUpdateReference Operation = "update_reference"
	OperationRetryReversal   Operation = "retry_reversal"
)

type RunStatus string

const (
	RunSucceeded        RunStatus = "SUCCEEDED"
	RunFailed           RunStatus = "FAILED"
	RunExhaustedRetries RunStatus = "EXHAUSTED_RETRIES"
)

// ReconcileRequest is the message consumed from order.reconcile.requested.
type ReconcileRequest struct {
	Operation         Operation      `json:"operation"`
	MerchantReference string         `json:"merchant_reference"`
	Items             []ItemQuantity `json:"items,omitempty"`
	Changes           []Change       `json:"changes,omitempty"`
	NewItems          []LineItem     `json:"new_items,omitempty"`
	NewReference      string         `json:"new_reference,omitempty"`
	TransactionID     int64          `json:"transaction_id,omitempty"`
}

// ReconciliationRun is the recorded outcome of one reconciliation call.
type ReconciliationRun struct {
	ID                string      `json:"id"`
	MerchantReference string      `json:"merchant_reference"`
	Operation         Operation   `json:"operation"`
	Status            RunStatus   `json:"status"`
	Rounds            int         `json:"rounds"`
	TransactionIDs    []int64     `json:"transaction_ids"`
	OrderStatus       OrderStatus `json:"order_status,omitempty"`
	Error             string      `json:"error,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// RetryOutcomeStatus describes what happened to one transaction in a retry round.
type RetryOutcomeStatus string

const (
	OutcomeSucceeded RetryOutcomeStatus = "success"
	OutcomeRetried   RetryOutcomeStatus = "retried"
	OutcomeFailed    RetryOutcomeStatus = "failed"
	OutcomeExhausted RetryOutcomeStatus = "exhausted_retries"
)

type RetryOutcome struct {
	TransactionID   int64                `json:"transaction_id"`
	Status          RetryOutcomeStatus   `json:"status"`
	Round           int                  `json:"round"`
	NewTransactions []CreatedTransaction `json:"new_transactions,omitempty"`
	Error           string               `json:"error,omitempty"`
}
