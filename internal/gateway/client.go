// Package gateway holds the contracts the reconciler needs from the payment
// gateway, and an adapter that reaches the gateway's transport sidecar over
// NATS.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

type CommandKind string

const (
	CommandAddItems        CommandKind = "add_items"
	CommandUpdateItems     CommandKind = "update_items"
	CommandReturnItems     CommandKind = "return_items"
	CommandMarkShipped     CommandKind = "mark_shipped"
	CommandCancelOrder     CommandKind = "cancel_order"
	CommandUpdateReference CommandKind = "update_reference"
	CommandRetryReversal   CommandKind = "retry_reversal"
)

// Command is one mutating gateway call. Payload is one of the models.*Payload
// types.
type Command struct {
	Kind    CommandKind
	Payload any
}

// RawResponse is the undecoded body of a successful gateway call.
type RawResponse struct {
	Status int
	Body   json.RawMessage
}

// CreatedTransactions decodes the transactions a command spawned. Commands
// that create none yield an empty slice.
func (r *RawResponse) CreatedTransactions() ([]models.CreatedTransaction, error) {
	if r == nil || len(r.Body) == 0 {
		return nil, nil
	}
	var body struct {
		PaymentTransactions []models.CreatedTransaction `json:"PaymentTransactions"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, fmt.Errorf("decode created transactions: %w", err)
	}
	return body.PaymentTransactions, nil
}

// Client sends commands to the gateway. Failures reported by the gateway are
// returned as *Error.
type Client interface {
	Send(ctx context.Context, cmd Command) (*RawResponse, error)
}

// SnapshotFetcher loads the gateway's ledger for one order. It returns an
// error matching ErrOrderNotFound when the gateway has no such order.
type SnapshotFetcher interface {
	FetchOrder(ctx context.Context, merchantReference string) (*models.OrderSnapshot, error)
}
