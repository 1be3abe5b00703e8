package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/order-reconciler/internal/changeset"
	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/metrics"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

const (
	DefaultMaxRetries = 3
)

var errNothingToResubmit = errors.New("transaction has no items to resubmit")

// ExhaustedRetriesError is returned when transactions are still unresolved
// after the last allowed round.
type ExhaustedRetriesError struct {
	TransactionID int64
	Rounds        int
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("transaction retry exhausted for transaction ID %d after %d attempts", e.TransactionID, e.Rounds)
}

type RetryResult struct {
	Rounds   int
	Outcomes []models.RetryOutcome
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryOrchestrator resubmits captures and refunds whose transactions did
// not reach Success, rebuilding each request from a freshly fetched ledger.
type RetryOrchestrator struct {
	client     gateway.Client
	fetcher    gateway.SnapshotFetcher
	maxRetries int
	backoff    bool
	sleep      SleepFunc
}

type RetryOption func(*RetryOrchestrator)

func WithMaxRetries(n int) RetryOption {
	return func(r *RetryOrchestrator) { r.maxRetries = n }
}

func WithBackoff(enabled bool) RetryOption {
	return func(r *RetryOrchestrator) { r.backoff = enabled }
}

func WithSleep(sleep SleepFunc) RetryOption {
	return func(r *RetryOrchestrator) { r.sleep = sleep }
}

func NewRetryOrchestrator(client gateway.Client, fetcher gateway.SnapshotFetcher, opts ...RetryOption) *RetryOrchestrator {
	r := &RetryOrchestrator{
		client:     client,
		fetcher:    fetcher,
		maxRetries: DefaultMaxRetries,
		backoff:    true,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resubmits the transactions a command created until they succeed or the
// round budget is spent. Cancellation is honoured between rounds only.
func (r *RetryOrchestrator) Run(ctx context.Context, merchantReference string, initial []models.CreatedTransaction) (RetryResult, error) {
	var result RetryResult

	working, err := r.pending(ctx, merchantReference, initial)
	if err != nil {
		return result, err
	}

	for len(working) > 0 && result.Rounds < r.maxRetries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Rounds++
		round := result.Rounds
		metrics.RetryRoundsTotal.Inc()

		if r.backoff && round > 1 {
			if err := r.sleep(ctx, backoffDelay(round)); err != nil {
				return result, err
			}
		}

		telemetry.LoggerFrom(ctx).Info("Retry round started",
			zap.String("merchant_reference", merchantReference),
			zap.Int("round", round),
			zap.Int("transactions", len(working)),
		)

		var next []models.CreatedTransaction
		for _, tx := range working {
			outcome, created, err := r.retryTransaction(ctx, merchantReference, tx.ID)
			outcome.Round = round
			if err != nil {
				if isFatal(err) {
					return result, err
				}
				outcome.Status = models.OutcomeFailed
				outcome.Error = err.Error()
				result.Outcomes = append(result.Outcomes, outcome)
				metrics.ResubmissionsTotal.WithLabelValues(string(models.OutcomeFailed)).Inc()
				telemetry.LoggerFrom(ctx).Warn("Transaction resubmission failed",
					zap.String("merchant_reference", merchantReference),
					zap.Int64("transaction_id", tx.ID),
					zap.Int("round", round),
					zap.Error(err),
				)
				next = append(next, tx)
				continue
			}

			result.Outcomes = append(result.Outcomes, outcome)
			metrics.ResubmissionsTotal.WithLabelValues(string(outcome.Status)).Inc()
			if len(created) == 0 {
				continue
			}
			failed, err := r.pending(ctx, merchantReference, created)
			if err != nil {
				failed = created
			}
			next = append(next, failed...)
		}
		working = next
	}

	if len(working) > 0 {
		for _, tx := range working {
			result.Outcomes = append(result.Outcomes, models.RetryOutcome{
				TransactionID: tx.ID,
				Status:        models.OutcomeExhausted,
				Round:         result.Rounds,
			})
		}
		return result, &ExhaustedRetriesError{TransactionID: working[0].ID, Rounds: result.Rounds}
	}
	return result, nil
}

// retryTransaction resubmits one transaction unless it has succeeded in the
// meantime, returning the transactions the resubmission created.
func (r *RetryOrchestrator) retryTransaction(ctx context.Context, merchantReference string, id int64) (models.RetryOutcome, []models.CreatedTransaction, error) {
	outcome := models.RetryOutcome{TransactionID: id}

	snapshot, err := r.fetcher.FetchOrder(ctx, merchantReference)
	if err != nil {
		return outcome, nil, fmt.Errorf("fetch order: %w", err)
	}
	order := ledger.NewOrder(snapshot)

	if status, _ := order.Transactions().StatusOf(id); status == models.TransactionSuccess {
		outcome.Status = models.OutcomeSucceeded
		return outcome, nil, nil
	}

	changes, err := order.ChangesForTransaction(id)
	if err != nil {
		return outcome, nil, err
	}
	if len(changes.Items) == 0 {
		return outcome, nil, errNothingToResubmit
	}

	var cmd gateway.Command
	switch changes.Operation {
	case models.OperationCapture:
		payload, err := changeset.BuildCapture(order, changes.Items)
		if err != nil {
			return outcome, nil, err
		}
		cmd = gateway.Command{Kind: gateway.CommandMarkShipped, Payload: payload}
	case models.OperationReturn:
		payload, err := changeset.BuildReturn(order, changes.Items)
		if err != nil {
			return outcome, nil, err
		}
		cmd = gateway.Command{Kind: gateway.CommandReturnItems, Payload: payload}
	}

	resp, err := r.client.Send(ctx, cmd)
	if err != nil {
		countGatewayError(err)
		return outcome, nil, err
	}
	created, err := resp.CreatedTransactions()
	if err != nil {
		return outcome, nil, err
	}

	outcome.Status = models.OutcomeRetried
	outcome.NewTransactions = created
	return outcome, created, nil
}

// pending returns the transactions that are not yet successful according to
// a fresh snapshot.
func (r *RetryOrchestrator) pending(ctx context.Context, merchantReference string, transactions []models.CreatedTransaction) ([]models.CreatedTransaction, error) {
	if len(transactions) == 0 {
		return nil, nil
	}
	snapshot, err := r.fetcher.FetchOrder(ctx, merchantReference)
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	txs := ledger.NewTransactionLedger(snapshot.Transactions)

	var failed []models.CreatedTransaction
	for _, tx := range transactions {
		if status, _ := txs.StatusOf(tx.ID); status != models.TransactionSuccess {
			failed = append(failed, tx)
		}
	}
	return failed, nil
}

// isFatal reports errors that no resubmission can fix.
func isFatal(err error) bool {
	var unsupported *ledger.UnsupportedTransactionTypeError
	return errors.As(err, &unsupported) || changeset.IsValidation(err)
}

func backoffDelay(round int) time.Duration {
	return time.Duration(1<<(round-1)) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func countGatewayError(err error) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		metrics.GatewayErrorsTotal.WithLabelValues(gwErr.Kind.String()).Inc()
		return
	}
	metrics.GatewayErrorsTotal.WithLabelValues("transport").Inc()
}
