package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/order-reconciler/internal/changeset"
	"github.com/akylbek/payment-system/order-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/order-reconciler/internal/ledger"
	"github.com/akylbek/payment-system/order-reconciler/internal/metrics"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

var ErrUnknownOperation = errors.New("unknown reconciliation operation")

// Orchestrator runs reconciliation operations while holding the order's
// lock, so two runs never build against the same snapshot.
type Orchestrator struct {
	client    gateway.Client
	fetcher   gateway.SnapshotFetcher
	repo      interfaces.ReconciliationRepository
	lock      interfaces.OrderLock
	publisher interfaces.EventPublisher
	retry     *RetryOrchestrator
}

func NewOrchestrator(
	client gateway.Client,
	fetcher gateway.SnapshotFetcher,
	repo interfaces.ReconciliationRepository,
	lock interfaces.OrderLock,
	publisher interfaces.EventPublisher,
	retry *RetryOrchestrator,
) *Orchestrator {
	return &Orchestrator{
		client:    client,
		fetcher:   fetcher,
		repo:      repo,
		lock:      lock,
		publisher: publisher,
		retry:     retry,
	}
}

// step is what an operation sends once the order is loaded.
type step struct {
	cmd gateway.Command
	// retry runs the created transactions through the RetryOrchestrator.
	retry bool
	// statusReference is where the order lives after the command.
	statusReference string
}

func (o *Orchestrator) Summary(ctx context.Context, merchantReference string) (ledger.Summary, error) {
	snapshot, err := o.fetcher.FetchOrder(ctx, merchantReference)
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.NewOrder(snapshot).Summary(), nil
}

func (o *Orchestrator) Capture(ctx context.Context, merchantReference string, items []models.ItemQuantity) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationCapture, func(order *ledger.Order) (step, error) {
		payload, err := changeset.BuildCapture(order, items)
		if err != nil {
			return step{}, err
		}
		return step{cmd: gateway.Command{Kind: gateway.CommandMarkShipped, Payload: payload}, retry: true}, nil
	})
}

func (o *Orchestrator) Return(ctx context.Context, merchantReference string, items []models.ItemQuantity) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationReturn, func(order *ledger.Order) (step, error) {
		payload, err := changeset.BuildReturn(order, items)
		if err != nil {
			return step{}, err
		}
		return step{cmd: gateway.Command{Kind: gateway.CommandReturnItems, Payload: payload}, retry: true}, nil
	})
}

func (o *Orchestrator) Update(ctx context.Context, merchantReference string, changes []models.Change) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationUpdate, func(order *ledger.Order) (step, error) {
		payload := changeset.BuildUpdate(order, changes)
		return step{cmd: gateway.Command{Kind: gateway.CommandUpdateItems, Payload: payload}}, nil
	})
}

func (o *Orchestrator) Cancel(ctx context.Context, merchantReference string) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationCancel, func(order *ledger.Order) (step, error) {
		payload := models.CancelOrderPayload{RequestID: models.NewRequestID(), OrderID: order.OrderID()}
		return step{cmd: gateway.Command{Kind: gateway.CommandCancelOrder, Payload: payload}}, nil
	})
}

func (o *Orchestrator) AddItems(ctx context.Context, merchantReference string, items []models.LineItem) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationAddItems, func(order *ledger.Order) (step, error) {
		if len(items) == 0 {
			return step{}, fmt.Errorf("add items: %w", changeset.ErrInvalidQuantity)
		}
		for _, item := range items {
			if item.Quantity <= 0 {
				return step{}, fmt.Errorf("item %s: %w", item.Identity(), changeset.ErrInvalidQuantity)
			}
		}
		payload := models.AddItemsPayload{
			RequestID:  models.NewRequestID(),
			OrderID:    order.OrderID(),
			Currency:   order.Currency(),
			OrderItems: items,
		}
		return step{cmd: gateway.Command{Kind: gateway.CommandAddItems, Payload: payload}}, nil
	})
}

func (o *Orchestrator) UpdateReference(ctx context.Context, merchantReference, newReference string) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationUpdateReference, func(order *ledger.Order) (step, error) {
		payload := models.UpdateReferencePayload{
			RequestID:            models.NewRequestID(),
			OrderID:              order.OrderID(),
			NewMerchantReference: newReference,
		}
		return step{
			cmd:             gateway.Command{Kind: gateway.CommandUpdateReference, Payload: payload},
			statusReference: newReference,
		}, nil
	})
}

func (o *Orchestrator) RetryReversal(ctx context.Context, merchantReference string, transactionID int64) (*models.ReconciliationRun, error) {
	return o.run(ctx, merchantReference, models.OperationRetryReversal, func(order *ledger.Order) (step, error) {
		txType, ok := order.Transactions().TypeOf(transactionID)
		if !ok {
			return step{}, fmt.Errorf("transaction %d: %w", transactionID, ledger.ErrTransactionNotFound)
		}
		if txType != models.TransactionReversal {
			return step{}, &ledger.UnsupportedTransactionTypeError{TransactionID: transactionID, Type: txType}
		}
		payload := models.RetryReversalPayload{RequestID: models.NewRequestID(), PaymentReference: transactionID}
		return step{cmd: gateway.Command{Kind: gateway.CommandRetryReversal, Payload: payload}}, nil
	})
}

// Handle dispatches a queued reconcile request.
func (o *Orchestrator) Handle(ctx context.Context, req *models.ReconcileRequest) (*models.ReconciliationRun, error) {
	switch req.Operation {
	case models.OperationCapture:
		return o.Capture(ctx, req.MerchantReference, req.Items)
	case models.OperationReturn:
		return o.Return(ctx, req.MerchantReference, req.Items)
	case models.OperationUpdate:
		return o.Update(ctx, req.MerchantReference, req.Changes)
	case models.OperationCancel:
		return o.Cancel(ctx, req.MerchantReference)
	case models.OperationAddItems:
		return o.AddItems(ctx, req.MerchantReference, req.NewItems)
	case models.OperationUpdateReference:
		return o.UpdateReference(ctx, req.MerchantReference, req.NewReference)
	case models.OperationRetryReversal:
		return o.RetryReversal(ctx, req.MerchantReference, req.TransactionID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
}

func (o *Orchestrator) run(
	ctx context.Context,
	merchantReference string,
	op models.Operation,
	build func(order *ledger.Order) (step, error),
) (*models.ReconciliationRun, error) {
	start := time.Now()
	defer func() {
		metrics.ReconciliationDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	}()

	ctx, span := telemetry.StartSpan(ctx, "reconcile."+string(op), merchantReference)
	defer span.End()

	release, err := o.lock.Acquire(ctx, merchantReference)
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot, err := o.fetcher.FetchOrder(ctx, merchantReference)
	if err != nil {
		return nil, err
	}
	order := ledger.NewOrder(snapshot)

	s, err := build(order)
	if err != nil {
		telemetry.LoggerFrom(ctx).Info("Reconciliation request rejected",
			zap.String("merchant_reference", merchantReference),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
		metrics.ReconciliationsTotal.WithLabelValues(string(op), "rejected").Inc()
		return nil, err
	}
	if s.statusReference == "" {
		s.statusReference = merchantReference
	}

	run := &models.ReconciliationRun{
		MerchantReference: merchantReference,
		Operation:         op,
		TransactionIDs:    []int64{},
	}

	resp, err := o.client.Send(ctx, s.cmd)
	if err != nil {
		countGatewayError(err)
		run.Status = models.RunFailed
		run.Error = err.Error()
		o.finish(ctx, run, merchantReference)
		return run, err
	}

	created, err := resp.CreatedTransactions()
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
		o.finish(ctx, run, merchantReference)
		return run, err
	}
	for _, tx := range created {
		run.TransactionIDs = append(run.TransactionIDs, tx.ID)
	}

	run.Status = models.RunSucceeded
	if s.retry && len(created) > 0 {
		result, err := o.retry.Run(ctx, merchantReference, created)
		run.Rounds = result.Rounds
		for _, outcome := range result.Outcomes {
			for _, tx := range outcome.NewTransactions {
				run.TransactionIDs = append(run.TransactionIDs, tx.ID)
			}
		}
		if err != nil {
			var exhausted *ExhaustedRetriesError
			if errors.As(err, &exhausted) {
				run.Status = models.RunExhaustedRetries
			} else {
				run.Status = models.RunFailed
			}
			run.Error = err.Error()
			o.finish(ctx, run, s.statusReference)
			return run, err
		}
	}

	o.finish(ctx, run, s.statusReference)
	return run, nil
}

// finish stamps the resulting order status on the run, records and publishes
// it. Failures here are logged; they never change the run's outcome.
func (o *Orchestrator) finish(ctx context.Context, run *models.ReconciliationRun, statusReference string) {
	if snapshot, err := o.fetcher.FetchOrder(ctx, statusReference); err == nil {
		run.OrderStatus = ledger.NewOrder(snapshot).Status()
	}

	if err := o.repo.RecordRun(ctx, run); err != nil {
		telemetry.LoggerFrom(ctx).Error("Failed to record reconciliation run",
			zap.String("merchant_reference", run.MerchantReference),
			zap.Error(err),
		)
	}
	if err := o.publisher.PublishRun(ctx, run); err != nil {
		telemetry.LoggerFrom(ctx).Error("Failed to publish reconciliation event",
			zap.String("merchant_reference", run.MerchantReference),
			zap.Error(err),
		)
	}

	metrics.ReconciliationsTotal.WithLabelValues(string(run.Operation), string(run.Status)).Inc()

	telemetry.LoggerFrom(ctx).Info("Reconciliation finished",
		zap.String("merchant_reference", run.MerchantReference),
		zap.String("operation", string(run.Operation)),
		zap.String("status", string(run.Status)),
		zap.Int("rounds", run.Rounds),
		zap.Int64s("transaction_ids", run.TransactionIDs),
		zap.String("order_status", string(run.OrderStatus)),
	)
}
