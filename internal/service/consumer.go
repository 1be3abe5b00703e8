package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/order-reconciler/internal/events"
	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

// ConsumeReconcileRequests reads order.reconcile.requested until ctx is done.
func (o *Orchestrator) ConsumeReconcileRequests(ctx context.Context, kafkaBrokers string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{kafkaBrokers},
		Topic:    events.TopicReconcileRequested,
		GroupID:  "order-reconciler",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	telemetry.Logger.Info("Started consuming reconcile requests")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				telemetry.Logger.Info("Stopped consuming reconcile requests")
				return
			}
			telemetry.Logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		if err := o.handleMessage(ctx, msg.Value); err != nil {
			telemetry.Logger.Error("Error processing reconcile request",
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) handleMessage(ctx context.Context, value []byte) error {
	var req models.ReconcileRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return fmt.Errorf("unmarshal reconcile request: %w", err)
	}
	if req.MerchantReference == "" {
		return fmt.Errorf("reconcile request without merchant reference")
	}

	telemetry.LoggerFrom(ctx).Info("Processing reconcile request",
		zap.String("merchant_reference", req.MerchantReference),
		zap.String("operation", string(req.Operation)),
	)

	_, err := o.Handle(ctx, &req)
	return err
}
