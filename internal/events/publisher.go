package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

const (
	TopicReconcileRequested = "order.reconcile.requested"
	TopicReconciled         = "order.reconciled"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publishes finished runs keyed by merchant reference, so
// every event of one order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishRun(ctx context.Context, run *models.ReconciliationRun) error {
	event := map[string]interface{}{
		"run_id":             run.ID,
		"merchant_reference": run.MerchantReference,
		"operation":          run.Operation,
		"status":             run.Status,
		"rounds":             run.Rounds,
		"transaction_ids":    run.TransactionIDs,
		"order_status":       run.OrderStatus,
		"error":              run.Error,
		"timestamp":          time.Now(),
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode reconciliation event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(run.MerchantReference),
		Value: eventJSON,
	})
}
