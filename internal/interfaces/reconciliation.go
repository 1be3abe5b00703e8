package interfaces

import (
	"context"
	"errors"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

// ErrOrderLocked is returned when another worker holds the order's lock.
var ErrOrderLocked = errors.New("order is already being reconciled")

// ReconciliationRepository defines the contract for reconciliation run history
type ReconciliationRepository interface {
	RecordRun(ctx context.Context, run *models.ReconciliationRun) error
	ListRuns(ctx context.Context, merchantReference string, limit int) ([]models.ReconciliationRun, error)
}

// OrderLock serialises reconciliation per order across workers.
type OrderLock interface {
	Acquire(ctx context.Context, merchantReference string) (release func(), err error)
}

// EventPublisher announces finished reconciliation runs.
type EventPublisher interface {
	PublishRun(ctx context.Context, run *models.ReconciliationRun) error
}
