package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

type ReconciliationRepository struct {
	db *sql.DB
}

func NewReconciliationRepository(db *sql.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func (r *ReconciliationRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reconciliation_runs (
			id UUID PRIMARY KEY,
			merchant_reference VARCHAR(255) NOT NULL,
			operation VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL,
			rounds INTEGER NOT NULL DEFAULT 0,
			transaction_ids BIGINT[] NOT NULL DEFAULT '{}',
			order_status VARCHAR(50),
			error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_reference ON reconciliation_runs(merchant_reference, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *ReconciliationRepository) RecordRun(ctx context.Context, run *models.ReconciliationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reconciliation_runs
			(id, merchant_reference, operation, status, rounds, transaction_ids, order_status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, run.ID, run.MerchantReference, run.Operation, run.Status, run.Rounds,
		pq.Array(run.TransactionIDs), run.OrderStatus, run.Error,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("record reconciliation run: %w", err)
	}
	return nil
}

func (r *ReconciliationRepository) ListRuns(ctx context.Context, merchantReference string, limit int) ([]models.ReconciliationRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, merchant_reference, operation, status, rounds, transaction_ids,
			COALESCE(order_status, ''), COALESCE(error, ''), created_at
		FROM reconciliation_runs
		WHERE merchant_reference = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, merchantReference, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ReconciliationRun{}
	for rows.Next() {
		var run models.ReconciliationRun
		var ids pq.Int64Array
		if err := rows.Scan(&run.ID, &run.MerchantReference, &run.Operation, &run.Status,
			&run.Rounds, &ids, &run.OrderStatus, &run.Error, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation run: %w", err)
		}
		run.TransactionIDs = ids
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
