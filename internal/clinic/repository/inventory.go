package repository

import (
	"context"
	"time"

	"clinic_automation/internal/clinic"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
)

const (
	opExpiringBatches = "clinic.repository.expiring_batches"
	opMarkBatch       = "clinic.repository.mark_batch_alerted"
	opLowStock        = "clinic.repository.low_stock_items"
	opCreateReorder   = "clinic.repository.create_reorder_request"
)

// ListExpiringBatches returns stocked batches expiring in [from, to] (dates).
func (r *Repository) ListExpiringBatches(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.InventoryBatch, error) {
	if err := r.ready(opExpiringBatches); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.organization_id, b.item_id, i.name, b.lot_number, b.quantity, b.expires_on, b.last_alert_checkpoint
		FROM inventory_batches b
		JOIN inventory_items i ON i.id = b.item_id
		WHERE b.organization_id IS NOT DISTINCT FROM $1
		  AND b.quantity > 0
		  AND b.expires_on BETWEEN $2::date AND $3::date
		ORDER BY b.expires_on, b.id
	`, tenantID, from, to)
	if err != nil {
		return nil, db.Classify(opExpiringBatches, "list batches failed", err)
	}
	defer rows.Close()

	items := make([]clinic.InventoryBatch, 0)
	for rows.Next() {
		var b clinic.InventoryBatch
		if err := rows.Scan(
			&b.ID,
			&b.OrganizationID,
			&b.ItemID,
			&b.ItemName,
			&b.LotNumber,
			&b.Quantity,
			&b.ExpiresOn,
			&b.LastAlertCheckpoint,
		); err != nil {
			return nil, db.Classify(opExpiringBatches, "scan batch failed", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opExpiringBatches, "iterate batches failed", err)
	}
	return items, nil
}

// MarkBatchAlerted records the checkpoint unless it was already alerted.
func (r *Repository) MarkBatchAlerted(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, checkpoint int) (bool, error) {
	return r.exec(ctx, opMarkBatch, `
		UPDATE inventory_batches SET last_alert_checkpoint = $3
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND last_alert_checkpoint IS DISTINCT FROM $3
	`, tenantID, id, checkpoint)
}

// ListLowStockItems returns active items at or below their reorder level.
func (r *Repository) ListLowStockItems(ctx context.Context, tenantID *uuid.UUID) ([]clinic.InventoryItem, error) {
	if err := r.ready(opLowStock); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, sku, quantity, reorder_level, reorder_quantity, average_daily_usage, critical
		FROM inventory_items
		WHERE organization_id IS NOT DISTINCT FROM $1
		  AND active
		  AND quantity <= reorder_level
		ORDER BY quantity, id
	`, tenantID)
	if err != nil {
		return nil, db.Classify(opLowStock, "list low stock failed", err)
	}
	defer rows.Close()

	items := make([]clinic.InventoryItem, 0)
	for rows.Next() {
		var it clinic.InventoryItem
		if err := rows.Scan(
			&it.ID,
			&it.OrganizationID,
			&it.Name,
			&it.SKU,
			&it.Quantity,
			&it.ReorderLevel,
			&it.ReorderQuantity,
			&it.AverageDailyUsage,
			&it.Critical,
		); err != nil {
			return nil, db.Classify(opLowStock, "scan item failed", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opLowStock, "iterate items failed", err)
	}
	return items, nil
}

// CreateReorderRequest opens a request unless one is already open for the item.
func (r *Repository) CreateReorderRequest(ctx context.Context, tenantID *uuid.UUID, req clinic.ReorderRequest) (bool, error) {
	return r.exec(ctx, opCreateReorder, `
		INSERT INTO reorder_requests (organization_id, item_id, quantity, priority, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id) WHERE status = 'open' DO NOTHING
	`, tenantID, req.ItemID, req.Quantity, req.Priority, req.Score)
}
