package repository

import (
	"context"
	"time"

	"clinic_automation/internal/clinic"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
)

const opDailyStats = "clinic.repository.daily_stats"

// DailyStats aggregates one day [from, to) for the operations report.
func (r *Repository) DailyStats(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) (clinic.DailyStats, error) {
	stats := clinic.DailyStats{Day: from}
	if err := r.ready(opDailyStats); err != nil {
		return stats, err
	}

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM appointments WHERE organization_id IS NOT DISTINCT FROM $1
				AND starts_at >= $2 AND starts_at < $3 AND status IN ('scheduled', 'confirmed', 'completed', 'no_show')),
			(SELECT COUNT(*) FROM appointments WHERE organization_id IS NOT DISTINCT FROM $1
				AND starts_at >= $2 AND starts_at < $3 AND status = 'completed'),
			(SELECT COUNT(*) FROM appointments WHERE organization_id IS NOT DISTINCT FROM $1
				AND starts_at >= $2 AND starts_at < $3 AND status = 'no_show'),
			(SELECT COUNT(*) FROM appointments WHERE organization_id IS NOT DISTINCT FROM $1
				AND starts_at >= $2 AND starts_at < $3 AND status = 'cancelled'),
			(SELECT COUNT(*) FROM visits WHERE organization_id IS NOT DISTINCT FROM $1
				AND closed_at >= $2 AND closed_at < $3),
			(SELECT COUNT(*) FROM invoices WHERE organization_id IS NOT DISTINCT FROM $1
				AND created_at >= $2 AND created_at < $3),
			(SELECT COALESCE(SUM(total_cents), 0)::bigint FROM invoices WHERE organization_id IS NOT DISTINCT FROM $1
				AND created_at >= $2 AND created_at < $3),
			(SELECT COALESCE(SUM(total_cents - paid_cents), 0)::bigint FROM invoices WHERE organization_id IS NOT DISTINCT FROM $1
				AND status IN ('unpaid', 'partial')),
			(SELECT COUNT(*) FROM inventory_items WHERE organization_id IS NOT DISTINCT FROM $1
				AND active AND quantity <= reorder_level),
			(SELECT COUNT(*) FROM patients WHERE organization_id IS NOT DISTINCT FROM $1
				AND created_at >= $2 AND created_at < $3 AND deleted_at IS NULL)
	`, tenantID, from, to).Scan(
		&stats.AppointmentsScheduled,
		&stats.AppointmentsCompleted,
		&stats.NoShows,
		&stats.Cancellations,
		&stats.VisitsClosed,
		&stats.InvoicesIssued,
		&stats.InvoicedCents,
		&stats.OutstandingCents,
		&stats.LowStockItems,
		&stats.NewPatients,
	)
	if err != nil {
		return stats, db.Classify(opDailyStats, "aggregate daily stats failed", err)
	}
	return stats, nil
}
