package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic_automation/internal/clinic"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	opFollowUpCandidates = "clinic.repository.follow_up_candidates"
	opMarkFollowUp       = "clinic.repository.mark_follow_up_reminded"
	opUninvoicedVisits   = "clinic.repository.uninvoiced_visits"
	opInvoiceExists      = "clinic.repository.invoice_exists"
	opCreateInvoice      = "clinic.repository.create_invoice"
	opOutstandingInvoice = "clinic.repository.outstanding_invoices"
	opMarkInvoiceRemind  = "clinic.repository.mark_invoice_reminded"
)

const visitSelect = `
	SELECT v.id, v.organization_id, v.provider_id, v.status, v.closed_at, v.follow_up_date, v.follow_up_reminded_at,
		` + patientColumns + `
	FROM visits v
	JOIN patients p ON p.id = v.patient_id`

func (r *Repository) queryVisits(ctx context.Context, op, where string, args ...any) ([]clinic.Visit, error) {
	if err := r.ready(op); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, visitSelect+"\n\tWHERE "+where, args...)
	if err != nil {
		return nil, db.Classify(op, "list visits failed", err)
	}
	defer rows.Close()

	items := make([]clinic.Visit, 0)
	for rows.Next() {
		var v clinic.Visit
		dest := append([]any{
			&v.ID,
			&v.OrganizationID,
			&v.ProviderID,
			&v.Status,
			&v.ClosedAt,
			&v.FollowUpDate,
			&v.FollowUpRemindedAt,
		}, patientDest(&v.Patient)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, db.Classify(op, "scan visit failed", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(op, "iterate visits failed", err)
	}
	return items, nil
}

// ListFollowUpCandidates returns closed visits whose follow-up date falls in
// [from, to] and that were not reminded yet.
func (r *Repository) ListFollowUpCandidates(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Visit, error) {
	return r.queryVisits(ctx, opFollowUpCandidates, `v.organization_id IS NOT DISTINCT FROM $1
		AND v.status = 'closed'
		AND v.follow_up_date BETWEEN $2::date AND $3::date
		AND v.follow_up_reminded_at IS NULL
		AND p.deleted_at IS NULL
	ORDER BY v.follow_up_date, v.id`, tenantID, from, to)
}

// MarkFollowUpReminded stamps the follow-up reminder once.
func (r *Repository) MarkFollowUpReminded(ctx context.Context, tenantID *uuid.UUID, visitID uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, opMarkFollowUp, `
		UPDATE visits SET follow_up_reminded_at = $3
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1 AND follow_up_reminded_at IS NULL
	`, tenantID, visitID, at)
}

// ListUninvoicedVisits returns closed visits with no invoice.
func (r *Repository) ListUninvoicedVisits(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Visit, error) {
	return r.queryVisits(ctx, opUninvoicedVisits, `v.organization_id IS NOT DISTINCT FROM $1
		AND v.status = 'closed'
		AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.visit_id = v.id)
	ORDER BY v.closed_at NULLS LAST, v.id`, tenantID)
}

// InvoiceExistsForVisit is the existence check made right before an insert.
func (r *Repository) InvoiceExistsForVisit(ctx context.Context, visitID uuid.UUID) (bool, error) {
	if err := r.ready(opInvoiceExists); err != nil {
		return false, err
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE visit_id = $1)`, visitID).Scan(&exists)
	if err != nil {
		return false, db.Classify(opInvoiceExists, "check invoice failed", err)
	}
	return exists, nil
}

// CreateInvoice totals the visit items and inserts the invoice with the next
// number of the tenant's yearly sequence. It returns false, and consumes no
// number, when the visit already has an invoice.
func (r *Repository) CreateInvoice(ctx context.Context, tenantID *uuid.UUID, visitID, patientID uuid.UUID, issuedAt time.Time) (clinic.Invoice, bool, error) {
	var inv clinic.Invoice
	if err := r.ready(opCreateInvoice); err != nil {
		return inv, false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return inv, false, db.Classify(opCreateInvoice, "begin transaction failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity * unit_price_cents), 0)::bigint FROM visit_items WHERE visit_id = $1
	`, visitID).Scan(&total); err != nil {
		return inv, false, db.Classify(opCreateInvoice, "sum visit items failed", err)
	}

	scope := invoiceScope(tenantID, issuedAt.Year())
	var seq int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (scope_key, last_value) VALUES ($1, 1)
		ON CONFLICT (scope_key) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, scope).Scan(&seq); err != nil {
		return inv, false, db.Classify(opCreateInvoice, "allocate invoice number failed", err)
	}

	number := InvoiceNumber(issuedAt.Year(), seq)
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (organization_id, visit_id, patient_id, number, status, total_cents, created_at)
		VALUES ($1, $2, $3, $4, 'unpaid', $5, $6)
		ON CONFLICT (visit_id) DO NOTHING
		RETURNING id, organization_id, visit_id, number, status, total_cents, paid_cents, created_at
	`, tenantID, visitID, patientID, number, total, issuedAt).Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.VisitID,
		&inv.Number,
		&inv.Status,
		&inv.TotalCents,
		&inv.PaidCents,
		&inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return clinic.Invoice{}, false, nil
	}
	if err != nil {
		return inv, false, db.Classify(opCreateInvoice, "insert invoice failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return inv, false, db.Classify(opCreateInvoice, "commit invoice failed", err)
	}
	return inv, true, nil
}

// InvoiceNumber formats a sequence value, e.g. INV-2026-000123.
func InvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, seq)
}

func invoiceScope(tenantID *uuid.UUID, year int) string {
	if tenantID == nil {
		return fmt.Sprintf("untenanted:%d", year)
	}
	return fmt.Sprintf("%s:%d", tenantID, year)
}

// ListOutstandingInvoices returns unpaid and partial invoices with a balance.
func (r *Repository) ListOutstandingInvoices(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Invoice, error) {
	if err := r.ready(opOutstandingInvoice); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.organization_id, i.visit_id, i.number, i.status, i.total_cents, i.paid_cents,
			COALESCE(i.last_reminder_level, ''), i.last_reminder_at, i.created_at,
			`+patientColumns+`
		FROM invoices i
		JOIN patients p ON p.id = i.patient_id
		WHERE i.organization_id IS NOT DISTINCT FROM $1
		  AND i.status IN ('unpaid', 'partial')
		  AND i.total_cents > i.paid_cents
		ORDER BY i.created_at, i.id
	`, tenantID)
	if err != nil {
		return nil, db.Classify(opOutstandingInvoice, "list invoices failed", err)
	}
	defer rows.Close()

	items := make([]clinic.Invoice, 0)
	for rows.Next() {
		var inv clinic.Invoice
		dest := append([]any{
			&inv.ID,
			&inv.OrganizationID,
			&inv.VisitID,
			&inv.Number,
			&inv.Status,
			&inv.TotalCents,
			&inv.PaidCents,
			&inv.LastReminderLevel,
			&inv.LastReminderAt,
			&inv.CreatedAt,
		}, patientDest(&inv.Patient)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, db.Classify(opOutstandingInvoice, "scan invoice failed", err)
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opOutstandingInvoice, "iterate invoices failed", err)
	}
	return items, nil
}

// MarkInvoiceReminded records the level unless a reminder was already stamped
// since dayStart or the invoice got settled in the meantime.
func (r *Repository) MarkInvoiceReminded(ctx context.Context, tenantID *uuid.UUID, invoiceID uuid.UUID, level string, at, dayStart time.Time) (bool, error) {
	return r.exec(ctx, opMarkInvoiceRemind, `
		UPDATE invoices SET last_reminder_level = $3, last_reminder_at = $4
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND status IN ('unpaid', 'partial')
		  AND total_cents > paid_cents
		  AND (last_reminder_at IS NULL OR last_reminder_at < $5)
	`, tenantID, invoiceID, level, at, dayStart)
}
