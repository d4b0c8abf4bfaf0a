package repository

import (
	"context"
	"time"

	"clinic_automation/internal/clinic"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
)

const (
	opExpiringDocuments = "clinic.repository.expiring_documents"
	opDocumentWarning   = "clinic.repository.update_document_warning"
	opReadyLabResults   = "clinic.repository.ready_lab_results"
	opMarkLabNotified   = "clinic.repository.mark_lab_result_notified"
	opEndingMemberships = "clinic.repository.ending_memberships"
	opMembershipStage   = "clinic.repository.mark_membership_stage"
)

// ListExpiringDocuments returns documents expiring in [from, to] (dates).
func (r *Repository) ListExpiringDocuments(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Document, error) {
	if err := r.ready(opExpiringDocuments); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.organization_id, d.category, d.title, d.expires_on, d.warning_level,
			`+patientColumns+`
		FROM documents d
		JOIN patients p ON p.id = d.patient_id
		WHERE d.organization_id IS NOT DISTINCT FROM $1
		  AND d.expires_on BETWEEN $2::date AND $3::date
		  AND p.deleted_at IS NULL
		ORDER BY d.expires_on, d.id
	`, tenantID, from, to)
	if err != nil {
		return nil, db.Classify(opExpiringDocuments, "list documents failed", err)
	}
	defer rows.Close()

	items := make([]clinic.Document, 0)
	for rows.Next() {
		var d clinic.Document
		dest := append([]any{&d.ID, &d.OrganizationID, &d.Category, &d.Title, &d.ExpiresOn, &d.WarningLevel}, patientDest(&d.Patient)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, db.Classify(opExpiringDocuments, "scan document failed", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opExpiringDocuments, "iterate documents failed", err)
	}
	return items, nil
}

// UpdateDocumentWarning raises the stored level from one value to another.
func (r *Repository) UpdateDocumentWarning(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, from, to string, at time.Time) (bool, error) {
	return r.exec(ctx, opDocumentWarning, `
		UPDATE documents SET warning_level = $4, warned_at = $5
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1 AND warning_level = $3
	`, tenantID, id, from, to, at)
}

// ListReadyLabResults returns ready results the patient was not told about.
func (r *Repository) ListReadyLabResults(ctx context.Context, tenantID *uuid.UUID) ([]clinic.LabResult, error) {
	if err := r.ready(opReadyLabResults); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.organization_id, l.test_name, l.status, l.ready_at, l.patient_notified_at,
			`+patientColumns+`
		FROM lab_results l
		JOIN patients p ON p.id = l.patient_id
		WHERE l.organization_id IS NOT DISTINCT FROM $1
		  AND l.status = 'ready'
		  AND l.patient_notified_at IS NULL
		ORDER BY l.ready_at NULLS LAST, l.id
	`, tenantID)
	if err != nil {
		return nil, db.Classify(opReadyLabResults, "list lab results failed", err)
	}
	defer rows.Close()

	items := make([]clinic.LabResult, 0)
	for rows.Next() {
		var l clinic.LabResult
		dest := append([]any{&l.ID, &l.OrganizationID, &l.TestName, &l.Status, &l.ReadyAt, &l.PatientNotifiedAt}, patientDest(&l.Patient)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, db.Classify(opReadyLabResults, "scan lab result failed", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opReadyLabResults, "iterate lab results failed", err)
	}
	return items, nil
}

// MarkLabResultNotified stamps the notification once.
func (r *Repository) MarkLabResultNotified(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, opMarkLabNotified, `
		UPDATE lab_results SET patient_notified_at = $3
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND status = 'ready' AND patient_notified_at IS NULL
	`, tenantID, id, at)
}

// ListMembershipsEndingBetween returns memberships ending in [from, to] (dates).
func (r *Repository) ListMembershipsEndingBetween(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Membership, error) {
	if err := r.ready(opEndingMemberships); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.organization_id, m.plan_name, m.ends_on, COALESCE(m.last_stage_notified, ''),
			`+patientColumns+`
		FROM memberships m
		JOIN patients p ON p.id = m.patient_id
		WHERE m.organization_id IS NOT DISTINCT FROM $1
		  AND m.ends_on BETWEEN $2::date AND $3::date
		  AND p.deleted_at IS NULL
		ORDER BY m.ends_on, m.id
	`, tenantID, from, to)
	if err != nil {
		return nil, db.Classify(opEndingMemberships, "list memberships failed", err)
	}
	defer rows.Close()

	items := make([]clinic.Membership, 0)
	for rows.Next() {
		var m clinic.Membership
		dest := append([]any{&m.ID, &m.OrganizationID, &m.PlanName, &m.EndsOn, &m.LastStageNotified}, patientDest(&m.Patient)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, db.Classify(opEndingMemberships, "scan membership failed", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opEndingMemberships, "iterate memberships failed", err)
	}
	return items, nil
}

// MarkMembershipStage records the stage unless it was already notified.
func (r *Repository) MarkMembershipStage(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, stage string) (bool, error) {
	return r.exec(ctx, opMembershipStage, `
		UPDATE memberships SET last_stage_notified = $3
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND last_stage_notified IS DISTINCT FROM $3
	`, tenantID, id, stage)
}
