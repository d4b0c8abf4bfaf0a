package repository

import (
	"context"
	"errors"
	"time"

	"clinic_automation/internal/clinic"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	opGetPatient         = "clinic.repository.get_patient"
	opNoShowCandidates   = "clinic.repository.no_show_candidates"
	opCountNoShows       = "clinic.repository.count_no_shows"
	opUpdateRestriction  = "clinic.repository.update_no_show_restriction"
	opUnwelcomedPatients = "clinic.repository.unwelcomed_patients"
	opMarkWelcomeSent    = "clinic.repository.mark_welcome_sent"
	opRecentProviders    = "clinic.repository.recent_providers"
	opFutureAppointment  = "clinic.repository.has_future_appointment"
)

// patientColumns must stay in step with patientDest.
const patientColumns = `p.id, p.organization_id, p.first_name, p.last_name, COALESCE(p.email, ''), COALESCE(p.phone, ''),
	p.portal_user_id, p.no_show_restriction, p.welcome_sent_at, p.created_at`

func patientDest(p *clinic.Patient) []any {
	return []any{
		&p.ID,
		&p.OrganizationID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.PortalUserID,
		&p.NoShowRestriction,
		&p.WelcomeSentAt,
		&p.CreatedAt,
	}
}

// GetPatient loads a live patient; deleted or foreign patients are NotFound.
func (r *Repository) GetPatient(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (clinic.Patient, error) {
	var p clinic.Patient
	if err := r.ready(opGetPatient); err != nil {
		return p, err
	}

	err := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients p
		WHERE p.id = $2 AND p.organization_id IS NOT DISTINCT FROM $1 AND p.deleted_at IS NULL
	`, tenantID, id).Scan(patientDest(&p)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, apperr.NotFound("patient not found").WithOp(opGetPatient)
	}
	if err != nil {
		return p, db.Classify(opGetPatient, "load patient failed", err)
	}
	return p, nil
}

// ListNoShowPolicyCandidates returns patients with a no-show since the window
// start, plus those still holding a restriction so a corrected history can
// lift it.
func (r *Repository) ListNoShowPolicyCandidates(ctx context.Context, tenantID *uuid.UUID, since time.Time) ([]uuid.UUID, error) {
	if err := r.ready(opNoShowCandidates); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id
		FROM patients p
		WHERE p.organization_id IS NOT DISTINCT FROM $1
		  AND p.deleted_at IS NULL
		  AND (
			p.no_show_restriction <> 'none'
			OR EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.patient_id = p.id AND a.status = 'no_show' AND a.starts_at >= $2
			)
		  )
		ORDER BY p.id
	`, tenantID, since)
	if err != nil {
		return nil, db.Classify(opNoShowCandidates, "list no-show candidates failed", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, db.Classify(opNoShowCandidates, "scan no-show candidates failed", err)
	}
	return ids, nil
}

// CountNoShows counts the patient's no-show appointments since the window start.
func (r *Repository) CountNoShows(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, since time.Time) (int, error) {
	if err := r.ready(opCountNoShows); err != nil {
		return 0, err
	}

	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE organization_id IS NOT DISTINCT FROM $1
		  AND patient_id = $2
		  AND status = 'no_show'
		  AND starts_at >= $3
	`, tenantID, patientID, since).Scan(&n)
	if err != nil {
		return 0, db.Classify(opCountNoShows, "count no-shows failed", err)
	}
	return n, nil
}

// UpdateNoShowRestriction moves the restriction from one level to another.
// It returns false when the stored level is no longer from.
func (r *Repository) UpdateNoShowRestriction(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, from, to string, at time.Time) (bool, error) {
	return r.exec(ctx, opUpdateRestriction, `
		UPDATE patients
		SET no_show_restriction = $4, restriction_updated_at = $5
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1 AND no_show_restriction = $3
	`, tenantID, patientID, from, to, at)
}

// ListUnwelcomedPatients returns registered patients that never got a welcome.
func (r *Repository) ListUnwelcomedPatients(ctx context.Context, tenantID *uuid.UUID, limit int) ([]clinic.Patient, error) {
	if err := r.ready(opUnwelcomedPatients); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients p
		WHERE p.organization_id IS NOT DISTINCT FROM $1
		  AND p.welcome_sent_at IS NULL
		  AND p.deleted_at IS NULL
		ORDER BY p.created_at, p.id
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, db.Classify(opUnwelcomedPatients, "list unwelcomed patients failed", err)
	}
	defer rows.Close()

	patients := make([]clinic.Patient, 0)
	for rows.Next() {
		var p clinic.Patient
		if err := rows.Scan(patientDest(&p)...); err != nil {
			return nil, db.Classify(opUnwelcomedPatients, "scan patient failed", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opUnwelcomedPatients, "iterate patients failed", err)
	}
	return patients, nil
}

// MarkWelcomeSent stamps the welcome once.
func (r *Repository) MarkWelcomeSent(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, opMarkWelcomeSent, `
		UPDATE patients SET welcome_sent_at = $3
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1 AND welcome_sent_at IS NULL
	`, tenantID, patientID, at)
}

// RecentProvidersForPatient lists the providers of the patient's latest
// closed visits, newest first.
func (r *Repository) RecentProvidersForPatient(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if err := r.ready(opRecentProviders); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT provider_id
		FROM visits
		WHERE organization_id IS NOT DISTINCT FROM $1
		  AND patient_id = $2
		  AND status = 'closed'
		  AND provider_id IS NOT NULL
		ORDER BY closed_at DESC NULLS LAST
		LIMIT $3
	`, tenantID, patientID, limit)
	if err != nil {
		return nil, db.Classify(opRecentProviders, "list recent providers failed", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, db.Classify(opRecentProviders, "scan recent providers failed", err)
	}
	return ids, nil
}

// HasFutureAppointment reports whether the patient has a live booking after t.
func (r *Repository) HasFutureAppointment(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, after time.Time) (bool, error) {
	if err := r.ready(opFutureAppointment); err != nil {
		return false, err
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE organization_id IS NOT DISTINCT FROM $1
			  AND patient_id = $2
			  AND starts_at > $3
			  AND status IN ('pending', 'scheduled', 'confirmed')
		)
	`, tenantID, patientID, after).Scan(&exists)
	if err != nil {
		return false, db.Classify(opFutureAppointment, "check future appointment failed", err)
	}
	return exists, nil
}
