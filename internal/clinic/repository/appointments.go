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
	opReminderAppointments = "clinic.repository.reminder_appointments"
	opMarkReminded         = "clinic.repository.mark_appointment_reminded"
	opOverdueAppointments  = "clinic.repository.overdue_appointments"
	opMarkNoShow           = "clinic.repository.mark_no_show"
	opUnassigned           = "clinic.repository.unassigned_appointments"
	opGetAppointment       = "clinic.repository.get_appointment"
	opActiveProviders      = "clinic.repository.active_providers"
	opProviderBookings     = "clinic.repository.provider_bookings"
	opAssignProvider       = "clinic.repository.assign_provider"
)

const appointmentSelect = `
	SELECT a.id, a.organization_id, a.provider_id, COALESCE(pr.name, ''), a.preferred_provider_id,
		a.requested_specialization, a.status, a.starts_at, a.ends_at, a.checked_in_at, a.reminder_sent_at,
		` + patientColumns + `
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	LEFT JOIN providers pr ON pr.id = a.provider_id`

func appointmentDest(a *clinic.Appointment) []any {
	return append([]any{
		&a.ID,
		&a.OrganizationID,
		&a.ProviderID,
		&a.ProviderName,
		&a.PreferredProviderID,
		&a.RequestedSpecialization,
		&a.Status,
		&a.StartsAt,
		&a.EndsAt,
		&a.CheckedInAt,
		&a.ReminderSentAt,
	}, patientDest(&a.Patient)...)
}

func (r *Repository) queryAppointments(ctx context.Context, op, where string, args ...any) ([]clinic.Appointment, error) {
	if err := r.ready(op); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, appointmentSelect+"\n\tWHERE "+where, args...)
	if err != nil {
		return nil, db.Classify(op, "list appointments failed", err)
	}
	defer rows.Close()

	items := make([]clinic.Appointment, 0)
	for rows.Next() {
		var a clinic.Appointment
		if err := rows.Scan(appointmentDest(&a)...); err != nil {
			return nil, db.Classify(op, "scan appointment failed", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(op, "iterate appointments failed", err)
	}
	return items, nil
}

// ListAppointmentsForReminder returns booked appointments starting in
// [from, to) that were never reminded.
func (r *Repository) ListAppointmentsForReminder(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Appointment, error) {
	return r.queryAppointments(ctx, opReminderAppointments, `a.organization_id IS NOT DISTINCT FROM $1
		AND a.status IN ('scheduled', 'confirmed')
		AND a.starts_at >= $2 AND a.starts_at < $3
		AND a.reminder_sent_at IS NULL
		AND p.deleted_at IS NULL
	ORDER BY a.starts_at, a.id`, tenantID, from, to)
}

// MarkAppointmentReminded stamps the reminder once.
func (r *Repository) MarkAppointmentReminded(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, opMarkReminded, `
		UPDATE appointments SET reminder_sent_at = $3
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND reminder_sent_at IS NULL
		  AND status IN ('scheduled', 'confirmed')
	`, tenantID, id, at)
}

// ListOverdueAppointments returns booked appointments that ended before the
// cutoff without a check-in.
func (r *Repository) ListOverdueAppointments(ctx context.Context, tenantID *uuid.UUID, endedBefore time.Time) ([]clinic.Appointment, error) {
	return r.queryAppointments(ctx, opOverdueAppointments, `a.organization_id IS NOT DISTINCT FROM $1
		AND a.status IN ('scheduled', 'confirmed')
		AND a.ends_at < $2
		AND a.checked_in_at IS NULL
	ORDER BY a.ends_at, a.id`, tenantID, endedBefore)
}

// MarkNoShow flips a still-booked, never-checked-in appointment to no_show.
func (r *Repository) MarkNoShow(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (bool, error) {
	return r.exec(ctx, opMarkNoShow, `
		UPDATE appointments SET status = 'no_show'
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND status IN ('scheduled', 'confirmed')
		  AND checked_in_at IS NULL
	`, tenantID, id)
}

// ListUnassignedAppointments returns pending appointments without a provider
// that start after from.
func (r *Repository) ListUnassignedAppointments(ctx context.Context, tenantID *uuid.UUID, from time.Time) ([]clinic.Appointment, error) {
	return r.queryAppointments(ctx, opUnassigned, `a.organization_id IS NOT DISTINCT FROM $1
		AND a.status = 'pending'
		AND a.provider_id IS NULL
		AND a.starts_at >= $2
	ORDER BY a.starts_at, a.id`, tenantID, from)
}

// GetAppointment re-reads one appointment.
func (r *Repository) GetAppointment(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (clinic.Appointment, error) {
	var a clinic.Appointment
	if err := r.ready(opGetAppointment); err != nil {
		return a, err
	}

	err := r.pool.QueryRow(ctx, appointmentSelect+`
	WHERE a.id = $2 AND a.organization_id IS NOT DISTINCT FROM $1`, tenantID, id).Scan(appointmentDest(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, apperr.NotFound("appointment not found").WithOp(opGetAppointment)
	}
	if err != nil {
		return a, db.Classify(opGetAppointment, "load appointment failed", err)
	}
	return a, nil
}

// ListActiveProviders returns the tenant's active providers in a stable order.
func (r *Repository) ListActiveProviders(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Provider, error) {
	if err := r.ready(opActiveProviders); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, user_id, name, COALESCE(email, ''), COALESCE(phone, ''), specialization, specializations
		FROM providers
		WHERE organization_id IS NOT DISTINCT FROM $1 AND active
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, db.Classify(opActiveProviders, "list providers failed", err)
	}
	defer rows.Close()

	providers := make([]clinic.Provider, 0)
	for rows.Next() {
		var p clinic.Provider
		if err := rows.Scan(
			&p.ID,
			&p.OrganizationID,
			&p.UserID,
			&p.Name,
			&p.Email,
			&p.Phone,
			&p.Specialization,
			&p.Specializations,
		); err != nil {
			return nil, db.Classify(opActiveProviders, "scan provider failed", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(opActiveProviders, "iterate providers failed", err)
	}
	return providers, nil
}

// ListProviderBookings returns live bookings of every provider overlapping [from, to).
func (r *Repository) ListProviderBookings(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Booking, error) {
	if err := r.ready(opProviderBookings); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, starts_at, ends_at
		FROM appointments
		WHERE organization_id IS NOT DISTINCT FROM $1
		  AND provider_id IS NOT NULL
		  AND status IN ('pending', 'scheduled', 'confirmed')
		  AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at
	`, tenantID, from, to)
	if err != nil {
		return nil, db.Classify(opProviderBookings, "list bookings failed", err)
	}
	bookings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (clinic.Booking, error) {
		var b clinic.Booking
		err := row.Scan(&b.ProviderID, &b.StartsAt, &b.EndsAt)
		return b, err
	})
	if err != nil {
		return nil, db.Classify(opProviderBookings, "scan bookings failed", err)
	}
	return bookings, nil
}

// AssignProvider writes the provider once; false means someone else already did.
func (r *Repository) AssignProvider(ctx context.Context, tenantID *uuid.UUID, appointmentID, providerID uuid.UUID) (bool, error) {
	return r.exec(ctx, opAssignProvider, `
		UPDATE appointments SET provider_id = $3, status = 'scheduled'
		WHERE id = $2 AND organization_id IS NOT DISTINCT FROM $1
		  AND provider_id IS NULL
		  AND status = 'pending'
	`, tenantID, appointmentID, providerID)
}
