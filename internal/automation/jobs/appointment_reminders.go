package jobs

import (
	"context"
	"fmt"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// ReminderLeadTime is how far ahead appointments are reminded.
const ReminderLeadTime = 24 * time.Hour

// AppointmentReminders reminds patients of appointments in the next 24 hours.
type AppointmentReminders struct {
	deps  Deps
	store AppointmentReminderStore
}

func NewAppointmentReminders(deps Deps, store AppointmentReminderStore) *AppointmentReminders {
	return &AppointmentReminders{deps: deps.withDefaults(), store: store}
}

func (j *AppointmentReminders) ID() string { return automation.JobAppointmentReminders }

func (j *AppointmentReminders) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Appointment, error) {
			return j.store.ListAppointmentsForReminder(ctx, tenantID, now, now.Add(ReminderLeadTime))
		},
		func(a clinic.Appointment) string { return a.ID.String() },
		func(ctx context.Context, a clinic.Appointment) (automation.Decision, error) {
			if a.ReminderSentAt != nil {
				return automation.Skip("already reminded"), nil
			}
			stamped, err := j.store.MarkAppointmentReminded(ctx, tenantID, a.ID, now)
			if err != nil {
				return automation.Decision{}, err
			}
			if !stamped {
				return automation.Skip("already reminded"), nil
			}

			with := ""
			if a.ProviderName != "" {
				with = " with " + a.ProviderName
			}
			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(a.Patient),
				Title:     "Appointment reminder",
				Message:   fmt.Sprintf("Hi %s, this is a reminder of your appointment%s on %s.",
					firstName(a.Patient), with, a.StartsAt.In(j.deps.Location).Format(dateTimeLayout)),
				Priority: dispatch.PriorityNormal,
				Related:  ref("appointment", a.ID),
				Action:   j.deps.action("View appointment", "/appointments/"+a.ID.String()),
			})
			return automation.Done(res.Delivered()), nil
		},
	)
}
