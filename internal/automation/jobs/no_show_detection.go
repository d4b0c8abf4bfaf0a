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

// NoShowGracePeriod is how long after the end of an appointment a missing
// check-in becomes a no-show.
const NoShowGracePeriod = 30 * time.Minute

// NoShowDetection marks booked appointments nobody checked in for.
type NoShowDetection struct {
	deps  Deps
	store NoShowDetectionStore
}

func NewNoShowDetection(deps Deps, store NoShowDetectionStore) *NoShowDetection {
	return &NoShowDetection{deps: deps.withDefaults(), store: store}
}

func (j *NoShowDetection) ID() string { return automation.JobNoShowDetection }

func (j *NoShowDetection) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Appointment, error) {
			return j.store.ListOverdueAppointments(ctx, tenantID, now.Add(-NoShowGracePeriod))
		},
		func(a clinic.Appointment) string { return a.ID.String() },
		func(ctx context.Context, a clinic.Appointment) (automation.Decision, error) {
			if a.CheckedInAt != nil {
				return automation.Skip("patient checked in"), nil
			}
			if a.EndsAt.Add(NoShowGracePeriod).After(now) {
				return automation.Skip("grace period not over"), nil
			}
			marked, err := j.store.MarkNoShow(ctx, tenantID, a.ID)
			if err != nil {
				return automation.Decision{}, err
			}
			if !marked {
				return automation.Skip("status already changed"), nil
			}

			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(a.Patient),
				Title:     "We missed you today",
				Message:   fmt.Sprintf("Hi %s, you did not attend your appointment on %s. Please contact us to reschedule.",
					firstName(a.Patient), a.StartsAt.In(j.deps.Location).Format(dateTimeLayout)),
				Priority: dispatch.PriorityNormal,
				Related:  ref("appointment", a.ID),
				Channels: []dispatch.Channel{dispatch.ChannelEmail, dispatch.ChannelInApp},
			})
			return automation.Done(res.Delivered()), nil
		},
	)
}
