package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// FollowUpWindowDays is how many days ahead a follow-up date is reminded.
const FollowUpWindowDays = 3

// FollowUpReminders nudges patients whose follow-up is due and not booked.
type FollowUpReminders struct {
	deps  Deps
	store FollowUpStore
}

func NewFollowUpReminders(deps Deps, store FollowUpStore) *FollowUpReminders {
	return &FollowUpReminders{deps: deps.withDefaults(), store: store}
}

func (j *FollowUpReminders) ID() string { return automation.JobFollowUpReminders }

func (j *FollowUpReminders) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	today := escalation.StartOfDay(now, j.deps.Location)
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Visit, error) {
			return j.store.ListFollowUpCandidates(ctx, tenantID, today, today.AddDate(0, 0, FollowUpWindowDays))
		},
		func(v clinic.Visit) string { return v.ID.String() },
		func(ctx context.Context, v clinic.Visit) (automation.Decision, error) {
			if v.FollowUpRemindedAt != nil {
				return automation.Skip("already reminded"), nil
			}
			if v.FollowUpDate == nil {
				return automation.Skip("no follow-up date"), nil
			}
			due := calendarDate(*v.FollowUpDate, j.deps.Location)
			if days := escalation.DaysBetween(now, due, j.deps.Location); days < 0 || days > FollowUpWindowDays {
				return automation.Skip("follow-up outside window"), nil
			}

			booked, err := j.store.HasFutureAppointment(ctx, tenantID, v.Patient.ID, now)
			if err != nil {
				return automation.Decision{}, err
			}
			if booked {
				return automation.Skip("follow-up already booked"), nil
			}

			stamped, err := j.store.MarkFollowUpReminded(ctx, tenantID, v.ID, now)
			if err != nil {
				return automation.Decision{}, err
			}
			if !stamped {
				return automation.Skip("already reminded"), nil
			}

			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(v.Patient),
				Title:     "Time to book your follow-up",
				Message:   fmt.Sprintf("Hi %s, your follow-up visit is due on %s. Please book an appointment.", firstName(v.Patient), due.Format(dateLayout)),
				Priority:  dispatch.PriorityNormal,
				Related:   ref("visit", v.ID),
				Action:    j.deps.action("Book appointment", "/appointments/new"),
			})
			return automation.Done(res.Delivered()), nil
		},
	)
}
