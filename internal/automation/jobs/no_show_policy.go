package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"

	"github.com/google/uuid"
)

// NoShowPolicy keeps each patient's booking restriction in line with the
// live no-show count of the trailing year.
type NoShowPolicy struct {
	deps  Deps
	store NoShowPolicyStore
}

func NewNoShowPolicy(deps Deps, store NoShowPolicyStore) *NoShowPolicy {
	return &NoShowPolicy{deps: deps.withDefaults(), store: store}
}

func (j *NoShowPolicy) ID() string { return automation.JobNoShowPolicy }

func (j *NoShowPolicy) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	since := now.Add(-escalation.NoShowWindow)
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]uuid.UUID, error) {
			return j.store.ListNoShowPolicyCandidates(ctx, tenantID, since)
		},
		uuid.UUID.String,
		func(ctx context.Context, patientID uuid.UUID) (automation.Decision, error) {
			patient, err := j.store.GetPatient(ctx, tenantID, patientID)
			if err != nil {
				return automation.Decision{}, err
			}
			count, err := j.store.CountNoShows(ctx, tenantID, patientID, since)
			if err != nil {
				return automation.Decision{}, err
			}

			level := escalation.NoShowLevelFor(count)
			if string(level) == patient.NoShowRestriction {
				return automation.Skip("restriction unchanged"), nil
			}
			changed, err := j.store.UpdateNoShowRestriction(ctx, tenantID, patientID, patient.NoShowRestriction, string(level), now)
			if err != nil {
				return automation.Decision{}, err
			}
			if !changed {
				return automation.Skip("restriction changed concurrently"), nil
			}

			title, message, priority := noShowNotice(level, count)
			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(patient),
				Title:     title,
				Message:   fmt.Sprintf("Hi %s, %s", firstName(patient), message),
				Priority:  priority,
				Related:   ref("patient", patientID),
				Escalate:  level == escalation.NoShowBanned,
			})
			return automation.Decision{Reason: string(level), Delivered: res.Delivered()}, nil
		},
	)
}

func noShowNotice(level escalation.NoShowLevel, count int) (string, string, dispatch.Priority) {
	switch level {
	case escalation.NoShowDepositRequired:
		return "Deposit required for new bookings",
			fmt.Sprintf("after %d missed appointments in the past year, new bookings require a deposit.", count),
			dispatch.PriorityHigh
	case escalation.NoShowWalkInOnly:
		return "Walk-in visits only",
			fmt.Sprintf("after %d missed appointments in the past year, you can only visit us as a walk-in patient.", count),
			dispatch.PriorityHigh
	case escalation.NoShowBanned:
		return "Online booking suspended",
			fmt.Sprintf("after %d missed appointments in the past year, online booking has been suspended. Please contact the clinic.", count),
			dispatch.PriorityUrgent
	default:
		return "Booking restrictions lifted",
			"your booking restrictions have been lifted.",
			dispatch.PriorityNormal
	}
}
