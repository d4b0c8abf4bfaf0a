package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

type LabResultNotifications struct {
	deps  Deps
	store LabResultStore
}

func NewLabResultNotifications(deps Deps, store LabResultStore) *LabResultNotifications {
	return &LabResultNotifications{deps: deps.withDefaults(), store: store}
}

func (j *LabResultNotifications) ID() string { return automation.JobLabResultNotifications }

func (j *LabResultNotifications) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.LabResult, error) {
			return j.store.ListReadyLabResults(ctx, tenantID)
		},
		func(l clinic.LabResult) string { return l.ID.String() },
		func(ctx context.Context, l clinic.LabResult) (automation.Decision, error) {
			if l.Status != clinic.LabReady {
				return automation.Skip("result not ready"), nil
			}
			if l.PatientNotifiedAt != nil {
				return automation.Skip("already notified"), nil
			}
			stamped, err := j.store.MarkLabResultNotified(ctx, tenantID, l.ID, now)
			if err != nil {
				return automation.Decision{}, err
			}
			if !stamped {
				return automation.Skip("already notified"), nil
			}

			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(l.Patient),
				Title:     "Your lab results are ready",
				Message:   fmt.Sprintf("Hi %s, the results of your %s are available in the patient portal.", firstName(l.Patient), l.TestName),
				Priority:  dispatch.PriorityHigh,
				Related:   ref("lab_result", l.ID),
				Action:    j.deps.action("View results", "/lab-results/"+l.ID.String()),
			})
			return automation.Done(res.Delivered()), nil
		},
	)
}
