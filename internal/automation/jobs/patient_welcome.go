package jobs

import (
	"context"
	"errors"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// ErrAlreadyQueued is returned by a WelcomeQueue for a patient whose welcome
// task is still pending.
var ErrAlreadyQueued = errors.New("welcome already queued")

// WelcomeBatchSize caps how many patients one run queues.
const WelcomeBatchSize = 200

// PatientWelcome queues a one-shot welcome task per new patient; Deliver is
// the task body run by the worker pool.
type PatientWelcome struct {
	deps  Deps
	store WelcomeStore
	queue WelcomeQueue
}

func NewPatientWelcome(deps Deps, store WelcomeStore, queue WelcomeQueue) *PatientWelcome {
	return &PatientWelcome{deps: deps.withDefaults(), store: store, queue: queue}
}

func (j *PatientWelcome) ID() string { return automation.JobPatientWelcome }

func (j *PatientWelcome) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Patient, error) {
			return j.store.ListUnwelcomedPatients(ctx, tenantID, WelcomeBatchSize)
		},
		func(p clinic.Patient) string { return p.ID.String() },
		func(ctx context.Context, p clinic.Patient) (automation.Decision, error) {
			if p.WelcomeSentAt != nil {
				return automation.Skip("already welcomed"), nil
			}
			if j.queue == nil {
				return automation.Decision{}, errors.New("welcome queue not configured")
			}
			err := j.queue.EnqueueWelcome(ctx, tenantID, p.ID)
			if errors.Is(err, ErrAlreadyQueued) {
				return automation.Skip("welcome already queued"), nil
			}
			if err != nil {
				return automation.Decision{}, fmt.Errorf("queue welcome: %w", err)
			}
			return automation.Decision{Reason: "queued"}, nil
		},
	)
}

// Deliver sends one welcome. It re-checks the stamp and stamps before sending,
// so a retried task never welcomes twice.
func (j *PatientWelcome) Deliver(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID) (bool, error) {
	if j.deps.Settings != nil {
		enabled, err := j.deps.Settings.IsAutomationEnabled(ctx, tenantID, j.deps.settingsKey(j.ID()))
		if err != nil {
			return false, err
		}
		if !enabled {
			return false, nil
		}
	}

	p, err := j.store.GetPatient(ctx, tenantID, patientID)
	if err != nil {
		return false, err
	}
	if p.WelcomeSentAt != nil {
		return false, nil
	}
	stamped, err := j.store.MarkWelcomeSent(ctx, tenantID, patientID, j.deps.Clock.Now())
	if err != nil {
		return false, err
	}
	if !stamped {
		return false, nil
	}

	res := j.deps.Notifier.Send(ctx, dispatch.Intent{
		TenantID:  tenantID,
		Recipient: patientRecipient(p),
		Title:     "Welcome to the clinic",
		Message:   fmt.Sprintf("Hi %s, welcome! You can book appointments, view results and pay invoices in the patient portal.", firstName(p)),
		Priority:  dispatch.PriorityLow,
		Related:   ref("patient", p.ID),
		Action:    j.deps.action("Open patient portal", "/"),
	})
	if !res.Delivered() {
		j.deps.Log.Warn("welcome not delivered on any channel", "patient", p.ID, "tenant", automation.TenantLabel(tenantID))
	}
	return res.Delivered(), nil
}
