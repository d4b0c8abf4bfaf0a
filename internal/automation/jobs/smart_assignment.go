package jobs

import (
	"context"
	"fmt"
	"strings"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"
	"clinic_automation/internal/automation/scoring"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// SmartAssignment gives pending appointments the best-scoring active provider.
type SmartAssignment struct {
	deps   Deps
	store  AssignmentStore
	scorer scoring.Scorer
	window int
}

func NewSmartAssignment(deps Deps, store AssignmentStore, weights scoring.Weights) *SmartAssignment {
	window := weights.ContinuityWindow
	if window <= 0 {
		window = scoring.DefaultContinuityWindow
	}
	return &SmartAssignment{deps: deps.withDefaults(), store: store, scorer: scoring.NewScorer(weights), window: window}
}

func (j *SmartAssignment) ID() string { return automation.JobSmartAssignment }

func (j *SmartAssignment) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()

	// Providers are read once per run; bookings are re-read per candidate
	// because every assignment changes them.
	var providers []clinic.Provider
	loaded := false

	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Appointment, error) {
			return j.store.ListUnassignedAppointments(ctx, tenantID, now)
		},
		func(a clinic.Appointment) string { return a.ID.String() },
		func(ctx context.Context, listed clinic.Appointment) (automation.Decision, error) {
			a, err := j.store.GetAppointment(ctx, tenantID, listed.ID)
			if err != nil {
				return automation.Decision{}, err
			}
			if a.ProviderID != nil {
				return automation.Skip("provider already assigned"), nil
			}
			if a.Status != clinic.AppointmentPending {
				return automation.Skip("appointment no longer pending"), nil
			}

			if !loaded {
				if providers, err = j.store.ListActiveProviders(ctx, tenantID); err != nil {
					return automation.Decision{}, err
				}
				loaded = true
			}
			if len(providers) == 0 {
				return automation.Skip("no active providers"), nil
			}

			candidates, err := j.candidates(ctx, tenantID, a, providers)
			if err != nil {
				return automation.Decision{}, err
			}
			recent, err := j.store.RecentProvidersForPatient(ctx, tenantID, a.Patient.ID, j.window)
			if err != nil {
				return automation.Decision{}, err
			}

			best, ok := j.scorer.Select(scoring.Request{
				Slot:                scoring.Slot{Start: a.StartsAt.In(j.deps.Location), End: a.EndsAt.In(j.deps.Location)},
				PreferredProviderID: a.PreferredProviderID,
				Specialization:      a.RequestedSpecialization,
				RecentProviderIDs:   recent,
			}, candidates)
			if !ok {
				return automation.Skip("no eligible provider"), nil
			}

			assigned, err := j.store.AssignProvider(ctx, tenantID, a.ID, best.CandidateID)
			if err != nil {
				return automation.Decision{}, err
			}
			if !assigned {
				return automation.Skip("provider already assigned"), nil
			}

			provider := findProvider(providers, best.CandidateID)
			when := a.StartsAt.In(j.deps.Location).Format(dateTimeLayout)

			toProvider := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: providerRecipient(provider),
				Title:     "New appointment assigned",
				Message:   fmt.Sprintf("You have been assigned an appointment with %s on %s.", a.Patient.FullName(), when),
				Priority:  dispatch.PriorityNormal,
				Related:   ref("appointment", a.ID),
				Channels:  []dispatch.Channel{dispatch.ChannelInApp},
			})
			toPatient := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(a.Patient),
				Title:     "Appointment confirmed",
				Message:   fmt.Sprintf("Hi %s, your appointment on %s is confirmed with %s.", firstName(a.Patient), when, provider.Name),
				Priority:  dispatch.PriorityNormal,
				Related:   ref("appointment", a.ID),
				Action:    j.deps.action("View appointment", "/appointments/"+a.ID.String()),
			})

			return automation.Decision{
				Reason:    fmt.Sprintf("assigned %s (score %.1f: %s)", provider.Name, best.Value, strings.Join(best.Reasons, ", ")),
				Delivered: toProvider.Delivered() || toPatient.Delivered(),
			}, nil
		},
	)
}

// candidates pairs every provider with its bookings on the appointment's day.
func (j *SmartAssignment) candidates(ctx context.Context, tenantID *uuid.UUID, a clinic.Appointment, providers []clinic.Provider) ([]scoring.Candidate, error) {
	dayStart := escalation.StartOfDay(a.StartsAt, j.deps.Location)
	bookings, err := j.store.ListProviderBookings(ctx, tenantID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	byProvider := make(map[uuid.UUID][]scoring.Slot)
	for _, b := range bookings {
		byProvider[b.ProviderID] = append(byProvider[b.ProviderID], scoring.Slot{Start: b.StartsAt, End: b.EndsAt})
	}

	out := make([]scoring.Candidate, 0, len(providers))
	for _, p := range providers {
		out = append(out, scoring.Candidate{
			ID:              p.ID,
			Name:            p.Name,
			Specialization:  p.Specialization,
			Specializations: p.Specializations,
			Bookings:        byProvider[p.ID],
		})
	}
	return out, nil
}

func findProvider(providers []clinic.Provider, id uuid.UUID) clinic.Provider {
	for _, p := range providers {
		if p.ID == id {
			return p
		}
	}
	return clinic.Provider{ID: id}
}
