package jobs

import (
	"context"
	"testing"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

type memoryAppointments struct {
	appointments []clinic.Appointment
	from, to     time.Time
	endedBefore  time.Time
	noShows      map[uuid.UUID]bool
}

func (m *memoryAppointments) ListAppointmentsForReminder(_ context.Context, _ *uuid.UUID, from, to time.Time) ([]clinic.Appointment, error) {
	m.from, m.to = from, to
	return append([]clinic.Appointment(nil), m.appointments...), nil
}

func (m *memoryAppointments) MarkAppointmentReminded(_ context.Context, _ *uuid.UUID, id uuid.UUID, at time.Time) (bool, error) {
	for i := range m.appointments {
		a := &m.appointments[i]
		if a.ID != id {
			continue
		}
		if a.ReminderSentAt != nil {
			return false, nil
		}
		stamp := at
		a.ReminderSentAt = &stamp
		return true, nil
	}
	return false, nil
}

func (m *memoryAppointments) ListOverdueAppointments(_ context.Context, _ *uuid.UUID, endedBefore time.Time) ([]clinic.Appointment, error) {
	m.endedBefore = endedBefore
	out := make([]clinic.Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		if !m.noShows[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAppointments) MarkNoShow(_ context.Context, _ *uuid.UUID, id uuid.UUID) (bool, error) {
	if m.noShows == nil {
		m.noShows = map[uuid.UUID]bool{}
	}
	if m.noShows[id] {
		return false, nil
	}
	m.noShows[id] = true
	return true, nil
}

func bookedPatient() clinic.Patient {
	return clinic.Patient{ID: uuid.New(), FirstName: "Ada", Email: "ada@example.com"}
}

func TestAppointmentRemindersStampOnce(t *testing.T) {
	reminded := testNow.Add(-2 * time.Hour)
	fresh := clinic.Appointment{ID: uuid.New(), Patient: bookedPatient(), ProviderName: "Dr. Bakker",
		Status: clinic.AppointmentConfirmed, StartsAt: testNow.Add(20 * time.Hour), EndsAt: testNow.Add(21 * time.Hour)}
	done := clinic.Appointment{ID: uuid.New(), Patient: bookedPatient(), Status: clinic.AppointmentScheduled,
		StartsAt: testNow.Add(3 * time.Hour), EndsAt: testNow.Add(4 * time.Hour), ReminderSentAt: &reminded}
	store := &memoryAppointments{appointments: []clinic.Appointment{fresh, done}}
	n := &fakeNotifier{}
	job := NewAppointmentReminders(testDeps(n), store)

	res, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !store.from.Equal(testNow) || !store.to.Equal(testNow.Add(ReminderLeadTime)) {
		t.Fatalf("window = %s..%s, want the next 24 hours", store.from, store.to)
	}
	if o := outcomeFor(res, fresh.ID); o.Outcome != automation.OutcomeSucceeded {
		t.Fatalf("fresh appointment: %+v", o)
	}
	if o := outcomeFor(res, done.ID); o.Outcome != automation.OutcomeSkipped || o.Reason != "already reminded" {
		t.Fatalf("reminded appointment: %+v", o)
	}
	if len(n.sent()) != 1 || n.sent()[0].Recipient.ID != fresh.Patient.ID {
		t.Fatalf("expected one reminder for the fresh appointment, got %+v", n.sent())
	}

	again, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Succeeded != 0 || again.Skipped != 2 || len(n.sent()) != 1 {
		t.Fatalf("re-run must not remind again: %+v", again)
	}
}

func TestNoShowDetectionGraceBoundary(t *testing.T) {
	checkedIn := testNow.Add(-2 * time.Hour)
	cases := []struct {
		name    string
		endedAt time.Duration
		checked bool
		want    automation.Outcome
		reason  string
	}{
		{"ended 31 minutes ago", -31 * time.Minute, false, automation.OutcomeSucceeded, ""},
		{"ended exactly 30 minutes ago", -NoShowGracePeriod, false, automation.OutcomeSucceeded, ""},
		{"ended 29 minutes ago", -29 * time.Minute, false, automation.OutcomeSkipped, "grace period not over"},
		{"checked in", -3 * time.Hour, true, automation.OutcomeSkipped, "patient checked in"},
	}

	store := &memoryAppointments{}
	ids := make([]uuid.UUID, len(cases))
	for i, tc := range cases {
		a := clinic.Appointment{
			ID:       uuid.New(),
			Patient:  bookedPatient(),
			Status:   clinic.AppointmentScheduled,
			StartsAt: testNow.Add(tc.endedAt - 30*time.Minute),
			EndsAt:   testNow.Add(tc.endedAt),
		}
		if tc.checked {
			a.CheckedInAt = &checkedIn
		}
		ids[i] = a.ID
		store.appointments = append(store.appointments, a)
	}
	n := &fakeNotifier{}
	job := NewNoShowDetection(testDeps(n), store)

	res, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !store.endedBefore.Equal(testNow.Add(-NoShowGracePeriod)) {
		t.Fatalf("query cutoff = %s, want now minus the grace period", store.endedBefore)
	}
	for i, tc := range cases {
		o := outcomeFor(res, ids[i])
		if o.Outcome != tc.want || (tc.reason != "" && o.Reason != tc.reason) {
			t.Errorf("%s: got %s/%q, want %s/%q", tc.name, o.Outcome, o.Reason, tc.want, tc.reason)
		}
	}
	if len(n.sent()) != 2 {
		t.Fatalf("expected 2 no-show notices, got %d", len(n.sent()))
	}

	again, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Succeeded != 0 || len(n.sent()) != 2 {
		t.Fatalf("marked appointments must not be notified twice: %+v", again)
	}
}

func TestNoShowDetectionSkipsWhenStatusAlreadyChanged(t *testing.T) {
	a := clinic.Appointment{ID: uuid.New(), Patient: bookedPatient(), Status: clinic.AppointmentScheduled,
		StartsAt: testNow.Add(-2 * time.Hour), EndsAt: testNow.Add(-time.Hour)}
	store := &staleNoShows{memoryAppointments: &memoryAppointments{
		appointments: []clinic.Appointment{a},
		noShows:      map[uuid.UUID]bool{a.ID: true},
	}}
	n := &fakeNotifier{}

	res, err := NewNoShowDetection(testDeps(n), store).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o := outcomeFor(res, a.ID); o.Outcome != automation.OutcomeSkipped || o.Reason != "status already changed" {
		t.Fatalf("stale candidate: %+v", o)
	}
	if len(n.sent()) != 0 {
		t.Fatalf("stale candidate must not be notified, sent %d", len(n.sent()))
	}
}

// staleNoShows returns candidates that a concurrent run already marked.
type staleNoShows struct {
	*memoryAppointments
}

func (s *staleNoShows) ListOverdueAppointments(context.Context, *uuid.UUID, time.Time) ([]clinic.Appointment, error) {
	return append([]clinic.Appointment(nil), s.appointments...), nil
}
