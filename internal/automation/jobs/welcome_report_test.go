package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"
	"clinic_automation/platform/apperr"

	"github.com/google/uuid"
)

type memoryPatients struct {
	patients map[uuid.UUID]*clinic.Patient
	stamps   int
}

func (m *memoryPatients) ListUnwelcomedPatients(context.Context, *uuid.UUID, int) ([]clinic.Patient, error) {
	var out []clinic.Patient
	for _, p := range m.patients {
		if p.WelcomeSentAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryPatients) GetPatient(_ context.Context, _ *uuid.UUID, id uuid.UUID) (clinic.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return clinic.Patient{}, apperr.NotFound("patient not found")
	}
	return *p, nil
}

func (m *memoryPatients) MarkWelcomeSent(_ context.Context, _ *uuid.UUID, id uuid.UUID, at time.Time) (bool, error) {
	p := m.patients[id]
	if p.WelcomeSentAt != nil {
		return false, nil
	}
	m.stamps++
	p.WelcomeSentAt = &at
	return true, nil
}

// pendingQueue rejects a second task for a patient, like a task ID conflict.
type pendingQueue struct {
	pending map[uuid.UUID]bool
}

func (q *pendingQueue) EnqueueWelcome(_ context.Context, _ *uuid.UUID, patientID uuid.UUID) error {
	if q.pending[patientID] {
		return ErrAlreadyQueued
	}
	q.pending[patientID] = true
	return nil
}

func TestPatientWelcomeQueuesOncePerPatient(t *testing.T) {
	p := &clinic.Patient{ID: uuid.New(), FirstName: "Ana", Email: "ana@example.com"}
	store := &memoryPatients{patients: map[uuid.UUID]*clinic.Patient{p.ID: p}}
	queue := &pendingQueue{pending: map[uuid.UUID]bool{}}
	job := NewPatientWelcome(testDeps(&fakeNotifier{}), store, queue)

	first, err := job.Run(context.Background(), nil)
	if err != nil || first.Succeeded != 1 {
		t.Fatalf("first run: %+v, %v", first, err)
	}
	second, err := job.Run(context.Background(), nil)
	if err != nil || second.Skipped != 1 {
		t.Fatalf("pending task must not be queued again: %+v, %v", second, err)
	}
}

func TestPatientWelcomeDeliverSendsOnce(t *testing.T) {
	p := &clinic.Patient{ID: uuid.New(), FirstName: "Ana", Email: "ana@example.com"}
	store := &memoryPatients{patients: map[uuid.UUID]*clinic.Patient{p.ID: p}}
	n := &fakeNotifier{}
	job := NewPatientWelcome(testDeps(n), store, nil)

	delivered, err := job.Deliver(context.Background(), nil, p.ID)
	if err != nil || !delivered {
		t.Fatalf("Deliver = %v, %v", delivered, err)
	}
	// A retried task finds the stamp and does nothing.
	delivered, err = job.Deliver(context.Background(), nil, p.ID)
	if err != nil || delivered {
		t.Fatalf("retry Deliver = %v, %v", delivered, err)
	}
	if store.stamps != 1 || len(n.sent()) != 1 {
		t.Fatalf("stamps=%d sends=%d, want 1 and 1", store.stamps, len(n.sent()))
	}
}

func TestPatientWelcomeDeliverRespectsDisabledGate(t *testing.T) {
	p := &clinic.Patient{ID: uuid.New()}
	store := &memoryPatients{patients: map[uuid.UUID]*clinic.Patient{p.ID: p}}
	gate := &fakeGate{enabled: false}
	deps := testDeps(&fakeNotifier{})
	deps.Settings = gate
	deps.SettingsKeys = map[string]string{automation.JobPatientWelcome: "welcome-messages"}

	delivered, err := NewPatientWelcome(deps, store, nil).Deliver(context.Background(), nil, p.ID)
	if err != nil || delivered || store.stamps != 0 {
		t.Fatalf("disabled welcome must not stamp: %v, %v, stamps=%d", delivered, err, store.stamps)
	}
	if len(gate.keys) != 1 || gate.keys[0] != "welcome-messages" {
		t.Fatalf("gate keys = %v, want the configured settings key", gate.keys)
	}
}

type fakePurger struct {
	name   string
	cutoff time.Time
	err    error
}

func (p *fakePurger) Name() string { return p.name }

func (p *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 12, p.err
}

func TestNotificationRetentionPurgesEveryTable(t *testing.T) {
	inApp := &fakePurger{name: "in_app_notifications"}
	deliveries := &fakePurger{name: "notification_deliveries", err: errors.New("lock timeout")}
	job := NewNotificationRetention(testDeps(&fakeNotifier{}), 90, inApp, deliveries)

	res, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := testNow.AddDate(0, 0, -90)
	if !inApp.cutoff.Equal(want) || !deliveries.cutoff.Equal(want) {
		t.Fatalf("cutoff = %s / %s, want %s", inApp.cutoff, deliveries.cutoff, want)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("one table must fail independently: %+v", res)
	}
}

type memoryArchive struct {
	objects map[string][]byte
}

func (a *memoryArchive) Exists(_ context.Context, key string) (bool, error) {
	_, ok := a.objects[key]
	return ok, nil
}

func (a *memoryArchive) Put(_ context.Context, key, _ string, content []byte) error {
	a.objects[key] = content
	return nil
}

func (a *memoryArchive) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://files.example.com/" + key, nil
}

type fixedStats struct {
	calls int
}

func (s *fixedStats) DailyStats(context.Context, *uuid.UUID, time.Time, time.Time) (clinic.DailyStats, error) {
	s.calls++
	return clinic.DailyStats{AppointmentsScheduled: 14, NoShows: 2, InvoicesIssued: 9, InvoicedCents: 123450}, nil
}

func TestDailyReportArchivesOncePerDay(t *testing.T) {
	archive := &memoryArchive{objects: map[string][]byte{}}
	stats := &fixedStats{}
	n := &fakeNotifier{staff: map[dispatch.Role][]dispatch.Recipient{
		dispatch.RoleAdmin: {{ID: uuid.New(), Kind: dispatch.RecipientStaff, Email: "admin@example.com"}},
	}}
	job := NewDailyOperationsReport(testDeps(n), stats, archive)

	res, err := job.Run(context.Background(), nil)
	if err != nil || res.Succeeded != 1 {
		t.Fatalf("first run: %+v, %v", res, err)
	}
	content, ok := archive.objects["daily-operations/untenanted/2026-10-18.csv"]
	if !ok || !strings.Contains(string(content), "1234.50") {
		t.Fatalf("unexpected archive contents: %v", archive.objects)
	}
	intents := n.sent()
	if len(intents) != 1 || intents[0].Action == nil || !strings.HasSuffix(intents[0].Action.URL, "2026-10-18.csv") {
		t.Fatalf("admin should get the download link, got %+v", intents)
	}

	again, err := job.Run(context.Background(), nil)
	if err != nil || again.Skipped != 1 || stats.calls != 1 {
		t.Fatalf("archived day must be skipped: %+v, %v, stats calls=%d", again, err, stats.calls)
	}
}
