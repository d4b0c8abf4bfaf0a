package jobs

import (
	"context"
	"testing"
	"time"

	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

type memoryPayments struct {
	invoices []clinic.Invoice
}

func (m *memoryPayments) ListOutstandingInvoices(context.Context, *uuid.UUID) ([]clinic.Invoice, error) {
	return append([]clinic.Invoice(nil), m.invoices...), nil
}

func (m *memoryPayments) MarkInvoiceReminded(_ context.Context, _ *uuid.UUID, id uuid.UUID, level string, at, dayStart time.Time) (bool, error) {
	for i := range m.invoices {
		inv := &m.invoices[i]
		if inv.ID != id {
			continue
		}
		if inv.LastReminderAt != nil && !inv.LastReminderAt.Before(dayStart) {
			return false, nil
		}
		inv.LastReminderLevel = level
		stamp := at
		inv.LastReminderAt = &stamp
		return true, nil
	}
	return false, nil
}

func TestPaymentRemindersFireOnExactDays(t *testing.T) {
	store := &memoryPayments{}
	ids := map[int]uuid.UUID{}
	for _, age := range []int{7, 13, 14, 29, 30, 37} {
		id := uuid.New()
		ids[age] = id
		store.invoices = append(store.invoices, clinic.Invoice{
			ID:         id,
			Number:     "INV",
			Status:     clinic.InvoiceUnpaid,
			TotalCents: 10000,
			PaidCents:  2500,
			CreatedAt:  daysAgo(age),
			Patient:    clinic.Patient{ID: uuid.New(), Email: "p@example.com"},
		})
	}
	n := &fakeNotifier{}
	job := NewPaymentReminders(testDeps(n), store)

	res, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[int]string{7: "first", 14: "second", 30: "final", 37: "final"}
	for age, id := range ids {
		o := outcomeFor(res, id)
		level, fires := want[age]
		if fires && (o.Outcome != "succeeded" || o.Reason != level) {
			t.Errorf("day %d: got %s/%s, want succeeded/%s", age, o.Outcome, o.Reason, level)
		}
		if !fires && o.Outcome != "skipped" {
			t.Errorf("day %d: got %s, want skipped", age, o.Outcome)
		}
	}
	if len(n.sent()) != 4 {
		t.Fatalf("expected 4 reminders, got %d", len(n.sent()))
	}

	again, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Succeeded != 0 || len(n.sent()) != 4 {
		t.Fatalf("same-day re-run must not remind again: %+v", again)
	}
}

func TestPaymentRemindersSkipSettledInvoices(t *testing.T) {
	store := &memoryPayments{invoices: []clinic.Invoice{{
		ID: uuid.New(), Status: clinic.InvoicePaid, TotalCents: 100, PaidCents: 100, CreatedAt: daysAgo(7),
	}}}
	res, err := NewPaymentReminders(testDeps(&fakeNotifier{}), store).Run(context.Background(), nil)
	if err != nil || res.Skipped != 1 {
		t.Fatalf("expected skip, got %+v, %v", res, err)
	}
}

type memoryNoShows struct {
	patients map[uuid.UUID]*clinic.Patient
	counts   map[uuid.UUID]int
}

func (m *memoryNoShows) ListNoShowPolicyCandidates(context.Context, *uuid.UUID, time.Time) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(m.patients))
	for id := range m.patients {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryNoShows) GetPatient(_ context.Context, _ *uuid.UUID, id uuid.UUID) (clinic.Patient, error) {
	return *m.patients[id], nil
}

func (m *memoryNoShows) CountNoShows(_ context.Context, _ *uuid.UUID, id uuid.UUID, _ time.Time) (int, error) {
	return m.counts[id], nil
}

func (m *memoryNoShows) UpdateNoShowRestriction(_ context.Context, _ *uuid.UUID, id uuid.UUID, from, to string, _ time.Time) (bool, error) {
	p := m.patients[id]
	if p.NoShowRestriction != from {
		return false, nil
	}
	p.NoShowRestriction = to
	return true, nil
}

func TestNoShowPolicyFollowsLiveCount(t *testing.T) {
	store := &memoryNoShows{patients: map[uuid.UUID]*clinic.Patient{}, counts: map[uuid.UUID]int{}}
	add := func(count int, current string) uuid.UUID {
		id := uuid.New()
		store.patients[id] = &clinic.Patient{ID: id, FirstName: "P", NoShowRestriction: current}
		store.counts[id] = count
		return id
	}
	one := add(1, "none")
	two := add(2, "none")
	three := add(3, "deposit_required")
	four := add(4, "walk_in_only")
	corrected := add(0, "banned")

	n := &fakeNotifier{}
	res, err := NewNoShowPolicy(testDeps(n), store).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[uuid.UUID]string{one: "none", two: "deposit_required", three: "walk_in_only", four: "banned", corrected: "none"}
	for id, level := range want {
		if got := store.patients[id].NoShowRestriction; got != level {
			t.Errorf("patient with %d no-shows: restriction %s, want %s", store.counts[id], got, level)
		}
	}
	if o := outcomeFor(res, one); o.Outcome != "skipped" {
		t.Errorf("unchanged level should skip, got %s", o.Outcome)
	}

	escalated := 0
	for _, intent := range n.sent() {
		if intent.Escalate {
			escalated++
			if intent.Recipient.ID != four {
				t.Errorf("only the banned patient escalates")
			}
		}
	}
	if escalated != 1 {
		t.Fatalf("expected one escalation, got %d", escalated)
	}
	if len(n.sent()) != 4 {
		t.Fatalf("expected 4 notices, got %d", len(n.sent()))
	}
}

type memoryDocuments struct {
	docs []clinic.Document
}

func (m *memoryDocuments) ListExpiringDocuments(context.Context, *uuid.UUID, time.Time, time.Time) ([]clinic.Document, error) {
	return append([]clinic.Document(nil), m.docs...), nil
}

func (m *memoryDocuments) UpdateDocumentWarning(_ context.Context, _ *uuid.UUID, id uuid.UUID, from, to string, _ time.Time) (bool, error) {
	for i := range m.docs {
		if m.docs[i].ID == id && m.docs[i].WarningLevel == from {
			m.docs[i].WarningLevel = to
			return true, nil
		}
	}
	return false, nil
}

func TestDocumentExpiryOnlyEscalatesUpwards(t *testing.T) {
	in := func(days int) *time.Time { d := dateIn(days); return &d }
	urgentInsurance := clinic.Document{ID: uuid.New(), Category: "insurance", Title: "Insurance card", ExpiresOn: in(20), WarningLevel: "warning"}
	alreadyWarned := clinic.Document{ID: uuid.New(), Category: "consent", Title: "Consent", ExpiresOn: in(25), WarningLevel: "warning"}
	fresh := clinic.Document{ID: uuid.New(), Category: "referral", Title: "Referral", ExpiresOn: in(60), WarningLevel: "none"}
	store := &memoryDocuments{docs: []clinic.Document{urgentInsurance, alreadyWarned, fresh}}
	n := &fakeNotifier{}

	res, err := NewDocumentExpiry(testDeps(n), store).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o := outcomeFor(res, urgentInsurance.ID); o.Reason != string(escalation.DocumentUrgent) {
		t.Errorf("insurance at 20 days: %+v", o)
	}
	if o := outcomeFor(res, alreadyWarned.ID); o.Outcome != "skipped" {
		t.Errorf("same level must not re-warn: %+v", o)
	}
	if o := outcomeFor(res, fresh.ID); o.Reason != string(escalation.DocumentReminder) {
		t.Errorf("referral at 60 days: %+v", o)
	}

	for _, intent := range n.sent() {
		if intent.Escalate != (intent.Related.ID == urgentInsurance.ID) {
			t.Errorf("only urgent documents escalate, intent %q escalate=%v", intent.Title, intent.Escalate)
		}
	}
}

func TestStepSucceedsWhenNoChannelDelivers(t *testing.T) {
	visit := closedVisit()
	n := &fakeNotifier{deliver: func(dispatch.Intent) bool { return false }}
	res, err := NewInvoiceGeneration(testDeps(n), newMemoryInvoices(visit)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	o := outcomeFor(res, visit.ID)
	if o.Outcome != "succeeded" || o.Delivered {
		t.Fatalf("delivery failure must not fail the step: %+v", o)
	}
}
