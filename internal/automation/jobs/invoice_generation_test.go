package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinic_automation/internal/clinic"
	"clinic_automation/platform/apperr"

	"github.com/google/uuid"
)

type memoryInvoices struct {
	mu       sync.Mutex
	visits   []clinic.Visit
	invoices map[uuid.UUID]clinic.Invoice
	seq      int64
	calls    int
	listErr  error
}

func newMemoryInvoices(visits ...clinic.Visit) *memoryInvoices {
	return &memoryInvoices{visits: visits, invoices: map[uuid.UUID]clinic.Invoice{}}
}

func (m *memoryInvoices) ListUninvoicedVisits(context.Context, *uuid.UUID) ([]clinic.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]clinic.Visit, 0)
	for _, v := range m.visits {
		if _, ok := m.invoices[v.ID]; !ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryInvoices) InvoiceExistsForVisit(_ context.Context, visitID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	_, ok := m.invoices[visitID]
	return ok, nil
}

func (m *memoryInvoices) CreateInvoice(_ context.Context, _ *uuid.UUID, visitID, _ uuid.UUID, issuedAt time.Time) (clinic.Invoice, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.invoices[visitID]; ok {
		return clinic.Invoice{}, false, nil
	}
	m.seq++
	inv := clinic.Invoice{ID: uuid.New(), VisitID: visitID, Number: fmt.Sprintf("INV-2026-%06d", m.seq), TotalCents: 5000, CreatedAt: issuedAt}
	m.invoices[visitID] = inv
	return inv, true, nil
}

func closedVisit() clinic.Visit {
	return clinic.Visit{ID: uuid.New(), Status: clinic.VisitClosed, Patient: clinic.Patient{ID: uuid.New(), FirstName: "Ada", Email: "ada@example.com"}}
}

func TestInvoiceGenerationRunTwiceCreatesOneInvoice(t *testing.T) {
	visit := closedVisit()
	store := newMemoryInvoices(visit)
	n := &fakeNotifier{}
	job := NewInvoiceGeneration(testDeps(n), store)

	first, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(store.invoices) != 1 {
		t.Fatalf("expected exactly one invoice, got %d", len(store.invoices))
	}
	if first.Succeeded != 1 || second.Processed != 0 {
		t.Fatalf("unexpected results: first %+v, second %+v", first, second)
	}
	if len(n.sent()) != 1 {
		t.Fatalf("expected one notification, got %d", len(n.sent()))
	}
}

func TestInvoiceGenerationConcurrentRunsCreateOneInvoice(t *testing.T) {
	visit := closedVisit()
	store := newMemoryInvoices(visit)
	job := NewInvoiceGeneration(testDeps(&fakeNotifier{}), store)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = job.Run(context.Background(), nil)
		}()
	}
	wg.Wait()

	if len(store.invoices) != 1 {
		t.Fatalf("expected exactly one invoice, got %d", len(store.invoices))
	}
}

func TestInvoiceGenerationSkipsStaleCandidate(t *testing.T) {
	visit := closedVisit()
	store := newMemoryInvoices(visit)
	// Another run invoiced the visit between the list and the step.
	stale := &staleInvoices{memoryInvoices: store, visit: visit}
	res, err := NewInvoiceGeneration(testDeps(&fakeNotifier{}), stale).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || outcomeFor(res, visit.ID).Reason != "invoice exists" {
		t.Fatalf("expected skip, got %+v", res)
	}
}

type staleInvoices struct {
	*memoryInvoices
	visit clinic.Visit
}

func (s *staleInvoices) ListUninvoicedVisits(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Visit, error) {
	visits, err := s.memoryInvoices.ListUninvoicedVisits(ctx, tenantID)
	_, _, _ = s.memoryInvoices.CreateInvoice(ctx, tenantID, s.visit.ID, s.visit.Patient.ID, testNow)
	return visits, err
}

func TestDisabledAutomationDoesNotTouchStore(t *testing.T) {
	store := newMemoryInvoices(closedVisit())
	deps := testDeps(&fakeNotifier{})
	deps.Settings = &fakeGate{enabled: false}

	res, err := NewInvoiceGeneration(deps, store).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 0 || res.Succeeded != 0 || res.Skipped != 0 || res.Failed != 0 {
		t.Fatalf("expected zero counts, got %+v", res)
	}
	if store.calls != 0 {
		t.Fatalf("store was queried %d times", store.calls)
	}
}

func TestUnreachableStoreFailsTenantRun(t *testing.T) {
	store := newMemoryInvoices()
	store.listErr = apperr.DependencyUnavailable("query candidates", context.DeadlineExceeded)

	_, err := NewInvoiceGeneration(testDeps(&fakeNotifier{}), store).Run(context.Background(), nil)
	if !apperr.Is(err, apperr.KindDependencyUnavailable) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
