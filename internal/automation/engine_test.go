package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
)

type fakeTenants struct {
	ids []uuid.UUID
	err error
}

func (f fakeTenants) ListTenantIDs(context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeJob struct {
	id string
	mu sync.Mutex
	// calls records the tenant labels the job ran for.
	calls []string
	// runIDs records the run id found in the context of each call.
	runIDs []string
	fail   map[string]error
}

func (j *fakeJob) ID() string { return j.id }

func (j *fakeJob) Run(ctx context.Context, tenantID *uuid.UUID) (JobRunResult, error) {
	label := TenantLabel(tenantID)
	j.mu.Lock()
	j.calls = append(j.calls, label)
	j.runIDs = append(j.runIDs, logger.RunIDFromContext(ctx))
	j.mu.Unlock()

	res := NewJobRunResult(j.id, tenantID, testNow)
	if err := j.fail[label]; err != nil {
		return res, err
	}
	res.Record(EntityOutcome{EntityID: "e1", Outcome: OutcomeSucceeded})
	return res, nil
}

func newTestEngine(t *testing.T, tenants TenantLister, opts EngineOptions, jobs ...Job) *Engine {
	t.Helper()
	reg, err := NewRegistry(DefaultCatalog()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	engine, err := NewEngine(reg, tenants, FixedClock{T: testNow}, logger.Nop(), opts, jobs...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestRunJobFansOutAndIsolatesTenantFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	job := &fakeJob{
		id:   JobInvoiceGeneration,
		fail: map[string]error{b.String(): apperr.DependencyUnavailable("record store unreachable", errors.New("eof"))},
	}
	engine := newTestEngine(t, fakeTenants{ids: []uuid.UUID{a, b, c}}, EngineOptions{TenantConcurrency: 2, IncludeUntenanted: true}, job)

	out, err := engine.RunJob(context.Background(), JobInvoiceGeneration)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	if len(out.Tenants) != 4 {
		t.Fatalf("expected 3 tenants plus the untenanted scope, got %d", len(out.Tenants))
	}
	if out.Tenants[3].TenantID != nil {
		t.Fatal("untenanted scope should run last with a nil tenant")
	}
	if out.FailedTenants() != 1 {
		t.Fatalf("failed tenants = %d, want 1", out.FailedTenants())
	}
	if out.Tenants[1].Error == "" || out.Tenants[0].Err != nil || out.Tenants[2].Err != nil {
		t.Fatalf("only tenant b should fail: %+v", out.Tenants)
	}
	if out.Tenants[2].Result.Succeeded != 1 {
		t.Fatal("tenant c should still be processed")
	}
}

func TestRunJobGlobalScopeRunsOnce(t *testing.T) {
	job := &fakeJob{id: JobNotificationRetention}
	engine := newTestEngine(t, fakeTenants{ids: []uuid.UUID{uuid.New(), uuid.New()}}, EngineOptions{}, job)

	out, err := engine.RunJob(context.Background(), JobNotificationRetention)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if len(out.Tenants) != 1 || len(job.calls) != 1 || job.calls[0] != "" {
		t.Fatalf("global job should run once without tenant, calls = %v", job.calls)
	}
}

func TestRunJobDisabled(t *testing.T) {
	job := &fakeJob{id: JobPaymentReminders}
	engine := newTestEngine(t, fakeTenants{ids: []uuid.UUID{uuid.New()}}, EngineOptions{}, job)

	if err := engine.Registry().SetEnabled(JobPaymentReminders, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	_, err := engine.RunJob(context.Background(), JobPaymentReminders)
	if !errors.Is(err, ErrJobDisabled) {
		t.Fatalf("expected ErrJobDisabled, got %v", err)
	}
	if len(job.calls) != 0 {
		t.Fatal("disabled job must not run")
	}
}

func TestRunJobTenantListingFailure(t *testing.T) {
	job := &fakeJob{id: JobDocumentExpiry}
	engine := newTestEngine(t, fakeTenants{err: errors.New("pool closed")}, EngineOptions{}, job)

	_, err := engine.RunJob(context.Background(), JobDocumentExpiry)
	if !apperr.Is(err, apperr.KindDependencyUnavailable) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestRunTenantUnknownJob(t *testing.T) {
	engine := newTestEngine(t, nil, EngineOptions{})

	if _, err := engine.RunTenant(context.Background(), JobLabResultNotifications, nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unbound job, got %v", err)
	}
	if _, err := engine.RunTenant(context.Background(), "nope", nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown job, got %v", err)
	}
}

type panickingJob struct{}

func (panickingJob) ID() string { return JobMembershipExpiry }
func (panickingJob) Run(context.Context, *uuid.UUID) (JobRunResult, error) {
	panic("unexpected nil")
}

func TestRunTenantRecoversJobPanic(t *testing.T) {
	engine := newTestEngine(t, nil, EngineOptions{}, panickingJob{})

	res, err := engine.RunTenant(context.Background(), JobMembershipExpiry, nil)
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if res.JobID != JobMembershipExpiry {
		t.Fatalf("result should still identify the job, got %+v", res)
	}
}

func TestNewEngineRejectsUnregisteredJob(t *testing.T) {
	reg, _ := NewRegistry(DefaultCatalog()...)
	if _, err := NewEngine(reg, nil, nil, nil, EngineOptions{}, &fakeJob{id: "unknown"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEachTenantRunGetsItsOwnRunID(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	job := &fakeJob{id: JobLabResultNotifications}
	engine := newTestEngine(t, fakeTenants{ids: []uuid.UUID{a, b}}, EngineOptions{TenantConcurrency: 1}, job)

	out, err := engine.RunJob(context.Background(), JobLabResultNotifications)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	seen := map[string]bool{}
	for i, run := range out.Tenants {
		if run.Result.RunID == "" {
			t.Fatalf("tenant %d has no run id", i)
		}
		if seen[run.Result.RunID] {
			t.Fatalf("run id %s reused", run.Result.RunID)
		}
		seen[run.Result.RunID] = true
	}
	for _, id := range job.runIDs {
		if !seen[id] {
			t.Fatalf("job saw run id %q that is not in the results %v", id, seen)
		}
	}
}
