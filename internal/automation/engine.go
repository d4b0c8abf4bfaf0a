package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrJobDisabled is returned when a disabled job is triggered.
var ErrJobDisabled = errors.New("automation is disabled")

const opEngineRun = "automation.engine.run"

// Job is one concrete automation. Run handles a single tenant; a nil tenant
// is the legacy untenanted scope (or the whole platform for global jobs).
type Job interface {
	ID() string
	Run(ctx context.Context, tenantID *uuid.UUID) (JobRunResult, error)
}

// TenantLister enumerates the active tenants.
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// EngineOptions tunes the fan-out.
type EngineOptions struct {
	// TenantConcurrency bounds how many tenants run at once.
	TenantConcurrency int
	// IncludeUntenanted adds a run for records without an organization.
	IncludeUntenanted bool
}

// TenantRun is the outcome of one tenant in a fan-out.
type TenantRun struct {
	TenantID *uuid.UUID   `json:"tenantId,omitempty"`
	Result   JobRunResult `json:"result"`
	Err      error        `json:"-"`
	Error    string       `json:"error,omitempty"`
}

// FanOutResult collects the independent tenant runs of one trigger.
type FanOutResult struct {
	JobID      string      `json:"jobId"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Tenants    []TenantRun `json:"tenants"`
}

// FailedTenants counts tenants whose run was aborted.
func (r FanOutResult) FailedTenants() int {
	n := 0
	for _, t := range r.Tenants {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// Engine triggers registered jobs across tenants.
type Engine struct {
	registry *Registry
	jobs     map[string]Job
	tenants  TenantLister
	clock    Clock
	opts     EngineOptions
	log      *logger.Logger
}

// NewEngine binds job implementations to registry descriptors.
func NewEngine(registry *Registry, tenants TenantLister, clock Clock, log *logger.Logger, opts EngineOptions, jobs ...Job) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("automation registry is required")
	}
	if opts.TenantConcurrency < 1 {
		opts.TenantConcurrency = 1
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	bound := make(map[string]Job, len(jobs))
	for _, job := range jobs {
		if _, err := registry.Get(job.ID()); err != nil {
			return nil, fmt.Errorf("job %q has no registry descriptor", job.ID())
		}
		if _, dup := bound[job.ID()]; dup {
			return nil, fmt.Errorf("job %q bound twice", job.ID())
		}
		bound[job.ID()] = job
	}

	return &Engine{
		registry: registry,
		jobs:     bound,
		tenants:  tenants,
		clock:    clock,
		opts:     opts,
		log:      log,
	}, nil
}

// Registry exposes the registry the engine consults.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// RunJob runs the job for every tenant, or once for global jobs. Tenant runs
// are independent: a failed tenant is recorded and the others continue.
func (e *Engine) RunJob(ctx context.Context, id string) (FanOutResult, error) {
	desc, job, err := e.resolve(id)
	if err != nil {
		return FanOutResult{}, err
	}

	out := FanOutResult{JobID: id, StartedAt: e.clock.Now()}

	var scopes []*uuid.UUID
	if desc.Scope == ScopeGlobal {
		scopes = []*uuid.UUID{nil}
	} else {
		scopes, err = e.tenantScopes(ctx)
		if err != nil {
			return out, err
		}
	}

	out.Tenants = make([]TenantRun, len(scopes))

	var g errgroup.Group
	g.SetLimit(e.opts.TenantConcurrency)
	for i, tenantID := range scopes {
		g.Go(func() error {
			out.Tenants[i] = e.runTenant(ctx, job, tenantID)
			return nil
		})
	}
	_ = g.Wait()

	out.FinishedAt = e.clock.Now()
	if failed := out.FailedTenants(); failed > 0 {
		e.log.WithJob(id).Warn("automation fan-out finished with tenant failures", "tenants", len(out.Tenants), "failed_tenants", failed)
	}
	return out, nil
}

// RunTenant runs the job for a single tenant, for manual reprocessing.
func (e *Engine) RunTenant(ctx context.Context, id string, tenantID *uuid.UUID) (JobRunResult, error) {
	_, job, err := e.resolve(id)
	if err != nil {
		return JobRunResult{}, err
	}

	run := e.runTenant(ctx, job, tenantID)
	return run.Result, run.Err
}

func (e *Engine) resolve(id string) (JobDescriptor, Job, error) {
	desc, err := e.registry.Get(id)
	if err != nil {
		return JobDescriptor{}, nil, err
	}
	job, ok := e.jobs[id]
	if !ok {
		return JobDescriptor{}, nil, apperr.NotFound(fmt.Sprintf("automation %q has no implementation", id)).WithOp(opEngineRun)
	}
	if !e.registry.IsEnabled(id) {
		return JobDescriptor{}, nil, apperr.Wrap(apperr.KindConflict, fmt.Sprintf("automation %q is disabled", id), ErrJobDisabled).WithOp(opEngineRun)
	}
	return desc, job, nil
}

func (e *Engine) tenantScopes(ctx context.Context) ([]*uuid.UUID, error) {
	if e.tenants == nil {
		return []*uuid.UUID{nil}, nil
	}

	ids, err := e.tenants.ListTenantIDs(ctx)
	if err != nil {
		return nil, asDependencyError("list tenants", err)
	}

	scopes := make([]*uuid.UUID, 0, len(ids)+1)
	for _, id := range ids {
		scopes = append(scopes, &id)
	}
	if e.opts.IncludeUntenanted {
		scopes = append(scopes, nil)
	}
	return scopes, nil
}

func (e *Engine) runTenant(ctx context.Context, job Job, tenantID *uuid.UUID) (run TenantRun) {
	tenant := TenantLabel(tenantID)
	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	runLog := e.log.WithContext(ctx)
	log := runLog.WithJob(job.ID()).WithTenant(tenant)
	started := e.clock.Now()
	run.TenantID = tenantID

	defer func() {
		if r := recover(); r != nil {
			run.Err = fmt.Errorf("job panicked: %v", r)
		}
		if run.Result.JobID == "" {
			run.Result = NewJobRunResult(job.ID(), tenantID, started)
			run.Result.FinishedAt = e.clock.Now()
		}
		run.Result.RunID = runID
		if run.Err != nil {
			run.Error = run.Err.Error()
			log.Error("automation tenant run aborted", "error", run.Err, "kind", apperr.GetKind(run.Err).String())
		}
		r := run.Result
		runLog.JobRun(job.ID(), tenant, r.Processed, r.Succeeded, r.Skipped, r.Failed, r.FinishedAt.Sub(r.StartedAt))
	}()

	run.Result, run.Err = job.Run(ctx, tenantID)
	return run
}
