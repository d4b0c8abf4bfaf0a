// Package automation is the orchestration core of the clinic automation
// engine: the job registry, per-run results, the batch runner that applies
// the error policy to every candidate, and the tenant fan-out driver.
package automation

import (
	"fmt"
	"sync"
	"time"

	"clinic_automation/platform/apperr"

	"github.com/robfig/cron/v3"
)

// Category groups jobs by the part of the clinic they act on.
type Category string

const (
	CategoryAppointment Category = "appointment"
	CategoryFinancial   Category = "financial"
	CategoryInventory   Category = "inventory"
	CategoryClinical    Category = "clinical"
	CategoryPatient     Category = "patient"
	CategoryReporting   Category = "reporting"
	CategoryOperations  Category = "operations"
)

// Priority is an operator-facing hint; it does not change scheduling.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Scope says whether a job runs once per tenant or once for the whole platform.
type Scope string

const (
	ScopeTenant Scope = "tenant"
	ScopeGlobal Scope = "global"
)

const (
	opRegistryGet        = "automation.registry.get"
	opRegistrySetEnabled = "automation.registry.set_enabled"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// JobDescriptor is the static definition of a job. Only Enabled changes at runtime.
type JobDescriptor struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Schedule    string   `json:"schedule"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Enabled     bool     `json:"enabled"`
	Scope       Scope    `json:"scope"`
	// SettingsKey is the feature-flag key consulted per tenant; it defaults to ID.
	SettingsKey string `json:"settingsKey"`
}

// Registry holds the job catalog. Descriptors are never removed, only disabled.
type Registry struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]*JobDescriptor
}

// NewRegistry validates the descriptors and returns a registry that lists
// them in the order given.
func NewRegistry(descs ...JobDescriptor) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(descs)),
		jobs:  make(map[string]*JobDescriptor, len(descs)),
	}

	for _, desc := range descs {
		if err := validateDescriptor(desc); err != nil {
			return nil, err
		}
		if _, exists := r.jobs[desc.ID]; exists {
			return nil, fmt.Errorf("automation %q registered twice", desc.ID)
		}
		if desc.Scope == "" {
			desc.Scope = ScopeTenant
		}
		if desc.SettingsKey == "" {
			desc.SettingsKey = desc.ID
		}

		d := desc
		r.jobs[d.ID] = &d
		r.order = append(r.order, d.ID)
	}

	return r, nil
}

// List returns copies of all descriptors in registration order.
func (r *Registry) List() []JobDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.jobs[id])
	}
	return out
}

// Get returns a copy of the descriptor or a NotFound error.
func (r *Registry) Get(id string) (JobDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.jobs[id]
	if !ok {
		return JobDescriptor{}, apperr.NotFound(fmt.Sprintf("automation %q not found", id)).WithOp(opRegistryGet)
	}
	return *desc, nil
}

// SetEnabled toggles a job. It takes effect for the next trigger; a run
// already in flight is not cancelled.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.jobs[id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("automation %q not found", id)).WithOp(opRegistrySetEnabled)
	}
	desc.Enabled = enabled
	return nil
}

// IsEnabled reports false for unknown ids.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.jobs[id]
	return ok && desc.Enabled
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// NextRun returns the first activation of desc strictly after the given time.
func NextRun(desc JobDescriptor, after time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(desc.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}

func validateDescriptor(desc JobDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("automation id is required")
	}
	if _, err := ParseSchedule(desc.Schedule); err != nil {
		return fmt.Errorf("automation %q: invalid schedule %q: %w", desc.ID, desc.Schedule, err)
	}

	switch desc.Category {
	case CategoryAppointment, CategoryFinancial, CategoryInventory, CategoryClinical,
		CategoryPatient, CategoryReporting, CategoryOperations:
	default:
		return fmt.Errorf("automation %q: unknown category %q", desc.ID, desc.Category)
	}

	switch desc.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("automation %q: unknown priority %q", desc.ID, desc.Priority)
	}

	switch desc.Scope {
	case "", ScopeTenant, ScopeGlobal:
	default:
		return fmt.Errorf("automation %q: unknown scope %q", desc.ID, desc.Scope)
	}
	return nil
}
