package automation

import (
	"sync"
	"testing"
	"time"

	"clinic_automation/platform/apperr"
)

func TestDefaultCatalogBuildsRegistry(t *testing.T) {
	reg, err := NewRegistry(DefaultCatalog()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	jobs := reg.List()
	if len(jobs) != 15 {
		t.Fatalf("expected 15 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != JobAppointmentReminders {
		t.Fatalf("expected registration order to be kept, first = %s", jobs[0].ID)
	}
	for _, job := range jobs {
		if job.SettingsKey != job.ID {
			t.Errorf("%s: settings key = %q", job.ID, job.SettingsKey)
		}
		if !job.Enabled {
			t.Errorf("%s should be enabled by default", job.ID)
		}
	}

	retention, err := reg.Get(JobNotificationRetention)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if retention.Scope != ScopeGlobal {
		t.Fatalf("retention scope = %s, want global", retention.Scope)
	}
}

func TestNewRegistryRejectsInvalidDescriptors(t *testing.T) {
	valid := JobDescriptor{ID: "a", Schedule: "0 * * * *", Category: CategoryClinical, Priority: PriorityLow}

	tests := []struct {
		name  string
		descs []JobDescriptor
	}{
		{name: "duplicate id", descs: []JobDescriptor{valid, valid}},
		{name: "empty id", descs: []JobDescriptor{{Schedule: "0 * * * *", Category: CategoryClinical, Priority: PriorityLow}}},
		{name: "bad schedule", descs: []JobDescriptor{{ID: "b", Schedule: "hourly", Category: CategoryClinical, Priority: PriorityLow}}},
		{name: "bad category", descs: []JobDescriptor{{ID: "c", Schedule: "0 * * * *", Category: "billing", Priority: PriorityLow}}},
		{name: "bad priority", descs: []JobDescriptor{{ID: "d", Schedule: "0 * * * *", Category: CategoryClinical, Priority: "urgent"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.descs...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRegistryGetAndSetEnabled(t *testing.T) {
	reg, err := NewRegistry(DefaultCatalog()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := reg.Get("missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := reg.SetEnabled("missing", false); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := reg.SetEnabled(JobInvoiceGeneration, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if reg.IsEnabled(JobInvoiceGeneration) {
		t.Fatal("invoice generation should be disabled")
	}
	desc, _ := reg.Get(JobInvoiceGeneration)
	if desc.Enabled {
		t.Fatal("descriptor copy should reflect disabled flag")
	}

	desc.Enabled = true
	if reg.IsEnabled(JobInvoiceGeneration) {
		t.Fatal("mutating a returned copy must not change the registry")
	}
}

func TestRegistryConcurrentToggle(t *testing.T) {
	reg, err := NewRegistry(DefaultCatalog()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(enabled bool) {
			defer wg.Done()
			_ = reg.SetEnabled(JobPaymentReminders, enabled)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = reg.IsEnabled(JobPaymentReminders)
			_ = reg.List()
		}()
	}
	wg.Wait()
}

func TestNextRun(t *testing.T) {
	desc := JobDescriptor{ID: "x", Schedule: "*/15 * * * *"}
	after := time.Date(2026, 3, 2, 9, 7, 0, 0, time.UTC)

	next, err := NextRun(desc, after)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next, want)
	}
}
