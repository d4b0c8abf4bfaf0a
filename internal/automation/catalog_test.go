package automation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndApplyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := []byte(`automations:
  payment-reminders:
    schedule: "0 11 * * 1-5"
  patient-welcome:
    enabled: false
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}

	catalog, err := ApplyOverrides(DefaultCatalog(), overrides)
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}

	reg, err := NewRegistry(catalog...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	payments, _ := reg.Get(JobPaymentReminders)
	if payments.Schedule != "0 11 * * 1-5" {
		t.Fatalf("schedule = %q", payments.Schedule)
	}
	if reg.IsEnabled(JobPatientWelcome) {
		t.Fatal("patient welcome should be disabled by override")
	}
	if !reg.IsEnabled(JobInvoiceGeneration) {
		t.Fatal("untouched jobs keep their default")
	}

	if DefaultCatalog()[6].Schedule != "0 10 * * *" {
		t.Fatal("ApplyOverrides must not mutate the input catalog")
	}
}

func TestApplyOverridesRejectsUnknownAndInvalid(t *testing.T) {
	if _, err := ApplyOverrides(DefaultCatalog(), map[string]CatalogOverride{"nope": {Schedule: "0 * * * *"}}); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if _, err := ApplyOverrides(DefaultCatalog(), map[string]CatalogOverride{JobDocumentExpiry: {Schedule: "daily"}}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestLoadOverridesEmptyPath(t *testing.T) {
	overrides, err := LoadOverrides("")
	if err != nil || overrides != nil {
		t.Fatalf("expected no overrides, got %v, %v", overrides, err)
	}
}
