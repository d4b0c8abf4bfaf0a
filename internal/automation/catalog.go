package automation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Built-in job ids.
const (
	JobAppointmentReminders   = "appointment-reminders"
	JobNoShowDetection        = "no-show-detection"
	JobNoShowPolicy           = "no-show-policy"
	JobSmartAssignment        = "smart-assignment"
	JobFollowUpReminders      = "follow-up-reminders"
	JobInvoiceGeneration      = "invoice-generation"
	JobPaymentReminders       = "payment-reminders"
	JobDocumentExpiry         = "document-expiry"
	JobLabResultNotifications = "lab-result-notifications"
	JobInventoryExpiry        = "inventory-expiry"
	JobInventoryReorder       = "inventory-reorder"
	JobMembershipExpiry       = "membership-expiry"
	JobPatientWelcome         = "patient-welcome"
	JobDailyOperationsReport  = "daily-operations-report"
	JobNotificationRetention  = "notification-retention"
)

// DefaultCatalog returns the built-in job descriptors, all enabled.
func DefaultCatalog() []JobDescriptor {
	return []JobDescriptor{
		{ID: JobAppointmentReminders, Description: "Remind patients of appointments in the next 24 hours", Schedule: "0 * * * *", Category: CategoryAppointment, Priority: PriorityHigh, Enabled: true},
		{ID: JobNoShowDetection, Description: "Mark appointments as no-show when the patient never checked in", Schedule: "*/15 * * * *", Category: CategoryAppointment, Priority: PriorityHigh, Enabled: true},
		{ID: JobNoShowPolicy, Description: "Apply booking restrictions from the trailing-year no-show count", Schedule: "*/30 * * * *", Category: CategoryPatient, Priority: PriorityHigh, Enabled: true},
		{ID: JobSmartAssignment, Description: "Assign the best-scoring provider to pending appointments", Schedule: "*/15 * * * *", Category: CategoryAppointment, Priority: PriorityHigh, Enabled: true},
		{ID: JobFollowUpReminders, Description: "Remind patients whose follow-up is due without a booked appointment", Schedule: "0 9 * * *", Category: CategoryAppointment, Priority: PriorityMedium, Enabled: true},
		{ID: JobInvoiceGeneration, Description: "Create invoices for closed visits", Schedule: "*/30 * * * *", Category: CategoryFinancial, Priority: PriorityHigh, Enabled: true},
		{ID: JobPaymentReminders, Description: "Send escalating reminders for outstanding invoices", Schedule: "0 10 * * *", Category: CategoryFinancial, Priority: PriorityMedium, Enabled: true},
		{ID: JobDocumentExpiry, Description: "Warn patients about expiring documents", Schedule: "0 8 * * *", Category: CategoryClinical, Priority: PriorityMedium, Enabled: true},
		{ID: JobLabResultNotifications, Description: "Tell patients their lab results are ready", Schedule: "*/15 * * * *", Category: CategoryClinical, Priority: PriorityHigh, Enabled: true},
		{ID: JobInventoryExpiry, Description: "Alert pharmacy staff about stock nearing expiry", Schedule: "0 7 * * *", Category: CategoryInventory, Priority: PriorityMedium, Enabled: true},
		{ID: JobInventoryReorder, Description: "Open reorder requests for low stock", Schedule: "0 6 * * *", Category: CategoryInventory, Priority: PriorityMedium, Enabled: true},
		{ID: JobMembershipExpiry, Description: "Notify members about upcoming and lapsed memberships", Schedule: "0 9 * * *", Category: CategoryPatient, Priority: PriorityLow, Enabled: true},
		{ID: JobPatientWelcome, Description: "Queue welcome messages for newly registered patients", Schedule: "*/30 * * * *", Category: CategoryPatient, Priority: PriorityLow, Enabled: true},
		{ID: JobDailyOperationsReport, Description: "Archive the daily operations report and mail it to administrators", Schedule: "30 23 * * *", Category: CategoryReporting, Priority: PriorityLow, Enabled: true},
		{ID: JobNotificationRetention, Description: "Purge notifications older than the retention window", Schedule: "0 3 1 * *", Category: CategoryOperations, Priority: PriorityLow, Enabled: true, Scope: ScopeGlobal},
	}
}

// CatalogOverride adjusts a built-in descriptor from the catalog file.
type CatalogOverride struct {
	Schedule string `yaml:"schedule"`
	Enabled  *bool  `yaml:"enabled"`
}

type catalogFile struct {
	Automations map[string]CatalogOverride `yaml:"automations"`
}

// LoadOverrides reads the YAML catalog file. An empty path yields no overrides.
func LoadOverrides(path string) (map[string]CatalogOverride, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return file.Automations, nil
}

// ApplyOverrides returns a copy of catalog with the overrides applied.
// Overrides for ids that are not in the catalog are rejected.
func ApplyOverrides(catalog []JobDescriptor, overrides map[string]CatalogOverride) ([]JobDescriptor, error) {
	out := make([]JobDescriptor, len(catalog))
	copy(out, catalog)

	index := make(map[string]int, len(out))
	for i, desc := range out {
		index[desc.ID] = i
	}

	for id, override := range overrides {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("catalog override for unknown automation %q", id)
		}
		if override.Schedule != "" {
			if _, err := ParseSchedule(override.Schedule); err != nil {
				return nil, fmt.Errorf("catalog override for %q: invalid schedule %q: %w", id, override.Schedule, err)
			}
			out[i].Schedule = override.Schedule
		}
		if override.Enabled != nil {
			out[i].Enabled = *override.Enabled
		}
	}

	return out, nil
}
