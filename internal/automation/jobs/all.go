package jobs

import (
	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/scoring"
)

// Store is everything the built-in jobs need from the record store.
type Store interface {
	AppointmentReminderStore
	NoShowDetectionStore
	NoShowPolicyStore
	AssignmentStore
	FollowUpStore
	InvoiceStore
	PaymentReminderStore
	DocumentStore
	LabResultStore
	InventoryExpiryStore
	ReorderStore
	MembershipStore
	WelcomeStore
	StatsStore
}

// Set wires the built-in jobs.
type Set struct {
	Deps          Deps
	Store         Store
	Archive       ReportArchive
	Queue         WelcomeQueue
	Weights       scoring.Weights
	RetentionDays int
	Retained      []Purger
}

// Build returns one job per built-in catalog entry, plus the welcome job so
// the worker can run its one-shot tasks.
func (s Set) Build() ([]automation.Job, *PatientWelcome) {
	welcome := NewPatientWelcome(s.Deps, s.Store, s.Queue)
	jobs := []automation.Job{
		NewAppointmentReminders(s.Deps, s.Store),
		NewNoShowDetection(s.Deps, s.Store),
		NewNoShowPolicy(s.Deps, s.Store),
		NewSmartAssignment(s.Deps, s.Store, s.Weights),
		NewFollowUpReminders(s.Deps, s.Store),
		NewInvoiceGeneration(s.Deps, s.Store),
		NewPaymentReminders(s.Deps, s.Store),
		NewDocumentExpiry(s.Deps, s.Store),
		NewLabResultNotifications(s.Deps, s.Store),
		NewInventoryExpiry(s.Deps, s.Store),
		NewInventoryReorder(s.Deps, s.Store),
		NewMembershipExpiry(s.Deps, s.Store),
		welcome,
		NewDailyOperationsReport(s.Deps, s.Store, s.Archive),
		NewNotificationRetention(s.Deps, s.RetentionDays, s.Retained...),
	}
	return jobs, welcome
}
