// Package jobs holds the concrete automations. Each job runs one tenant at a
// time through automation.Execute: settings gate, candidate query, then the
// per-candidate pipeline that re-derives facts, checks eligibility, applies a
// single conditional write and notifies.
package jobs

import (
	"context"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
)

// Conditional writes return false when the target state was already reached,
// which the jobs treat as "someone else did it" and skip.

type AppointmentReminderStore interface {
	ListAppointmentsForReminder(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Appointment, error)
	MarkAppointmentReminded(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, at time.Time) (bool, error)
}

type NoShowDetectionStore interface {
	ListOverdueAppointments(ctx context.Context, tenantID *uuid.UUID, endedBefore time.Time) ([]clinic.Appointment, error)
	MarkNoShow(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (bool, error)
}

type NoShowPolicyStore interface {
	ListNoShowPolicyCandidates(ctx context.Context, tenantID *uuid.UUID, since time.Time) ([]uuid.UUID, error)
	GetPatient(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (clinic.Patient, error)
	CountNoShows(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, since time.Time) (int, error)
	UpdateNoShowRestriction(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, from, to string, at time.Time) (bool, error)
}

type AssignmentStore interface {
	ListUnassignedAppointments(ctx context.Context, tenantID *uuid.UUID, from time.Time) ([]clinic.Appointment, error)
	GetAppointment(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (clinic.Appointment, error)
	ListActiveProviders(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Provider, error)
	ListProviderBookings(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Booking, error)
	RecentProvidersForPatient(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, limit int) ([]uuid.UUID, error)
	AssignProvider(ctx context.Context, tenantID *uuid.UUID, appointmentID, providerID uuid.UUID) (bool, error)
}

type FollowUpStore interface {
	ListFollowUpCandidates(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Visit, error)
	HasFutureAppointment(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, after time.Time) (bool, error)
	MarkFollowUpReminded(ctx context.Context, tenantID *uuid.UUID, visitID uuid.UUID, at time.Time) (bool, error)
}

type InvoiceStore interface {
	ListUninvoicedVisits(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Visit, error)
	InvoiceExistsForVisit(ctx context.Context, visitID uuid.UUID) (bool, error)
	CreateInvoice(ctx context.Context, tenantID *uuid.UUID, visitID, patientID uuid.UUID, issuedAt time.Time) (clinic.Invoice, bool, error)
}

type PaymentReminderStore interface {
	ListOutstandingInvoices(ctx context.Context, tenantID *uuid.UUID) ([]clinic.Invoice, error)
	MarkInvoiceReminded(ctx context.Context, tenantID *uuid.UUID, invoiceID uuid.UUID, level string, at, dayStart time.Time) (bool, error)
}

type DocumentStore interface {
	ListExpiringDocuments(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Document, error)
	UpdateDocumentWarning(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, from, to string, at time.Time) (bool, error)
}

type LabResultStore interface {
	ListReadyLabResults(ctx context.Context, tenantID *uuid.UUID) ([]clinic.LabResult, error)
	MarkLabResultNotified(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, at time.Time) (bool, error)
}

type InventoryExpiryStore interface {
	ListExpiringBatches(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.InventoryBatch, error)
	MarkBatchAlerted(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, checkpoint int) (bool, error)
}

type ReorderStore interface {
	ListLowStockItems(ctx context.Context, tenantID *uuid.UUID) ([]clinic.InventoryItem, error)
	CreateReorderRequest(ctx context.Context, tenantID *uuid.UUID, req clinic.ReorderRequest) (bool, error)
}

type MembershipStore interface {
	ListMembershipsEndingBetween(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) ([]clinic.Membership, error)
	MarkMembershipStage(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID, stage string) (bool, error)
}

type WelcomeStore interface {
	ListUnwelcomedPatients(ctx context.Context, tenantID *uuid.UUID, limit int) ([]clinic.Patient, error)
	GetPatient(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (clinic.Patient, error)
	MarkWelcomeSent(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID, at time.Time) (bool, error)
}

// WelcomeQueue submits the one-shot welcome task. Implementations return
// ErrAlreadyQueued when a task for the patient is still pending.
type WelcomeQueue interface {
	EnqueueWelcome(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID) error
}

type StatsStore interface {
	DailyStats(ctx context.Context, tenantID *uuid.UUID, from, to time.Time) (clinic.DailyStats, error)
}

// ReportArchive keeps rendered reports, one object per key.
type ReportArchive interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, contentType string, content []byte) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Purger deletes rows of one retained table.
type Purger interface {
	Name() string
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier is the dispatcher as seen by the jobs.
type Notifier interface {
	Send(ctx context.Context, intent dispatch.Intent) dispatch.Result
	Recipients(ctx context.Context, tenantID *uuid.UUID, roles ...dispatch.Role) ([]dispatch.Recipient, error)
}

// Deps are shared by every job.
type Deps struct {
	Settings automation.Gate
	Notifier Notifier
	Clock    automation.Clock
	// Location is the timezone for calendar-day arithmetic.
	Location *time.Location
	Log      *logger.Logger
	// AppBaseURL prefixes links in notifications.
	AppBaseURL string
	// SettingsKeys maps a job id to the feature-flag key it is gated on.
	// Jobs missing from the map use their id.
	SettingsKeys map[string]string
}

func (d Deps) settingsKey(jobID string) string {
	if key := d.SettingsKeys[jobID]; key != "" {
		return key
	}
	return jobID
}

func (d Deps) withDefaults() Deps {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Clock == nil {
		d.Clock = automation.SystemClock{Location: d.Location}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}
