// Package clinic holds the hydrated records the automation jobs work on.
// The record store performs all joins; jobs never reach into other tables.
package clinic

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	AppointmentPending   = "pending"
	AppointmentScheduled = "scheduled"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// Visit statuses.
const (
	VisitOpen   = "open"
	VisitClosed = "closed"
)

// Invoice statuses.
const (
	InvoiceUnpaid  = "unpaid"
	InvoicePartial = "partial"
	InvoicePaid    = "paid"
	InvoiceVoid    = "void"
)

// Lab result statuses.
const (
	LabPending = "pending"
	LabReady   = "ready"
)

type Patient struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    *uuid.UUID `json:"organizationId,omitempty"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Email             string     `json:"email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	PortalUserID      *uuid.UUID `json:"portalUserId,omitempty"`
	NoShowRestriction string     `json:"noShowRestriction"`
	WelcomeSentAt     *time.Time `json:"welcomeSentAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// FullName joins the name parts.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Provider struct {
	ID              uuid.UUID  `json:"id"`
	OrganizationID  *uuid.UUID `json:"organizationId,omitempty"`
	UserID          *uuid.UUID `json:"userId,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Specialization  string     `json:"specialization"`
	Specializations []string   `json:"specializations"`
}

type StaffMember struct {
	ID     uuid.UUID  `json:"id"`
	UserID *uuid.UUID `json:"userId,omitempty"`
	Name   string     `json:"name"`
	Email  string     `json:"email,omitempty"`
	Phone  string     `json:"phone,omitempty"`
	Role   string     `json:"role"`
}

type Appointment struct {
	ID                      uuid.UUID  `json:"id"`
	OrganizationID          *uuid.UUID `json:"organizationId,omitempty"`
	Patient                 Patient    `json:"patient"`
	ProviderID              *uuid.UUID `json:"providerId,omitempty"`
	ProviderName            string     `json:"providerName,omitempty"`
	PreferredProviderID     *uuid.UUID `json:"preferredProviderId,omitempty"`
	RequestedSpecialization string     `json:"requestedSpecialization,omitempty"`
	Status                  string     `json:"status"`
	StartsAt                time.Time  `json:"startsAt"`
	EndsAt                  time.Time  `json:"endsAt"`
	CheckedInAt             *time.Time `json:"checkedInAt,omitempty"`
	ReminderSentAt          *time.Time `json:"reminderSentAt,omitempty"`
}

// Booking is a provider's occupied interval.
type Booking struct {
	ProviderID uuid.UUID
	StartsAt   time.Time
	EndsAt     time.Time
}

type Visit struct {
	ID                 uuid.UUID  `json:"id"`
	OrganizationID     *uuid.UUID `json:"organizationId,omitempty"`
	Patient            Patient    `json:"patient"`
	ProviderID         *uuid.UUID `json:"providerId,omitempty"`
	Status             string     `json:"status"`
	ClosedAt           *time.Time `json:"closedAt,omitempty"`
	FollowUpDate       *time.Time `json:"followUpDate,omitempty"`
	FollowUpRemindedAt *time.Time `json:"followUpRemindedAt,omitempty"`
}

type Invoice struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    *uuid.UUID `json:"organizationId,omitempty"`
	VisitID           uuid.UUID  `json:"visitId"`
	Patient           Patient    `json:"patient"`
	Number            string     `json:"number"`
	Status            string     `json:"status"`
	TotalCents        int64      `json:"totalCents"`
	PaidCents         int64      `json:"paidCents"`
	LastReminderLevel string     `json:"lastReminderLevel,omitempty"`
	LastReminderAt    *time.Time `json:"lastReminderAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// BalanceCents is the outstanding amount.
func (i Invoice) BalanceCents() int64 {
	return i.TotalCents - i.PaidCents
}

type Document struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organizationId,omitempty"`
	Patient        Patient    `json:"patient"`
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	ExpiresOn      *time.Time `json:"expiresOn,omitempty"`
	WarningLevel   string     `json:"warningLevel"`
}

type InventoryItem struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    *uuid.UUID `json:"organizationId,omitempty"`
	Name              string     `json:"name"`
	SKU               string     `json:"sku"`
	Quantity          int        `json:"quantity"`
	ReorderLevel      int        `json:"reorderLevel"`
	ReorderQuantity   int        `json:"reorderQuantity"`
	AverageDailyUsage float64    `json:"averageDailyUsage"`
	Critical          bool       `json:"critical"`
}

type InventoryBatch struct {
	ID                  uuid.UUID  `json:"id"`
	OrganizationID      *uuid.UUID `json:"organizationId,omitempty"`
	ItemID              uuid.UUID  `json:"itemId"`
	ItemName            string     `json:"itemName"`
	LotNumber           string     `json:"lotNumber"`
	Quantity            int        `json:"quantity"`
	ExpiresOn           time.Time  `json:"expiresOn"`
	LastAlertCheckpoint *int       `json:"lastAlertCheckpoint,omitempty"`
}

type ReorderRequest struct {
	ItemID   uuid.UUID `json:"itemId"`
	Quantity int       `json:"quantity"`
	Priority string    `json:"priority"`
	Score    float64   `json:"score"`
}

type Membership struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    *uuid.UUID `json:"organizationId,omitempty"`
	Patient           Patient    `json:"patient"`
	PlanName          string     `json:"planName"`
	EndsOn            time.Time  `json:"endsOn"`
	LastStageNotified string     `json:"lastStageNotified,omitempty"`
}

type LabResult struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    *uuid.UUID `json:"organizationId,omitempty"`
	Patient           Patient    `json:"patient"`
	TestName          string     `json:"testName"`
	Status            string     `json:"status"`
	ReadyAt           *time.Time `json:"readyAt,omitempty"`
	PatientNotifiedAt *time.Time `json:"patientNotifiedAt,omitempty"`
}

// DailyStats feeds the operations report.
type DailyStats struct {
	Day                   time.Time `json:"day"`
	AppointmentsScheduled int       `json:"appointmentsScheduled"`
	AppointmentsCompleted int       `json:"appointmentsCompleted"`
	NoShows               int       `json:"noShows"`
	Cancellations         int       `json:"cancellations"`
	VisitsClosed          int       `json:"visitsClosed"`
	InvoicesIssued        int       `json:"invoicesIssued"`
	InvoicedCents         int64     `json:"invoicedCents"`
	OutstandingCents      int64     `json:"outstandingCents"`
	LowStockItems         int       `json:"lowStockItems"`
	NewPatients           int       `json:"newPatients"`
}
