package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// PaymentReminders chases outstanding invoices on the reminder days only.
type PaymentReminders struct {
	deps  Deps
	store PaymentReminderStore
}

func NewPaymentReminders(deps Deps, store PaymentReminderStore) *PaymentReminders {
	return &PaymentReminders{deps: deps.withDefaults(), store: store}
}

func (j *PaymentReminders) ID() string { return automation.JobPaymentReminders }

func (j *PaymentReminders) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	loc := j.deps.Location
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Invoice, error) {
			return j.store.ListOutstandingInvoices(ctx, tenantID)
		},
		func(inv clinic.Invoice) string { return inv.ID.String() },
		func(ctx context.Context, inv clinic.Invoice) (automation.Decision, error) {
			if !escalation.PaymentReminderEligible(inv.Status, inv.BalanceCents()) {
				return automation.Skip("invoice settled"), nil
			}
			level, due := escalation.PaymentReminderFor(escalation.DaysBetween(inv.CreatedAt, now, loc))
			if !due {
				return automation.Skip("not a reminder day"), nil
			}
			if inv.LastReminderAt != nil && escalation.DaysBetween(*inv.LastReminderAt, now, loc) == 0 {
				return automation.Skip("already reminded today"), nil
			}

			stamped, err := j.store.MarkInvoiceReminded(ctx, tenantID, inv.ID, string(level), now, escalation.StartOfDay(now, loc))
			if err != nil {
				return automation.Decision{}, err
			}
			if !stamped {
				return automation.Skip("already reminded today"), nil
			}

			title, priority := "Payment reminder", dispatch.PriorityNormal
			switch level {
			case escalation.ReminderSecond:
				title, priority = "Second payment reminder", dispatch.PriorityHigh
			case escalation.ReminderFinal:
				title, priority = "Final payment reminder", dispatch.PriorityUrgent
			}

			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(inv.Patient),
				Title:     title,
				Message:   fmt.Sprintf("Hi %s, invoice %s still has %s outstanding. Please settle it at your earliest convenience.",
					firstName(inv.Patient), inv.Number, formatMoney(inv.BalanceCents())),
				Priority: priority,
				Related:  ref("invoice", inv.ID),
				Action:   j.deps.action("Pay invoice", "/invoices/"+inv.ID.String()),
			})
			return automation.Decision{Reason: string(level), Delivered: res.Delivered()}, nil
		},
	)
}
