package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// InvoiceGeneration invoices closed visits, at most once per visit.
type InvoiceGeneration struct {
	deps  Deps
	store InvoiceStore
}

func NewInvoiceGeneration(deps Deps, store InvoiceStore) *InvoiceGeneration {
	return &InvoiceGeneration{deps: deps.withDefaults(), store: store}
}

func (j *InvoiceGeneration) ID() string { return automation.JobInvoiceGeneration }

func (j *InvoiceGeneration) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Visit, error) {
			return j.store.ListUninvoicedVisits(ctx, tenantID)
		},
		func(v clinic.Visit) string { return v.ID.String() },
		func(ctx context.Context, v clinic.Visit) (automation.Decision, error) {
			if v.Status != clinic.VisitClosed {
				return automation.Skip("visit not closed"), nil
			}
			// The candidate list may be stale when two runs overlap.
			exists, err := j.store.InvoiceExistsForVisit(ctx, v.ID)
			if err != nil {
				return automation.Decision{}, err
			}
			if exists {
				return automation.Skip("invoice exists"), nil
			}

			inv, created, err := j.store.CreateInvoice(ctx, tenantID, v.ID, v.Patient.ID, now)
			if err != nil {
				return automation.Decision{}, err
			}
			if !created {
				return automation.Skip("invoice exists"), nil
			}

			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(v.Patient),
				Title:     "Your invoice " + inv.Number,
				Message:   fmt.Sprintf("Hi %s, invoice %s for %s is ready.", firstName(v.Patient), inv.Number, formatMoney(inv.TotalCents)),
				Priority:  dispatch.PriorityNormal,
				Related:   ref("invoice", inv.ID),
				Action:    j.deps.action("View invoice", "/invoices/"+inv.ID.String()),
				Channels:  []dispatch.Channel{dispatch.ChannelEmail, dispatch.ChannelInApp},
			})
			return automation.Decision{Reason: inv.Number, Delivered: res.Delivered()}, nil
		},
	)
}
