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

// InventoryExpiry alerts pharmacy staff when a stocked batch is exactly 30, 7
// or 1 days from expiry.
type InventoryExpiry struct {
	deps  Deps
	store InventoryExpiryStore
}

func NewInventoryExpiry(deps Deps, store InventoryExpiryStore) *InventoryExpiry {
	return &InventoryExpiry{deps: deps.withDefaults(), store: store}
}

func (j *InventoryExpiry) ID() string { return automation.JobInventoryExpiry }

func (j *InventoryExpiry) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	today := escalation.StartOfDay(now, j.deps.Location)
	horizon := escalation.InventoryCheckpoints[0]
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.InventoryBatch, error) {
			return j.store.ListExpiringBatches(ctx, tenantID, today, today.AddDate(0, 0, horizon))
		},
		func(b clinic.InventoryBatch) string { return b.ID.String() },
		func(ctx context.Context, b clinic.InventoryBatch) (automation.Decision, error) {
			expires := calendarDate(b.ExpiresOn, j.deps.Location)
			checkpoint, ok := escalation.InventoryCheckpoint(escalation.DaysBetween(now, expires, j.deps.Location))
			if !ok {
				return automation.Skip("not a checkpoint day"), nil
			}
			if b.LastAlertCheckpoint != nil && *b.LastAlertCheckpoint == checkpoint {
				return automation.Skip("checkpoint already alerted"), nil
			}

			staff, err := staffRecipients(ctx, j.deps.Notifier, tenantID, dispatch.RolePharmacist)
			if err != nil {
				return automation.Decision{}, err
			}

			marked, err := j.store.MarkBatchAlerted(ctx, tenantID, b.ID, checkpoint)
			if err != nil {
				return automation.Decision{}, err
			}
			if !marked {
				return automation.Skip("checkpoint already alerted"), nil
			}
			if len(staff) == 0 {
				return automation.Decision{Reason: "no staff to notify"}, nil
			}

			urgent := escalation.InventoryCheckpointUrgent(checkpoint)
			priority := dispatch.PriorityNormal
			if urgent {
				priority = dispatch.PriorityUrgent
			}
			delivered := notifyAll(ctx, j.deps.Notifier, dispatch.Intent{
				TenantID: tenantID,
				Title:    fmt.Sprintf("%s expires in %d day(s)", b.ItemName, checkpoint),
				Message:  fmt.Sprintf("Batch %s of %s (%d units) expires on %s.",
					b.LotNumber, b.ItemName, b.Quantity, expires.Format(dateLayout)),
				Priority: priority,
				Related:  ref("inventory_batch", b.ID),
				Channels: []dispatch.Channel{dispatch.ChannelInApp, dispatch.ChannelEmail},
				Escalate: urgent,
			}, staff)
			return automation.Decision{Reason: fmt.Sprintf("checkpoint %d", checkpoint), Delivered: delivered}, nil
		},
	)
}
