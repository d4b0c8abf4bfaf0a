package jobs

import (
	"context"
	"fmt"
	"strings"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/scoring"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// InventoryReorder opens a reorder request for each low-stock item that has
// no open request yet.
type InventoryReorder struct {
	deps  Deps
	store ReorderStore
}

func NewInventoryReorder(deps Deps, store ReorderStore) *InventoryReorder {
	return &InventoryReorder{deps: deps.withDefaults(), store: store}
}

func (j *InventoryReorder) ID() string { return automation.JobInventoryReorder }

func (j *InventoryReorder) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.InventoryItem, error) {
			return j.store.ListLowStockItems(ctx, tenantID)
		},
		func(it clinic.InventoryItem) string { return it.ID.String() },
		func(ctx context.Context, it clinic.InventoryItem) (automation.Decision, error) {
			stock := scoring.Stock{
				Quantity:          it.Quantity,
				ReorderLevel:      it.ReorderLevel,
				AverageDailyUsage: it.AverageDailyUsage,
				Critical:          it.Critical,
			}
			if !scoring.NeedsReorder(stock) {
				return automation.Skip("stock above reorder level"), nil
			}
			priority := scoring.ReorderScore(stock)

			staff, err := staffRecipients(ctx, j.deps.Notifier, tenantID, dispatch.RolePharmacist)
			if err != nil {
				return automation.Decision{}, err
			}

			qty := ReorderQuantity(it)
			created, err := j.store.CreateReorderRequest(ctx, tenantID, clinic.ReorderRequest{
				ItemID:   it.ID,
				Quantity: qty,
				Priority: string(priority.Level),
				Score:    priority.Score,
			})
			if err != nil {
				return automation.Decision{}, err
			}
			if !created {
				return automation.Skip("reorder already open"), nil
			}

			reason := fmt.Sprintf("%s priority (%.0f)", priority.Level, priority.Score)
			if len(staff) == 0 {
				return automation.Decision{Reason: reason}, nil
			}

			high := priority.Level == scoring.ReorderHigh
			notePriority := dispatch.PriorityNormal
			if high {
				notePriority = dispatch.PriorityHigh
			}
			delivered := notifyAll(ctx, j.deps.Notifier, dispatch.Intent{
				TenantID: tenantID,
				Title:    "Reorder requested: " + it.Name,
				Message:  fmt.Sprintf("%s is at %d units (reorder level %d). A request for %d units was opened: %s.",
					it.Name, it.Quantity, it.ReorderLevel, qty, strings.Join(priority.Reasons, ", ")),
				Priority: notePriority,
				Related:  ref("inventory_item", it.ID),
				Channels: []dispatch.Channel{dispatch.ChannelInApp, dispatch.ChannelEmail},
				Escalate: high,
			}, staff)
			return automation.Decision{Reason: reason, Delivered: delivered}, nil
		},
	)
}

// ReorderQuantity is the item's configured reorder quantity, or enough to
// reach twice the reorder level when none is configured.
func ReorderQuantity(it clinic.InventoryItem) int {
	if it.ReorderQuantity > 0 {
		return it.ReorderQuantity
	}
	return max(2*it.ReorderLevel-it.Quantity, 1)
}
