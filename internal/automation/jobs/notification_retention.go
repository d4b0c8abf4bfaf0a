package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/platform/apperr"

	"github.com/google/uuid"
)

// NotificationRetention purges old rows from every retained table. It runs
// once for the whole platform.
type NotificationRetention struct {
	deps          Deps
	retentionDays int
	tables        []Purger
}

func NewNotificationRetention(deps Deps, retentionDays int, tables ...Purger) *NotificationRetention {
	return &NotificationRetention{deps: deps.withDefaults(), retentionDays: retentionDays, tables: tables}
}

func (j *NotificationRetention) ID() string { return automation.JobNotificationRetention }

func (j *NotificationRetention) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	cutoff := j.deps.Clock.Now().AddDate(0, 0, -j.retentionDays)
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(context.Context) ([]Purger, error) {
			return j.tables, nil
		},
		Purger.Name,
		func(ctx context.Context, table Purger) (automation.Decision, error) {
			if j.retentionDays <= 0 {
				return automation.Decision{}, apperr.Validation("retention window must be positive")
			}
			n, err := table.PurgeBefore(ctx, cutoff)
			if err != nil {
				return automation.Decision{}, err
			}
			return automation.Decision{Reason: fmt.Sprintf("purged %d rows", n)}, nil
		},
	)
}
