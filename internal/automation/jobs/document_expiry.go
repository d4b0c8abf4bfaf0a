package jobs

import (
	"context"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"
	"clinic_automation/internal/clinic"
	"clinic_automation/platform/apperr"

	"github.com/google/uuid"
)

// DocumentExpiry warns patients about documents expiring within 90 days.
// Each document is warned once per level, on the way up.
type DocumentExpiry struct {
	deps  Deps
	store DocumentStore
}

func NewDocumentExpiry(deps Deps, store DocumentStore) *DocumentExpiry {
	return &DocumentExpiry{deps: deps.withDefaults(), store: store}
}

func (j *DocumentExpiry) ID() string { return automation.JobDocumentExpiry }

func (j *DocumentExpiry) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	today := escalation.StartOfDay(now, j.deps.Location)
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Document, error) {
			return j.store.ListExpiringDocuments(ctx, tenantID, today, today.AddDate(0, 0, escalation.DocumentHorizonDays))
		},
		func(d clinic.Document) string { return d.ID.String() },
		func(ctx context.Context, d clinic.Document) (automation.Decision, error) {
			if d.ExpiresOn == nil {
				return automation.Decision{}, apperr.Validation("document has no expiry date")
			}
			expires := calendarDate(*d.ExpiresOn, j.deps.Location)
			level, ok := escalation.DocumentWarningFor(d.Category, escalation.DaysBetween(now, expires, j.deps.Location))
			if !ok {
				return automation.Skip("outside warning window"), nil
			}
			if level.Severity() <= escalation.ParseDocumentWarning(d.WarningLevel).Severity() {
				return automation.Skip("already warned at this level"), nil
			}

			raised, err := j.store.UpdateDocumentWarning(ctx, tenantID, d.ID, d.WarningLevel, string(level), now)
			if err != nil {
				return automation.Decision{}, err
			}
			if !raised {
				return automation.Skip("warning level changed concurrently"), nil
			}

			priority := dispatch.PriorityNormal
			switch level {
			case escalation.DocumentWarn:
				priority = dispatch.PriorityHigh
			case escalation.DocumentUrgent:
				priority = dispatch.PriorityUrgent
			}
			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(d.Patient),
				Title:     fmt.Sprintf("Your %s expires soon", d.Title),
				Message:   fmt.Sprintf("Hi %s, your %s (%s) expires on %s. Please provide an updated copy.",
					firstName(d.Patient), d.Title, d.Category, expires.Format(dateLayout)),
				Priority: priority,
				Related:  ref("document", d.ID),
				Action:   j.deps.action("Upload document", "/documents/"+d.ID.String()),
				Escalate: level == escalation.DocumentUrgent,
			})
			return automation.Decision{Reason: string(level), Delivered: res.Delivered()}, nil
		},
	)
}
