package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// execute binds the shared gate and clock to a job pipeline.
func execute[T any](ctx context.Context, d Deps, jobID string, tenantID *uuid.UUID,
	fetch func(ctx context.Context) ([]T, error), key func(T) string, step automation.Step[T]) (automation.JobRunResult, error) {
	return automation.Execute(ctx, automation.Pipeline[T]{
		JobID:       jobID,
		SettingsKey: d.settingsKey(jobID),
		TenantID:    tenantID,
		Gate:        d.Settings,
		Clock:       d.Clock,
		Fetch:       fetch,
		Key:         key,
		Step:        step,
	})
}

func patientRecipient(p clinic.Patient) dispatch.Recipient {
	return dispatch.Recipient{
		ID:     p.ID,
		Kind:   dispatch.RecipientPatient,
		Name:   p.FullName(),
		Phone:  p.Phone,
		Email:  p.Email,
		UserID: p.PortalUserID,
	}
}

func providerRecipient(p clinic.Provider) dispatch.Recipient {
	return dispatch.Recipient{
		ID:     p.ID,
		Kind:   dispatch.RecipientProvider,
		Name:   p.Name,
		Phone:  p.Phone,
		Email:  p.Email,
		UserID: p.UserID,
	}
}

func ref(kind string, id uuid.UUID) *dispatch.Ref {
	return &dispatch.Ref{Type: kind, ID: id}
}

func (d Deps) action(label, path string) *dispatch.Action {
	if d.AppBaseURL == "" {
		return nil
	}
	return &dispatch.Action{Label: label, URL: strings.TrimRight(d.AppBaseURL, "/") + path}
}

// calendarDate reinterprets a DATE column value, which pgx returns as UTC
// midnight, as midnight of the same date in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func firstName(p clinic.Patient) string {
	if p.FirstName != "" {
		return p.FirstName
	}
	return "there"
}

func formatMoney(cents int64) string {
	return fmt.Sprintf("EUR %d.%02d", cents/100, cents%100)
}

const (
	dateLayout     = "Mon 2 Jan 2006"
	dateTimeLayout = "Mon 2 Jan 2006 at 15:04"
)

// staffRecipients returns the staff holding role, or the administrators when
// nobody holds it.
func staffRecipients(ctx context.Context, n Notifier, tenantID *uuid.UUID, role dispatch.Role) ([]dispatch.Recipient, error) {
	staff, err := n.Recipients(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}
	if len(staff) > 0 {
		return staff, nil
	}
	return n.Recipients(ctx, tenantID, dispatch.RoleAdmin)
}

// notifyAll sends one intent per recipient. Only the first intent escalates
// so administrators get a single copy.
func notifyAll(ctx context.Context, n Notifier, base dispatch.Intent, to []dispatch.Recipient) bool {
	delivered := false
	for i, r := range to {
		intent := base
		intent.Recipient = r
		intent.Escalate = base.Escalate && i == 0
		if n.Send(ctx, intent).Delivered() {
			delivered = true
		}
	}
	return delivered
}
