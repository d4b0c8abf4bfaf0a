package jobs

import (
	"context"
	"fmt"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/escalation"
	"clinic_automation/internal/reports"
	"clinic_automation/platform/apperr"

	"github.com/google/uuid"
)

// DailyOperationsReport archives one CSV per tenant and day and mails the
// link to administrators.
type DailyOperationsReport struct {
	deps    Deps
	store   StatsStore
	archive ReportArchive
}

func NewDailyOperationsReport(deps Deps, store StatsStore, archive ReportArchive) *DailyOperationsReport {
	return &DailyOperationsReport{deps: deps.withDefaults(), store: store, archive: archive}
}

func (j *DailyOperationsReport) ID() string { return automation.JobDailyOperationsReport }

func (j *DailyOperationsReport) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	day := escalation.StartOfDay(j.deps.Clock.Now(), j.deps.Location)
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(context.Context) ([]time.Time, error) {
			return []time.Time{day}, nil
		},
		func(d time.Time) string { return d.Format("2006-01-02") },
		func(ctx context.Context, day time.Time) (automation.Decision, error) {
			if j.archive == nil {
				return automation.Decision{}, apperr.Validation("report archive not configured")
			}

			key := reports.ObjectKey(tenantID, day)
			exists, err := j.archive.Exists(ctx, key)
			if err != nil {
				return automation.Decision{}, apperr.DependencyUnavailable("check report archive", err)
			}
			if exists {
				return automation.Skip("report already archived"), nil
			}

			stats, err := j.store.DailyStats(ctx, tenantID, day, day.AddDate(0, 0, 1))
			if err != nil {
				return automation.Decision{}, err
			}
			stats.Day = day

			admins, err := j.deps.Notifier.Recipients(ctx, tenantID, dispatch.RoleAdmin)
			if err != nil {
				return automation.Decision{}, err
			}

			content, err := reports.RenderDailyCSV(stats)
			if err != nil {
				return automation.Decision{}, err
			}
			if err := j.archive.Put(ctx, key, reports.ContentTypeCSV, content); err != nil {
				return automation.Decision{}, apperr.DependencyUnavailable("upload report", err)
			}
			link, err := j.archive.PresignedURL(ctx, key)
			if err != nil {
				j.deps.Log.Warn("report archived without a download link", "key", key, "error", err)
				return automation.Decision{Reason: key}, nil
			}

			delivered := notifyAll(ctx, j.deps.Notifier, dispatch.Intent{
				TenantID: tenantID,
				Title:    "Daily operations report " + day.Format("2006-01-02"),
				Message:  fmt.Sprintf("%d appointments, %d no-shows, %d invoices issued. Download the full report within %d hours.",
					stats.AppointmentsScheduled, stats.NoShows, stats.InvoicesIssued, int(reports.PresignedURLTTL.Hours())),
				Priority: dispatch.PriorityLow,
				Action:   &dispatch.Action{Label: "Download report", URL: link},
				Channels: []dispatch.Channel{dispatch.ChannelEmail, dispatch.ChannelInApp},
			}, admins)
			return automation.Decision{Reason: key, Delivered: delivered}, nil
		},
	)
}
