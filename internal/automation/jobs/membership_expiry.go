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

type MembershipExpiry struct {
	deps  Deps
	store MembershipStore
}

func NewMembershipExpiry(deps Deps, store MembershipStore) *MembershipExpiry {
	return &MembershipExpiry{deps: deps.withDefaults(), store: store}
}

func (j *MembershipExpiry) ID() string { return automation.JobMembershipExpiry }

func (j *MembershipExpiry) Run(ctx context.Context, tenantID *uuid.UUID) (automation.JobRunResult, error) {
	now := j.deps.Clock.Now()
	today := escalation.StartOfDay(now, j.deps.Location)
	return execute(ctx, j.deps, j.ID(), tenantID,
		func(ctx context.Context) ([]clinic.Membership, error) {
			return j.store.ListMembershipsEndingBetween(ctx, tenantID, today.AddDate(0, 0, -1), today.AddDate(0, 0, 30))
		},
		func(m clinic.Membership) string { return m.ID.String() },
		func(ctx context.Context, m clinic.Membership) (automation.Decision, error) {
			ends := calendarDate(m.EndsOn, j.deps.Location)
			stage, ok := escalation.MembershipStageFor(escalation.DaysBetween(now, ends, j.deps.Location))
			if !ok {
				return automation.Skip("not a notice day"), nil
			}
			if m.LastStageNotified == string(stage) {
				return automation.Skip("stage already notified"), nil
			}
			marked, err := j.store.MarkMembershipStage(ctx, tenantID, m.ID, string(stage))
			if err != nil {
				return automation.Decision{}, err
			}
			if !marked {
				return automation.Skip("stage already notified"), nil
			}

			title, body := membershipNotice(stage, m.PlanName, ends.Format(dateLayout))
			res := j.deps.Notifier.Send(ctx, dispatch.Intent{
				TenantID:  tenantID,
				Recipient: patientRecipient(m.Patient),
				Title:     title,
				Message:   fmt.Sprintf("Hi %s, %s", firstName(m.Patient), body),
				Priority:  dispatch.PriorityLow,
				Related:   ref("membership", m.ID),
				Action:    j.deps.action("Renew membership", "/memberships/"+m.ID.String()),
				Channels:  []dispatch.Channel{dispatch.ChannelEmail, dispatch.ChannelInApp},
			})
			return automation.Decision{Reason: string(stage), Delivered: res.Delivered()}, nil
		},
	)
}

func membershipNotice(stage escalation.MembershipStage, plan, ends string) (string, string) {
	switch stage {
	case escalation.MembershipRenewalNotice:
		return "Your membership renews soon", fmt.Sprintf("your %s membership ends on %s. Renew now to keep your benefits.", plan, ends)
	case escalation.MembershipFinalNotice:
		return "One week left on your membership", fmt.Sprintf("your %s membership ends in a week, on %s.", plan, ends)
	case escalation.MembershipExpiresToday:
		return "Your membership ends today", fmt.Sprintf("your %s membership ends today.", plan)
	default:
		return "Your membership has lapsed", fmt.Sprintf("your %s membership ended on %s. Renew any time to restore your benefits.", plan, ends)
	}
}
