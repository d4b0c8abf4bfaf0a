package escalation

// MembershipStage is the notification stage of a membership nearing its end.
type MembershipStage string

const (
	MembershipRenewalNotice MembershipStage = "renewal_notice"
	MembershipFinalNotice   MembershipStage = "final_notice"
	MembershipExpiresToday  MembershipStage = "expires_today"
	MembershipLapsed        MembershipStage = "lapsed"
)

// MembershipStageFor uses exact checkpoints: 30 days, 7 days, the end date
// itself and the day after it.
func MembershipStageFor(daysUntilEnd int) (MembershipStage, bool) {
	switch daysUntilEnd {
	case 30:
		return MembershipRenewalNotice, true
	case 7:
		return MembershipFinalNotice, true
	case 0:
		return MembershipExpiresToday, true
	case -1:
		return MembershipLapsed, true
	default:
		return "", false
	}
}
