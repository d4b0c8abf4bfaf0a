package escalation

// ReminderLevel is the payment reminder stage.
type ReminderLevel string

const (
	ReminderFirst  ReminderLevel = "first"
	ReminderSecond ReminderLevel = "second"
	ReminderFinal  ReminderLevel = "final"
)

const (
	firstReminderDay   = 7
	secondReminderDay  = 14
	finalReminderDay   = 30
	finalReminderEvery = 7
)

// PaymentReminderFor returns the reminder due exactly daysSinceCreated days
// after the invoice was issued: day 7, day 14, then day 30 and every 7 days
// after it. Any other day yields false.
func PaymentReminderFor(daysSinceCreated int) (ReminderLevel, bool) {
	switch {
	case daysSinceCreated == firstReminderDay:
		return ReminderFirst, true
	case daysSinceCreated == secondReminderDay:
		return ReminderSecond, true
	case daysSinceCreated >= finalReminderDay && (daysSinceCreated-finalReminderDay)%finalReminderEvery == 0:
		return ReminderFinal, true
	default:
		return "", false
	}
}

// PaymentReminderEligible reports whether an invoice can be chased at all.
func PaymentReminderEligible(status string, balanceCents int64) bool {
	if balanceCents <= 0 {
		return false
	}
	return status == "unpaid" || status == "partial"
}
