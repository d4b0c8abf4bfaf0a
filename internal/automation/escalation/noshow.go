package escalation

import "time"

// NoShowWindow is the trailing window in which no-shows are counted.
const NoShowWindow = 365 * 24 * time.Hour

// NoShowLevel is the booking restriction derived from a patient's no-shows.
type NoShowLevel string

const (
	NoShowNone            NoShowLevel = "none"
	NoShowDepositRequired NoShowLevel = "deposit_required"
	NoShowWalkInOnly      NoShowLevel = "walk_in_only"
	NoShowBanned          NoShowLevel = "banned"
)

// NoShowLevelFor maps the live no-show count to a level:
// 0-1 none, 2 deposit_required, 3 walk_in_only, 4 or more banned.
func NoShowLevelFor(count int) NoShowLevel {
	switch {
	case count >= 4:
		return NoShowBanned
	case count == 3:
		return NoShowWalkInOnly
	case count == 2:
		return NoShowDepositRequired
	default:
		return NoShowNone
	}
}

// Severity orders levels; unknown stored values rank as none.
func (l NoShowLevel) Severity() int {
	switch l {
	case NoShowDepositRequired:
		return 1
	case NoShowWalkInOnly:
		return 2
	case NoShowBanned:
		return 3
	default:
		return 0
	}
}

// ParseNoShowLevel normalises a stored restriction.
func ParseNoShowLevel(raw string) NoShowLevel {
	switch NoShowLevel(raw) {
	case NoShowDepositRequired, NoShowWalkInOnly, NoShowBanned:
		return NoShowLevel(raw)
	default:
		return NoShowNone
	}
}
