package scoring

import "fmt"

// ReorderLevel is the urgency of a reorder request.
type ReorderLevel string

const (
	ReorderHigh   ReorderLevel = "high"
	ReorderMedium ReorderLevel = "medium"
	ReorderLow    ReorderLevel = "low"
)

// Stock describes an item at or below its reorder level.
type Stock struct {
	Quantity          int
	ReorderLevel      int
	AverageDailyUsage float64
	Critical          bool
}

// ReorderPriority is the scored urgency with the reasons that produced it.
type ReorderPriority struct {
	Score   float64      `json:"score"`
	Level   ReorderLevel `json:"level"`
	Reasons []string     `json:"reasons"`
}

const (
	reorderOutOfStock      = 50
	reorderVeryLowRatio    = 30
	reorderLowRatio        = 20
	reorderAtLevel         = 10
	reorderCoverThreeDays  = 20
	reorderCoverSevenDays  = 10
	reorderCriticalItem    = 20
	reorderHighThreshold   = 70
	reorderMediumThreshold = 40
)

// NeedsReorder reports whether the item is at or below its reorder level.
func NeedsReorder(s Stock) bool {
	return s.Quantity <= s.ReorderLevel
}

// ReorderScore rates how urgently an item should be reordered.
func ReorderScore(s Stock) ReorderPriority {
	var score float64
	reasons := make([]string, 0, 3)

	switch {
	case s.Quantity <= 0:
		score += reorderOutOfStock
		reasons = append(reasons, "out of stock")
	case s.ReorderLevel > 0:
		ratio := float64(s.Quantity) / float64(s.ReorderLevel)
		switch {
		case ratio <= 0.25:
			score += reorderVeryLowRatio
		case ratio <= 0.5:
			score += reorderLowRatio
		default:
			score += reorderAtLevel
		}
		reasons = append(reasons, fmt.Sprintf("%d of %d reorder level", s.Quantity, s.ReorderLevel))
	}

	if s.Quantity > 0 && s.AverageDailyUsage > 0 {
		cover := float64(s.Quantity) / s.AverageDailyUsage
		switch {
		case cover <= 3:
			score += reorderCoverThreeDays
			reasons = append(reasons, fmt.Sprintf("%.1f days of cover", cover))
		case cover <= 7:
			score += reorderCoverSevenDays
			reasons = append(reasons, fmt.Sprintf("%.1f days of cover", cover))
		}
	}

	if s.Critical {
		score += reorderCriticalItem
		reasons = append(reasons, "critical item")
	}

	level := ReorderLow
	switch {
	case score >= reorderHighThreshold:
		level = ReorderHigh
	case score >= reorderMediumThreshold:
		level = ReorderMedium
	}

	return ReorderPriority{Score: score, Level: level, Reasons: reasons}
}
