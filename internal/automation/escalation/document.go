package escalation

import "strings"

// DocumentWarning is the expiry warning level for a patient document.
type DocumentWarning string

const (
	DocumentNone     DocumentWarning = "none"
	DocumentReminder DocumentWarning = "reminder"
	DocumentWarn     DocumentWarning = "warning"
	DocumentUrgent   DocumentWarning = "urgent"
)

// DocumentHorizonDays is how far ahead documents are considered at all.
const DocumentHorizonDays = 90

type documentWindows struct {
	urgent, warning int
}

var (
	criticalWindows    = documentWindows{urgent: 30, warning: 60}
	nonCriticalWindows = documentWindows{urgent: 14, warning: 30}
)

// IsCriticalCategory reports whether a category uses the wider windows.
func IsCriticalCategory(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "insurance", "id":
		return true
	default:
		return false
	}
}

// DocumentWarningFor computes the warning for a document expiring in
// daysUntil days. Expired documents and those beyond the horizon return false.
func DocumentWarningFor(category string, daysUntil int) (DocumentWarning, bool) {
	if daysUntil < 0 || daysUntil > DocumentHorizonDays {
		return DocumentNone, false
	}

	w := nonCriticalWindows
	if IsCriticalCategory(category) {
		w = criticalWindows
	}

	switch {
	case daysUntil <= w.urgent:
		return DocumentUrgent, true
	case daysUntil <= w.warning:
		return DocumentWarn, true
	default:
		return DocumentReminder, true
	}
}

// Severity orders warning levels.
func (w DocumentWarning) Severity() int {
	switch w {
	case DocumentReminder:
		return 1
	case DocumentWarn:
		return 2
	case DocumentUrgent:
		return 3
	default:
		return 0
	}
}

// ParseDocumentWarning normalises a stored level.
func ParseDocumentWarning(raw string) DocumentWarning {
	switch DocumentWarning(raw) {
	case DocumentReminder, DocumentWarn, DocumentUrgent:
		return DocumentWarning(raw)
	default:
		return DocumentNone
	}
}
