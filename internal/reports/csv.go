// Package reports renders the daily operations report and archives it.
package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"time"

	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

// ContentTypeCSV is stored with every archived report.
const ContentTypeCSV = "text/csv"

// ObjectKey is the archive key for one tenant and day. The key is stable so
// a re-run finds the report it already uploaded.
func ObjectKey(tenantID *uuid.UUID, day time.Time) string {
	scope := "untenanted"
	if tenantID != nil {
		scope = tenantID.String()
	}
	return path.Join("daily-operations", scope, day.Format("2006-01-02")+".csv")
}

// RenderDailyCSV renders the stats as a two-column metric/value table.
func RenderDailyCSV(stats clinic.DailyStats) ([]byte, error) {
	rows := [][]string{
		{"metric", "value"},
		{"day", stats.Day.Format("2006-01-02")},
		{"appointments_scheduled", strconv.Itoa(stats.AppointmentsScheduled)},
		{"appointments_completed", strconv.Itoa(stats.AppointmentsCompleted)},
		{"no_shows", strconv.Itoa(stats.NoShows)},
		{"cancellations", strconv.Itoa(stats.Cancellations)},
		{"visits_closed", strconv.Itoa(stats.VisitsClosed)},
		{"invoices_issued", strconv.Itoa(stats.InvoicesIssued)},
		{"invoiced_amount", formatCents(stats.InvoicedCents)},
		{"outstanding_amount", formatCents(stats.OutstandingCents)},
		{"low_stock_items", strconv.Itoa(stats.LowStockItems)},
		{"new_patients", strconv.Itoa(stats.NewPatients)},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write report csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
