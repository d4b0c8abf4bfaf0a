package reports

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"clinic_automation/internal/clinic"

	"github.com/google/uuid"
)

func TestRenderDailyCSV(t *testing.T) {
	stats := clinic.DailyStats{
		Day:                   time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		AppointmentsScheduled: 12,
		NoShows:               2,
		InvoicedCents:         123456,
		OutstandingCents:      -5,
	}

	out, err := RenderDailyCSV(stats)
	if err != nil {
		t.Fatalf("RenderDailyCSV: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}

	values := map[string]string{}
	for _, r := range records[1:] {
		values[r[0]] = r[1]
	}
	checks := map[string]string{
		"day":                    "2026-10-17",
		"appointments_scheduled": "12",
		"no_shows":               "2",
		"invoiced_amount":        "1234.56",
		"outstanding_amount":     "-0.05",
	}
	for k, want := range checks {
		if values[k] != want {
			t.Errorf("%s = %q, want %q", k, values[k], want)
		}
	}
}

func TestObjectKeyIsStablePerTenantDay(t *testing.T) {
	tenant := uuid.MustParse("7d1f0c3e-2b7a-4c55-9a8e-3f3c2a1b0d9e")
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	key := ObjectKey(&tenant, day)
	if key != "daily-operations/7d1f0c3e-2b7a-4c55-9a8e-3f3c2a1b0d9e/2026-10-17.csv" {
		t.Fatalf("unexpected key %q", key)
	}
	if !strings.Contains(ObjectKey(nil, day), "untenanted") {
		t.Fatal("legacy scope should have its own prefix")
	}
}
