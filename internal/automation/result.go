package automation

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one candidate in a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// EntityOutcome records what happened to a single candidate.
type EntityOutcome struct {
	EntityID  string  `json:"entityId"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
	Error     string  `json:"error,omitempty"`
	Delivered bool    `json:"delivered"`
}

// JobRunResult is built fresh per invocation and not mutated after it is returned.
// Processed always equals Succeeded+Skipped+Failed.
type JobRunResult struct {
	JobID      string          `json:"jobId"`
	RunID      string          `json:"runId,omitempty"`
	TenantID   *uuid.UUID      `json:"tenantId,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Processed  int             `json:"processed"`
	Succeeded  int             `json:"succeeded"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Outcomes   []EntityOutcome `json:"outcomes"`
}

// NewJobRunResult starts an empty result.
func NewJobRunResult(jobID string, tenantID *uuid.UUID, startedAt time.Time) JobRunResult {
	return JobRunResult{
		JobID:     jobID,
		TenantID:  tenantID,
		StartedAt: startedAt,
		Outcomes:  []EntityOutcome{},
	}
}

// Record appends an outcome and updates the counters.
func (r *JobRunResult) Record(o EntityOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Processed++
	switch o.Outcome {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Delivered counts outcomes whose notification reached at least one channel.
func (r JobRunResult) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Delivered {
			n++
		}
	}
	return n
}

// TenantLabel renders the tenant for logs; the legacy scope is empty.
func TenantLabel(tenantID *uuid.UUID) string {
	if tenantID == nil {
		return ""
	}
	return tenantID.String()
}
