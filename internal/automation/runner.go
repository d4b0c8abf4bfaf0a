package automation

import (
	"context"
	"fmt"

	"clinic_automation/platform/apperr"

	"github.com/google/uuid"
)

// Decision is what a step reports for a candidate it handled without error.
type Decision struct {
	Skipped   bool
	Reason    string
	Delivered bool
}

// Done marks a candidate as succeeded.
func Done(delivered bool) Decision {
	return Decision{Delivered: delivered}
}

// Skip marks a candidate as skipped, usually because the eligibility check
// found the side effect already applied.
func Skip(reason string) Decision {
	return Decision{Skipped: true, Reason: reason}
}

// Step runs the per-candidate pipeline: re-derive facts, check eligibility,
// decide, apply one side effect, notify.
type Step[T any] func(ctx context.Context, item T) (Decision, error)

// RunBatch processes items sequentially and records one outcome per item.
//
// Not-found and validation errors skip the candidate, dependency failures abort
// the batch and are returned, and any other error or panic fails only that
// candidate. Cancellation stops the batch before the next candidate.
func RunBatch[T any](ctx context.Context, res *JobRunResult, items []T, key func(T) string, step Step[T]) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return apperr.DependencyUnavailable("run cancelled", err)
		}

		id := key(item)
		decision, err := runStep(ctx, item, step)
		if err != nil {
			switch apperr.GetKind(err) {
			case apperr.KindDependencyUnavailable:
				res.Record(EntityOutcome{EntityID: id, Outcome: OutcomeFailed, Error: err.Error()})
				return err
			case apperr.KindNotFound, apperr.KindValidation:
				res.Record(EntityOutcome{EntityID: id, Outcome: OutcomeSkipped, Reason: apperr.GetKind(err).String(), Error: err.Error()})
			default:
				res.Record(EntityOutcome{EntityID: id, Outcome: OutcomeFailed, Error: err.Error()})
			}
			continue
		}

		if decision.Skipped {
			res.Record(EntityOutcome{EntityID: id, Outcome: OutcomeSkipped, Reason: decision.Reason})
			continue
		}
		res.Record(EntityOutcome{EntityID: id, Outcome: OutcomeSucceeded, Reason: decision.Reason, Delivered: decision.Delivered})
	}
	return nil
}

func runStep[T any](ctx context.Context, item T, step Step[T]) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step(ctx, item)
}

// Gate is the feature-flag check consulted before a tenant does any work.
type Gate interface {
	IsAutomationEnabled(ctx context.Context, tenantID *uuid.UUID, key string) (bool, error)
}

// Pipeline describes one tenant run of a job.
type Pipeline[T any] struct {
	JobID       string
	SettingsKey string
	TenantID    *uuid.UUID
	Gate        Gate
	Clock       Clock
	Fetch       func(ctx context.Context) ([]T, error)
	Key         func(T) string
	Step        Step[T]
}

// Execute runs the pipeline: settings gate, candidate query, batch.
// A disabled automation returns an empty result without calling Fetch.
func Execute[T any](ctx context.Context, p Pipeline[T]) (JobRunResult, error) {
	res := NewJobRunResult(p.JobID, p.TenantID, p.Clock.Now())
	finish := func() JobRunResult {
		res.FinishedAt = p.Clock.Now()
		return res
	}

	key := p.SettingsKey
	if key == "" {
		key = p.JobID
	}

	if p.Gate != nil {
		enabled, err := p.Gate.IsAutomationEnabled(ctx, p.TenantID, key)
		if err != nil {
			return finish(), asDependencyError("check automation settings", err)
		}
		if !enabled {
			return finish(), nil
		}
	}

	items, err := p.Fetch(ctx)
	if err != nil {
		return finish(), asDependencyError("query candidates", err)
	}

	err = RunBatch(ctx, &res, items, p.Key, p.Step)
	return finish(), err
}

// asDependencyError keeps typed errors and treats anything untyped as an
// unreachable collaborator.
func asDependencyError(message string, err error) error {
	if apperr.GetKind(err) != apperr.KindUnknown {
		return err
	}
	return apperr.DependencyUnavailable(message, err)
}
