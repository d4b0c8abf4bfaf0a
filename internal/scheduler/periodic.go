package scheduler

import (
	"context"
	"errors"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/platform/config"
	"clinic_automation/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	minUniqueTTL    = time.Second
	fallbackTTL     = time.Minute
	minUniqueMargin = time.Minute
)

// Periodic enqueues one automation.run task per catalog entry on its cron
// schedule. Disabled jobs stay registered; the worker checks the flag when
// the task runs, so toggling a job needs no restart.
type Periodic struct {
	scheduler *asynq.Scheduler
	registry  *automation.Registry
	queue     string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, registry *automation.Registry, loc *time.Location, log *logger.Logger) (*Periodic, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	p := &Periodic{
		registry: registry,
		queue:    queueName(cfg),
		log:      log,
	}
	p.scheduler = asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location:        loc,
		PostEnqueueFunc: p.afterEnqueue,
	})

	if err := p.register(time.Now().In(loc)); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Periodic) register(now time.Time) error {
	for _, desc := range p.registry.List() {
		task, err := NewAutomationRunTask(AutomationRunPayload{JobID: desc.ID})
		if err != nil {
			return err
		}
		if _, err := p.scheduler.Register(desc.Schedule, task, tickOptions(desc, p.queue, now)...); err != nil {
			return err
		}
	}
	return nil
}

func tickOptions(desc automation.JobDescriptor, queue string, now time.Time) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.Unique(uniqueTTL(desc, now)),
		asynq.MaxRetry(0),
	}
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}
	if err := p.scheduler.Start(); err != nil {
		p.log.Error("automation scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}

func (p *Periodic) afterEnqueue(info *asynq.TaskInfo, err error) {
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		p.log.Debug("automation tick collapsed, previous run still queued")
	case err != nil:
		p.log.Error("automation tick enqueue failed", "error", err)
	case info != nil:
		p.log.Debug("automation tick enqueued", "task_id", info.ID)
	}
}

// uniqueTTL keeps a tick unique for most of one schedule interval. asynq
// keeps the lock of an archived task until it expires, so the lock must end
// well before the next tick or that tick is dropped as a duplicate.
func uniqueTTL(desc automation.JobDescriptor, now time.Time) time.Duration {
	next, err := automation.NextRun(desc, now)
	if err != nil {
		return fallbackTTL
	}
	after, err := automation.NextRun(desc, next)
	if err != nil {
		return fallbackTTL
	}
	return lockTTL(after.Sub(next))
}

func lockTTL(interval time.Duration) time.Duration {
	ttl := interval - max(interval/10, minUniqueMargin)
	if ttl < interval/2 {
		ttl = interval / 2
	}
	return max(ttl, minUniqueTTL)
}
