package scheduler

import (
	"context"
	"errors"
	"fmt"

	"clinic_automation/internal/automation"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/config"
	"clinic_automation/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Runner executes registered jobs.
type Runner interface {
	RunJob(ctx context.Context, id string) (automation.FanOutResult, error)
	RunTenant(ctx context.Context, id string, tenantID *uuid.UUID) (automation.JobRunResult, error)
}

// WelcomeDeliverer sends one patient welcome.
type WelcomeDeliverer interface {
	Deliver(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID) (bool, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	runner  Runner
	welcome WelcomeDeliverer
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner Runner, welcome WelcomeDeliverer, log *logger.Logger) (*Worker, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	w := &Worker{
		mux:     asynq.NewServeMux(),
		runner:  runner,
		welcome: welcome,
		log:     log,
	}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(w.handleError),
	})

	w.mux.HandleFunc(TaskAutomationRun, w.handleRun)
	w.mux.HandleFunc(TaskPatientWelcome, w.handleWelcome)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("automation worker stopped", "error", err)
	}
}

func (w *Worker) handleRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutomationRunPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	tenantID, err := parseTenant(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := w.log.WithJob(payload.JobID)
	if tenantID != nil {
		_, err = w.runner.RunTenant(ctx, payload.JobID, tenantID)
	} else {
		_, err = w.runner.RunJob(ctx, payload.JobID)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, automation.ErrJobDisabled):
		log.Debug("automation tick ignored, job disabled")
		return nil
	default:
		// The next tick is the retry.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
}

func (w *Worker) handleWelcome(ctx context.Context, task *asynq.Task) error {
	if w.welcome == nil {
		return fmt.Errorf("%w: welcome delivery not configured", asynq.SkipRetry)
	}

	payload, err := ParsePatientWelcomePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	tenantID, err := parseTenant(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	patientID, err := uuid.Parse(payload.PatientID)
	if err != nil {
		return fmt.Errorf("%w: invalid patient id: %v", asynq.SkipRetry, err)
	}

	delivered, err := w.welcome.Deliver(ctx, tenantID, patientID)
	if err != nil {
		if apperr.Is(err, apperr.KindDependencyUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	w.log.Debug("patient welcome processed", "patient", patientID, "tenant", automation.TenantLabel(tenantID), "delivered", delivered)
	return nil
}

func (w *Worker) handleError(_ context.Context, task *asynq.Task, err error) {
	w.log.Error("automation task failed", "task", task.Type(), "error", err)
}
