package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"clinic_automation/internal/automation/jobs"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	// manualRunUniqueTTL collapses repeated manual triggers of the same run.
	manualRunUniqueTTL = time.Minute
	welcomeMaxRetry    = 5
)

// Client enqueues automation tasks.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.inspector != nil {
		_ = c.inspector.Close()
	}
	return c.client.Close()
}

// EnqueueRun queues a manual run and returns the task id.
func (c *Client) EnqueueRun(ctx context.Context, jobID string, tenantID *uuid.UUID) (string, error) {
	if c == nil || c.client == nil {
		return "", apperr.DependencyUnavailable("task queue not configured", nil)
	}

	task, err := NewAutomationRunTask(AutomationRunPayload{JobID: jobID, TenantID: tenantString(tenantID)})
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(manualRunUniqueTTL), asynq.MaxRetry(0))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", apperr.Conflict(fmt.Sprintf("a run of %q is already queued", jobID))
	}
	if err != nil {
		return "", apperr.DependencyUnavailable("enqueue automation run", err)
	}
	return info.ID, nil
}

// EnqueueWelcome queues the one-shot welcome task for a patient.
func (c *Client) EnqueueWelcome(ctx context.Context, tenantID *uuid.UUID, patientID uuid.UUID) error {
	if c == nil || c.client == nil {
		return apperr.DependencyUnavailable("task queue not configured", nil)
	}

	task, err := NewPatientWelcomeTask(PatientWelcomePayload{TenantID: tenantString(tenantID), PatientID: patientID.String()})
	if err != nil {
		return err
	}

	taskID := welcomeTaskID(tenantID, patientID)
	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(welcomeMaxRetry),
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		released, relErr := c.releaseFinishedTask(taskID)
		if relErr != nil {
			return apperr.DependencyUnavailable("inspect welcome task", relErr)
		}
		if !released {
			return jobs.ErrAlreadyQueued
		}
		_, err = c.client.EnqueueContext(ctx, task, opts...)
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return jobs.ErrAlreadyQueued
		}
	}
	if err != nil {
		return apperr.DependencyUnavailable("enqueue welcome task", err)
	}
	return nil
}

// releaseFinishedTask deletes a task that holds its id but will never run
// again (archived after failing, or kept as completed). It reports whether
// the id is free.
func (c *Client) releaseFinishedTask(taskID string) (bool, error) {
	if c.inspector == nil {
		return false, nil
	}
	info, err := c.inspector.GetTaskInfo(c.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return false, nil
	}
	if err := c.inspector.DeleteTask(c.queue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, err
	}
	return true, nil
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func clientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	return redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
