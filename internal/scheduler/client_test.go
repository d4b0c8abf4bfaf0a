package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/jobs"
	"clinic_automation/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const testQueue = "automation"

type schedulerConfigStub struct{ url string }

func (c schedulerConfigStub) GetRedisURL() string       { return c.url }
func (c schedulerConfigStub) GetRedisTLSInsecure() bool { return false }
func (c schedulerConfigStub) GetAsynqQueueName() string { return testQueue }
func (c schedulerConfigStub) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(schedulerConfigStub{url: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestEnqueueWelcomeCollapsesPendingTask(t *testing.T) {
	_, c := newTestClient(t)
	tenant, patient := uuid.New(), uuid.New()

	if err := c.EnqueueWelcome(context.Background(), &tenant, patient); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := c.EnqueueWelcome(context.Background(), &tenant, patient); !errors.Is(err, jobs.ErrAlreadyQueued) {
		t.Fatalf("second enqueue = %v, want ErrAlreadyQueued", err)
	}
}

func TestEnqueueWelcomeRequeuesArchivedTask(t *testing.T) {
	_, c := newTestClient(t)
	tenant, patient := uuid.New(), uuid.New()
	taskID := welcomeTaskID(&tenant, patient)

	if err := c.EnqueueWelcome(context.Background(), &tenant, patient); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := c.inspector.ArchiveTask(testQueue, taskID); err != nil {
		t.Fatalf("ArchiveTask: %v", err)
	}

	if err := c.EnqueueWelcome(context.Background(), &tenant, patient); err != nil {
		t.Fatalf("enqueue after failure = %v, want the task queued again", err)
	}
	info, err := c.inspector.GetTaskInfo(testQueue, taskID)
	if err != nil {
		t.Fatalf("GetTaskInfo: %v", err)
	}
	if info.State != asynq.TaskStatePending {
		t.Fatalf("state = %s, want pending", info.State)
	}
}

func TestEnqueueRunRejectsDuplicateManualRun(t *testing.T) {
	_, c := newTestClient(t)

	if _, err := c.EnqueueRun(context.Background(), automation.JobLabResultNotifications, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err := c.EnqueueRun(context.Background(), automation.JobLabResultNotifications, nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate run = %v, want conflict", err)
	}
}

func TestFailedTickDoesNotBlockNextTick(t *testing.T) {
	mr, c := newTestClient(t)
	desc := automation.JobDescriptor{ID: automation.JobDailyOperationsReport, Schedule: "0 9 * * *"}
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	task, err := NewAutomationRunTask(AutomationRunPayload{JobID: desc.ID})
	if err != nil {
		t.Fatalf("NewAutomationRunTask: %v", err)
	}
	info, err := c.client.Enqueue(task, tickOptions(desc, testQueue, now)...)
	if err != nil {
		t.Fatalf("enqueue tick: %v", err)
	}
	if err := c.inspector.ArchiveTask(testQueue, info.ID); err != nil {
		t.Fatalf("ArchiveTask: %v", err)
	}

	mr.FastForward(24*time.Hour - time.Second)

	if _, err := c.client.Enqueue(task, tickOptions(desc, testQueue, now.Add(24*time.Hour))...); err != nil {
		t.Fatalf("next tick enqueue = %v, want accepted", err)
	}
}
