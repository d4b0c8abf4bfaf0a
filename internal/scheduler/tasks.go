package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskAutomationRun = "automation.run"

const TaskPatientWelcome = "automation.welcome"

// AutomationRunPayload triggers one job. An empty TenantID fans out to every
// tenant (or runs once for global jobs).
type AutomationRunPayload struct {
	JobID    string `json:"jobId"`
	TenantID string `json:"tenantId,omitempty"`
}

type PatientWelcomePayload struct {
	TenantID  string `json:"tenantId,omitempty"`
	PatientID string `json:"patientId"`
}

func NewAutomationRunTask(payload AutomationRunPayload) (*asynq.Task, error) {
	if payload.JobID == "" {
		return nil, fmt.Errorf("automation run task needs a job id")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutomationRun, data), nil
}

func ParseAutomationRunPayload(task *asynq.Task) (AutomationRunPayload, error) {
	var payload AutomationRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutomationRunPayload{}, err
	}
	if payload.JobID == "" {
		return AutomationRunPayload{}, fmt.Errorf("automation run task without job id")
	}
	return payload, nil
}

func NewPatientWelcomeTask(payload PatientWelcomePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPatientWelcome, data), nil
}

func ParsePatientWelcomePayload(task *asynq.Task) (PatientWelcomePayload, error) {
	var payload PatientWelcomePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PatientWelcomePayload{}, err
	}
	return payload, nil
}

// tenantString is the payload form of a tenant scope.
func tenantString(tenantID *uuid.UUID) string {
	if tenantID == nil {
		return ""
	}
	return tenantID.String()
}

// parseTenant reverses tenantString.
func parseTenant(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id %q: %w", raw, err)
	}
	return &id, nil
}

// welcomeTaskID keys the welcome task so a patient has at most one pending.
func welcomeTaskID(tenantID *uuid.UUID, patientID uuid.UUID) string {
	scope := tenantString(tenantID)
	if scope == "" {
		scope = "untenanted"
	}
	return "welcome:" + scope + ":" + patientID.String()
}
