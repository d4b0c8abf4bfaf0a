package handler

import (
	"time"

	"clinic_automation/internal/automation"

	"github.com/google/uuid"
)

// AutomationResponse is a catalog entry with its next activation.
type AutomationResponse struct {
	automation.JobDescriptor
	NextRun *time.Time `json:"nextRun,omitempty"`
}

type ListAutomationsResponse struct {
	Items []AutomationResponse `json:"items"`
}

// UpdateAutomationRequest toggles a job for the whole platform.
type UpdateAutomationRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// TriggerRunRequest starts a manual run. Without a tenant the job fans out.
type TriggerRunRequest struct {
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	Async    bool       `json:"async"`
}

type TriggerRunResponse struct {
	TaskID string                   `json:"taskId,omitempty"`
	FanOut *automation.FanOutResult `json:"fanOut,omitempty"`
	Result *automation.JobRunResult `json:"result,omitempty"`
}

// TenantSettingRequest sets the feature flag for one tenant, or the platform
// default when TenantID is omitted.
type TenantSettingRequest struct {
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	Enabled  *bool      `json:"enabled" validate:"required"`
}

type TenantSettingResponse struct {
	Automation string     `json:"automation"`
	TenantID   *uuid.UUID `json:"tenantId,omitempty"`
	Enabled    bool       `json:"enabled"`
}
