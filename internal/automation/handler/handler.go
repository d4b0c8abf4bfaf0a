// Package handler exposes the automation catalog to administrators.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"clinic_automation/internal/automation"
	"clinic_automation/platform/apperr"
	"clinic_automation/platform/httpkit"
	"clinic_automation/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidTenant    = "invalid tenant id"
)

// Engine runs jobs inline.
type Engine interface {
	RunJob(ctx context.Context, id string) (automation.FanOutResult, error)
	RunTenant(ctx context.Context, id string, tenantID *uuid.UUID) (automation.JobRunResult, error)
}

// RunQueue hands a run to the worker pool.
type RunQueue interface {
	EnqueueRun(ctx context.Context, jobID string, tenantID *uuid.UUID) (string, error)
}

// Settings reads and writes per-tenant feature flags.
type Settings interface {
	IsAutomationEnabled(ctx context.Context, tenantID *uuid.UUID, key string) (bool, error)
	SetAutomationEnabled(ctx context.Context, tenantID *uuid.UUID, key string, enabled bool) error
}

// Handler handles the admin automation endpoints.
type Handler struct {
	registry *automation.Registry
	engine   Engine
	queue    RunQueue
	settings Settings
	val      *validator.Validator
	clock    automation.Clock
}

// New creates the handler. queue may be nil, in which case async runs are refused.
func New(registry *automation.Registry, engine Engine, queue RunQueue, settings Settings, val *validator.Validator, clock automation.Clock) *Handler {
	if clock == nil {
		clock = automation.SystemClock{}
	}
	return &Handler{registry: registry, engine: engine, queue: queue, settings: settings, val: val, clock: clock}
}

// RegisterRoutes registers the automation routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/runs", h.TriggerRun)
	rg.GET("/:id/settings", h.GetTenantSetting)
	rg.PUT("/:id/settings", h.PutTenantSetting)
}

// List handles GET /api/v1/admin/automations
func (h *Handler) List(c *gin.Context) {
	descs := h.registry.List()
	items := make([]AutomationResponse, 0, len(descs))
	for _, d := range descs {
		items = append(items, h.describe(d))
	}
	httpkit.OK(c, ListAutomationsResponse{Items: items})
}

// Get handles GET /api/v1/admin/automations/:id
func (h *Handler) Get(c *gin.Context) {
	desc, err := h.registry.Get(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, h.describe(desc))
}

// Update handles PATCH /api/v1/admin/automations/:id
func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if identity.TenantID() != nil {
		httpkit.HandleError(c, apperr.Forbidden("only platform operators can toggle automations"))
		return
	}

	var req UpdateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := c.Param("id")
	if httpkit.HandleError(c, h.registry.SetEnabled(id, *req.Enabled)) {
		return
	}
	desc, err := h.registry.Get(id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, h.describe(desc))
}

// TriggerRun handles POST /api/v1/admin/automations/:id/runs
func (h *Handler) TriggerRun(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req TriggerRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if raw := c.Query("async"); raw != "" {
		async, err := strconv.ParseBool(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "async must be a boolean")
			return
		}
		req.Async = async
	}

	desc, err := h.registry.Get(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	tenantID, ok := scopeFor(c, identity, req.TenantID)
	if !ok {
		return
	}
	if desc.Scope == automation.ScopeGlobal && identity.TenantID() != nil {
		httpkit.HandleError(c, apperr.Forbidden("platform-wide automations are run by platform operators"))
		return
	}

	ctx := c.Request.Context()
	if req.Async {
		if h.queue == nil {
			httpkit.HandleError(c, apperr.DependencyUnavailable("task queue not configured", nil))
			return
		}
		taskID, err := h.queue.EnqueueRun(ctx, desc.ID, tenantID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.Accepted(c, TriggerRunResponse{TaskID: taskID})
		return
	}

	if tenantID != nil {
		result, err := h.engine.RunTenant(ctx, desc.ID, tenantID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, TriggerRunResponse{Result: &result})
		return
	}

	fanOut, err := h.engine.RunJob(ctx, desc.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, TriggerRunResponse{FanOut: &fanOut})
}

// GetTenantSetting handles GET /api/v1/admin/automations/:id/settings
func (h *Handler) GetTenantSetting(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var requested *uuid.UUID
	if raw := c.Query("tenantId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidTenant, nil)
			return
		}
		requested = &parsed
	}

	desc, err := h.registry.Get(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	tenantID, ok := scopeFor(c, identity, requested)
	if !ok {
		return
	}

	enabled, err := h.settings.IsAutomationEnabled(c.Request.Context(), tenantID, desc.SettingsKey)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, TenantSettingResponse{Automation: desc.ID, TenantID: tenantID, Enabled: enabled})
}

// PutTenantSetting handles PUT /api/v1/admin/automations/:id/settings
func (h *Handler) PutTenantSetting(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req TenantSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	desc, err := h.registry.Get(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	tenantID, ok := scopeFor(c, identity, req.TenantID)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.settings.SetAutomationEnabled(c.Request.Context(), tenantID, desc.SettingsKey, *req.Enabled)) {
		return
	}
	httpkit.OK(c, TenantSettingResponse{Automation: desc.ID, TenantID: tenantID, Enabled: *req.Enabled})
}

func (h *Handler) describe(desc automation.JobDescriptor) AutomationResponse {
	resp := AutomationResponse{JobDescriptor: desc}
	if desc.Enabled {
		if next, err := automation.NextRun(desc, h.clock.Now()); err == nil {
			resp.NextRun = &next
		}
	}
	return resp
}

// scopeFor resolves the tenant a request acts on. Clinic administrators are
// pinned to their own clinic; platform operators may name any tenant or none.
func scopeFor(c *gin.Context, identity httpkit.Identity, requested *uuid.UUID) (*uuid.UUID, bool) {
	own := identity.TenantID()
	if own == nil {
		return requested, true
	}
	if requested != nil && *requested != *own {
		httpkit.HandleError(c, apperr.Forbidden("tenant is outside your organization"))
		return nil, false
	}
	return own, true
}
