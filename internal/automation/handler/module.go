package handler

import (
	apphttp "clinic_automation/internal/http"
)

// Module mounts the automation admin API.
type Module struct {
	handler *Handler
}

func NewModule(h *Handler) *Module {
	return &Module{handler: h}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "automations"
}

// RegisterRoutes registers the routes under /api/v1/admin/automations
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/automations"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
