// Package http holds the seams between the gin router and the modules that
// expose admin endpoints.
package http

import (
	"clinic_automation/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module mounts one group of endpoints.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what the router hands to every module.
type RouterContext struct {
	// Admin is /api/v1/admin, already behind rate limiting, JWT auth and the
	// admin role check.
	Admin *gin.RouterGroup
	// Log is the server logger.
	Log *logger.Logger
}
