package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "clinic_automation/internal/http"
	"clinic_automation/platform/config"
	"clinic_automation/platform/httpkit"
	"clinic_automation/platform/logger"

	"github.com/gin-gonic/gin"
)

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error { return p.err }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestApp(health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config:  &config.Config{JWTAccessSecret: "secret", CORSOrigins: []string{"http://localhost:4200"}},
		Logger:  logger.Nop(),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	}
}

func TestHealthReflectsDatabase(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"up", nil, http.StatusOK},
		{"down", errors.New("connection refused"), http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(newTestApp(pinger{err: tc.err})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	rec := httptest.NewRecorder()
	New(newTestApp(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	engine := New(newTestApp(nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(httpkit.RequestIDHeader, "req-42")
	engine.ServeHTTP(rec, req)
	if got := rec.Header().Get(httpkit.RequestIDHeader); got != "req-42" {
		t.Fatalf("request id = %q, want req-42", got)
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Header().Get(httpkit.RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}
