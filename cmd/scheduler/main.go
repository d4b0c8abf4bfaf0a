package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"clinic_automation/internal/automation/handler"
	"clinic_automation/internal/bootstrap"
	apphttp "clinic_automation/internal/http"
	"clinic_automation/internal/http/router"
	"clinic_automation/internal/scheduler"
	"clinic_automation/platform/config"
	"clinic_automation/platform/logger"
	"clinic_automation/platform/validator"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting automation scheduler", "env", cfg.Env, "addr", cfg.HTTPAddr, "timezone", cfg.AutomationTimezone)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{Migrate: true})
	if err != nil {
		log.Error("failed to initialize automation runtime", "error", err)
		panic("failed to initialize automation runtime: " + err.Error())
	}
	defer rt.Close()
	log.Info("automation runtime ready", "jobs", len(rt.Registry.List()))

	periodic, err := scheduler.NewPeriodic(cfg, rt.Registry, cfg.GetAutomationLocation(), log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, rt.Engine, rt.Welcome, log)
	if err != nil {
		log.Error("failed to initialize automation worker", "error", err)
		panic("failed to initialize automation worker: " + err.Error())
	}

	if !strings.EqualFold(cfg.Env, "development") {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.New(rt.Registry, rt.Engine, rt.Queue, rt.Settings, validator.New(), nil)
	engine := router.New(&apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  rt.Records,
		Modules: []apphttp.Module{handler.NewModule(h)},
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		periodic.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin api stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down automation scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("admin api shutdown failed", "error", err)
	}
	wg.Wait()
}
