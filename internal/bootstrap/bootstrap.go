// Package bootstrap is the composition root shared by the scheduler host and
// the operator CLI. It connects the infrastructure and wires the jobs.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"
	"clinic_automation/internal/automation/jobs"
	"clinic_automation/internal/automation/scoring"
	"clinic_automation/internal/clinic/repository"
	"clinic_automation/internal/email"
	"clinic_automation/internal/notification/inapp"
	"clinic_automation/internal/reports"
	"clinic_automation/internal/scheduler"
	"clinic_automation/internal/settings"
	"clinic_automation/internal/sms"
	"clinic_automation/platform/config"
	"clinic_automation/platform/db"
	"clinic_automation/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const rosterTTL = 5 * time.Minute

// Runtime is a fully wired automation engine.
type Runtime struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Records  *repository.Repository
	Registry *automation.Registry
	Settings *settings.Service
	Engine   *automation.Engine
	Welcome  *jobs.PatientWelcome
	Queue    *scheduler.Client
}

// Options controls startup side effects.
type Options struct {
	// Migrate applies pending schema migrations before wiring.
	Migrate bool
}

// New connects to Postgres and Redis and wires every job. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		rt.Pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if opts.Migrate {
		if err := db.RunMigrations(ctx, rt.Pool); err != nil {
			rt.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations complete")
	}

	if err := rt.wire(ctx, cfg, log); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) wire(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	registry, err := Registry(cfg)
	if err != nil {
		return err
	}
	rt.Registry = registry

	rt.Redis, err = newRedis(cfg)
	if err != nil {
		return err
	}
	rt.Queue, err = scheduler.NewClient(cfg)
	if err != nil {
		return err
	}

	rt.Records = repository.New(rt.Pool)
	rt.Settings = settings.NewService(settings.NewRepository(rt.Pool), rt.Redis, cfg.GetSettingsCacheTTL(), log)

	archive, err := newArchive(ctx, cfg, log)
	if err != nil {
		return err
	}

	inAppRepo := inapp.NewRepository(rt.Pool)
	deliveries := inapp.NewDeliveryRepository(rt.Pool)
	dispatcher := dispatch.New(dispatchOptions(cfg, log, inAppRepo, deliveries, dispatch.NewRosterCache(rt.Records, nil, rosterTTL)))

	loc := cfg.GetAutomationLocation()
	clock := automation.SystemClock{Location: loc}
	set := jobs.Set{
		Deps: jobs.Deps{
			Settings:     rt.Settings,
			Notifier:     dispatcher,
			Clock:        clock,
			Location:     loc,
			Log:          log,
			AppBaseURL:   cfg.GetAppBaseURL(),
			SettingsKeys: settingsKeys(registry),
		},
		Store:         rt.Records,
		Archive:       archive,
		Queue:         rt.Queue,
		Weights:       scoring.DefaultWeights(),
		RetentionDays: cfg.GetNotificationRetentionDays(),
		Retained:      []jobs.Purger{inAppRepo, deliveries},
	}
	built, welcome := set.Build()
	rt.Welcome = welcome

	rt.Engine, err = automation.NewEngine(registry, rt.Records, clock, log, automation.EngineOptions{
		TenantConcurrency: cfg.GetTenantConcurrency(),
		IncludeUntenanted: cfg.GetIncludeUntenanted(),
	}, built...)
	return err
}

// Close releases every connection.
func (rt *Runtime) Close() {
	if rt.Queue != nil {
		_ = rt.Queue.Close()
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}

// Registry builds the catalog with the optional YAML overrides applied.
func Registry(cfg config.AutomationConfig) (*automation.Registry, error) {
	catalog := automation.DefaultCatalog()
	if path := cfg.GetCatalogFile(); path != "" {
		overrides, err := automation.LoadOverrides(path)
		if err != nil {
			return nil, err
		}
		if catalog, err = automation.ApplyOverrides(catalog, overrides); err != nil {
			return nil, err
		}
	}
	return automation.NewRegistry(catalog...)
}

func settingsKeys(registry *automation.Registry) map[string]string {
	keys := make(map[string]string)
	for _, desc := range registry.List() {
		keys[desc.ID] = desc.SettingsKey
	}
	return keys
}

func newRedis(cfg config.SchedulerConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// newArchive returns a nil interface when MinIO is not configured, so the
// report job reports the archive as missing instead of calling a nil client.
func newArchive(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) (jobs.ReportArchive, error) {
	archive, err := reports.NewMinIOArchive(cfg)
	if err != nil {
		return nil, fmt.Errorf("init report archive: %w", err)
	}
	if archive == nil {
		log.Warn("report archive disabled, daily reports will be skipped")
		return nil, nil
	}
	if err := withRetry(ctx, log, "ensure reports bucket", 5, 2*time.Second, func() error {
		return archive.EnsureBucketExists(ctx)
	}); err != nil {
		return nil, err
	}
	return archive, nil
}

// dispatchOptions leaves a channel nil when its sender is disabled.
func dispatchOptions(cfg *config.Config, log *logger.Logger, inAppRepo inapp.Creator, deliveries dispatch.DeliveryLog, roster *dispatch.RosterCache) dispatch.Options {
	opts := dispatch.Options{
		InApp:      inapp.NewService(inAppRepo, log),
		Roster:     roster,
		Render:     emailRenderer(cfg.GetEmailFromName()),
		Deliveries: deliveries,
		Timeout:    cfg.GetChannelTimeout(),
		Log:        log,
		SubjectTag: cfg.GetEmailFromName(),
	}
	if sender := email.NewSMTPSender(cfg); sender != nil {
		opts.Email = sender
	}
	if client := sms.NewClient(cfg, log); client != nil {
		opts.SMS = client
	}
	return opts
}

// emailRenderer wraps the intent message, which carries its own greeting.
func emailRenderer(clinicName string) dispatch.EmailRenderer {
	return func(intent dispatch.Intent, _ dispatch.Recipient) (string, error) {
		data := email.NotificationData{
			ClinicName: clinicName,
			Title:      intent.Title,
			Body:       intent.Message,
			Urgent:     intent.Priority == dispatch.PriorityUrgent || intent.Priority == dispatch.PriorityHigh,
		}
		if intent.Action != nil {
			data.CTALabel = intent.Action.Label
			data.CTAURL = intent.Action.URL
		}
		return email.RenderNotification(data)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
