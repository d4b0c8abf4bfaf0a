package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ALLOW_ALL", "false")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GetTenantConcurrency() != 4 {
		t.Errorf("tenant concurrency = %d, want 4", cfg.GetTenantConcurrency())
	}
	if cfg.GetChannelTimeout() != 10*time.Second {
		t.Errorf("channel timeout = %s, want 10s", cfg.GetChannelTimeout())
	}
	if cfg.GetAutomationLocation() != time.UTC {
		t.Errorf("location = %v, want UTC", cfg.GetAutomationLocation())
	}
	if cfg.GetAsynqQueueName() != "automation" {
		t.Errorf("queue = %q, want automation", cfg.GetAsynqQueueName())
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when REDIS_URL is empty")
	}
}

func TestLoadRejectsInvalidTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTOMATION_TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestLoadClampsTenantConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTOMATION_TENANT_CONCURRENCY", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TenantConcurrency != 1 {
		t.Fatalf("tenant concurrency = %d, want 1", cfg.TenantConcurrency)
	}
}
