// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// RunIDKey is the context key for an automation run ID
	RunIDKey contextKey = "run_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger that writes to w. Tests pass io.Discard.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter("production", io.Discard)
}

// ContextWithRunID tags ctx with the id of one tenant run of a job.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// ContextWithRequestID tags ctx with the id of an HTTP request.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RunIDFromContext returns the run id set by ContextWithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	runID, _ := ctx.Value(RunIDKey).(string)
	return runID
}

// WithContext returns a logger with context values extracted.
// Supports request_id and run_id.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("run_id", runID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithJob returns a logger scoped to an automation job.
func (l *Logger) WithJob(jobID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("job", jobID)),
	}
}

// WithTenant returns a logger scoped to a tenant. An empty label means the
// legacy untenanted scope.
func (l *Logger) WithTenant(tenant string) *Logger {
	if tenant == "" {
		tenant = "untenanted"
	}
	return &Logger{
		Logger: l.With(slog.String("tenant", tenant)),
	}
}

// JobRun logs the aggregated counts of a finished job run.
func (l *Logger) JobRun(jobID, tenant string, processed, succeeded, skipped, failed int, elapsed time.Duration) {
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}
	l.Log(context.Background(), level, "automation_run",
		slog.String("job", jobID),
		slog.String("tenant", tenant),
		slog.Int("processed", processed),
		slog.Int("succeeded", succeeded),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Float64("elapsed_ms", float64(elapsed.Milliseconds())),
	)
}

// ChannelAttempt logs a single notification channel attempt.
func (l *Logger) ChannelAttempt(channel, recipient string, sent bool, err error) {
	if sent {
		l.Debug("notification_channel",
			slog.String("channel", channel),
			slog.String("recipient", recipient),
			slog.Bool("sent", true),
		)
		return
	}
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	l.Warn("notification_channel",
		slog.String("channel", channel),
		slog.String("recipient", recipient),
		slog.Bool("sent", false),
		slog.String("reason", reason),
	)
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
