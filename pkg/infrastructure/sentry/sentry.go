// Package sentry reports failed days and run aborts to Sentry.
package sentry

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	apperrors "github.com/fitglue/healthsync/pkg/errors"
)

type Config struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// Init initializes the global Sentry hub. An empty DSN disables reporting
// and is not an error.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
		BeforeSend:  scrub,
	})
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
		}
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment, "release", cfg.Release)
	}
	return nil
}

// scrub drops credentials from outgoing events. Authorization URLs carry a
// single-use state and are safe to keep.
func scrub(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil && event.Request.Headers != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
	}
	for k, v := range event.Extra {
		if s, ok := v.(string); ok && (k == "access_token" || k == "refresh_token") && s != "" {
			event.Extra[k] = "[redacted]"
		}
	}
	return event
}

// Reporter sends errors to a hub. It matches the pipeline's error reporter
// signature through its Report method value.
type Reporter struct {
	Hub    *sentry.Hub
	Logger *slog.Logger
}

// NewReporter uses the current global hub.
func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{Hub: sentry.CurrentHub(), Logger: logger}
}

// Report captures err with its error code and metadata as tags and the
// caller's fields as the "pipeline" context.
func (r *Reporter) Report(err error, fields map[string]interface{}) {
	if err == nil {
		return
	}
	hub := r.Hub
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range Tags(err) {
			scope.SetTag(k, v)
		}
		if len(fields) > 0 {
			scope.SetContext("pipeline", sentry.Context(fields))
		}
		hub.CaptureException(err)
	})

	if r.Logger != nil {
		r.Logger.Debug("Exception captured in Sentry", "error", err.Error())
	}
}

// Tags derives Sentry tags from a classified error.
func Tags(err error) map[string]string {
	tags := map[string]string{}
	var hsErr *apperrors.HealthSyncError
	if !stderrors.As(err, &hsErr) {
		return tags
	}
	tags["error_code"] = string(hsErr.Code)
	tags["retryable"] = fmt.Sprintf("%t", hsErr.Retryable)
	for k, v := range hsErr.Metadata {
		tags[k] = v
	}
	return tags
}

// Flush waits for queued events. Call it before the process or function
// invocation ends.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// RecoverAndCapture reports a panic and re-panics.
func RecoverAndCapture(logger *slog.Logger) {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", r)
		}
		NewReporter(logger).Report(err, nil)
		Flush(2 * time.Second)
		panic(r)
	}
}
