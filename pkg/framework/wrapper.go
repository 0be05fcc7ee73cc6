// Package framework wraps Cloud Function handlers with per-invocation
// logging and error reporting.
package framework

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"

	"github.com/fitglue/healthsync/pkg/bootstrap"
	"github.com/fitglue/healthsync/pkg/infrastructure/sentry"
	"github.com/fitglue/healthsync/pkg/types"
)

const pubsubEventType = "google.cloud.pubsub.topic.v1.messagePublished"

// FrameworkContext carries the dependencies injected into a handler.
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc is the signature for a cloud function handler.
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// WrapCloudEvent unwraps Pub/Sub envelopes, tags the logger with an
// execution ID and reports handler failures before returning them.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		triggerType := "pubsub"
		if e.Type() == "google.cloud.functions.http" {
			triggerType = "http"
		}

		inner, attrs := unwrapPubSub(e)

		execID := uuid.NewString()
		logger := baseLogger(svc).With(
			"service", serviceName,
			"execution_id", execID,
			"trigger_type", triggerType,
			"event_type", inner.Type(),
		)
		if trid := attrs["test_run_id"]; trid != "" {
			logger = logger.With("test_run_id", trid)
		}

		defer sentry.RecoverAndCapture(logger)

		logger.Info("Function started")
		started := time.Now()

		fwCtx := &FrameworkContext{
			Service:     svc,
			Logger:      logger,
			ExecutionID: execID,
		}

		outputs, err := handler(ctx, inner, fwCtx)
		if err != nil {
			logger.Error("Function failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
			if svc != nil && svc.Reporter != nil {
				svc.Reporter.Report(err, map[string]interface{}{
					"service":      serviceName,
					"execution_id": execID,
				})
				sentry.Flush(2 * time.Second)
			}
			return err
		}

		logger.Info("Function completed successfully", "duration_ms", time.Since(started).Milliseconds(), "outputs", outputs)
		return nil
	}
}

// unwrapPubSub returns the event the handler should see. A Pub/Sub
// envelope whose data is itself a CloudEvent yields that inner event; any
// other envelope yields an event carrying the raw message data.
func unwrapPubSub(e event.Event) (event.Event, map[string]string) {
	if e.Type() != pubsubEventType {
		return e, nil
	}
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil || len(msg.Message.Data) == 0 {
		return e, nil
	}

	var probe struct {
		SpecVersion string `json:"specversion"`
	}
	if err := json.Unmarshal(msg.Message.Data, &probe); err == nil && probe.SpecVersion != "" {
		inner := event.New()
		if err := json.Unmarshal(msg.Message.Data, &inner); err == nil {
			return inner, msg.Message.Attributes
		}
	}

	plain := e.Clone()
	_ = plain.SetData(event.ApplicationJSON, msg.Message.Data)
	return plain, msg.Message.Attributes
}

func baseLogger(svc *bootstrap.Service) *slog.Logger {
	if svc != nil && svc.Logger != nil {
		return svc.Logger
	}
	return slog.Default()
}
