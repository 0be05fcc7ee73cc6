package fitbit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	httputil "github.com/fitglue/healthsync/pkg/infrastructure/http"
)

// EndpointFetcher is satisfied by *Fetcher.
type EndpointFetcher interface {
	Fetch(ctx context.Context, endpoint string, token string) (json.RawMessage, error)
}

// AccessTokenSource hands out a currently valid Fitbit access token.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// RawEndpointResult holds the raw JSON per endpoint for one target date.
// An endpoint that failed is absent from Payloads and present in Errors.
type RawEndpointResult struct {
	TargetDate time.Time
	HealthDate time.Time
	SleepDate  time.Time
	Payloads   map[EndpointKey]json.RawMessage
	Errors     map[EndpointKey]error
}

// Payload returns the raw body for key, if it was fetched.
func (r *RawEndpointResult) Payload(key EndpointKey) (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.Payloads[key]
	return p, ok
}

// Decode unmarshals the payload for key into v. It reports false when the
// endpoint is absent or the body does not fit v.
func (r *RawEndpointResult) Decode(key EndpointKey, v any) bool {
	p, ok := r.Payload(key)
	if !ok {
		return false
	}
	return json.Unmarshal(p, v) == nil
}

// Aggregator runs every daily target sequentially. It never fails as a
// whole; per-endpoint failures are logged and recorded.
type Aggregator struct {
	Fetcher EndpointFetcher
	Tokens  AccessTokenSource
	Logger  *slog.Logger
}

func NewAggregator(fetcher EndpointFetcher, tokens AccessTokenSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{Fetcher: fetcher, Tokens: tokens, Logger: logger}
}

// Aggregate fetches the six daily endpoints for target-2 and sleep for
// target-1. A fresh token is requested before each endpoint so a refresh
// mid-run is picked up.
func (a *Aggregator) Aggregate(ctx context.Context, target time.Time) *RawEndpointResult {
	target = healthdate.Day(target)
	result := &RawEndpointResult{
		TargetDate: target,
		HealthDate: healthdate.HealthDate(target),
		SleepDate:  healthdate.SleepDate(target),
		Payloads:   make(map[EndpointKey]json.RawMessage),
		Errors:     make(map[EndpointKey]error),
	}

	for _, t := range DailyTargets() {
		a.fetchOne(ctx, result, t, result.HealthDate)
	}
	a.fetchOne(ctx, result, SleepTarget, result.SleepDate)

	a.Logger.Info("Fitbit endpoints aggregated",
		"target_date", healthdate.Format(target),
		"fetched", len(result.Payloads),
		"failed", len(result.Errors))
	return result
}

func (a *Aggregator) fetchOne(ctx context.Context, result *RawEndpointResult, t FetchTarget, day time.Time) {
	path := t.Path(day)
	logger := a.Logger.With("endpoint", string(t.Key), "date", healthdate.Format(day))

	if err := ctx.Err(); err != nil {
		result.Errors[t.Key] = err
		return
	}

	token, err := a.Tokens.AccessToken(ctx)
	if err != nil {
		logger.Error("Failed to obtain Fitbit access token", "error", err)
		result.Errors[t.Key] = err
		return
	}

	payload, err := a.Fetcher.Fetch(ctx, path, token)
	if err != nil {
		logger.Error("Fitbit endpoint failed", "path", path, "error", err)
		result.Errors[t.Key] = err
		return
	}

	logger.Debug("Fitbit payload", "path", path, "body", httputil.Truncate(string(payload), 2000))
	result.Payloads[t.Key] = payload
}
