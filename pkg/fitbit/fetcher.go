// Package fitbit reads daily metrics from the Fitbit Web API.
//
// Fetcher performs one authenticated GET with fixed-delay retries.
// Aggregator runs every daily endpoint for a target date and keeps
// whatever succeeded.
package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/fitglue/healthsync/pkg/errors"
	httputil "github.com/fitglue/healthsync/pkg/infrastructure/http"
)

const DefaultBaseURL = "https://api.fitbit.com"

// Backoff holds the fixed delays used between attempts. There is no
// exponential growth and no jitter.
type Backoff struct {
	Pacing      time.Duration // before every attempt, including the first
	RateLimited time.Duration // after a 429
	Retry       time.Duration // after any other failure
	MaxRetries  int
}

// DefaultBackoff returns 1s pacing, 5s after a 429, 3s otherwise and three
// retries, for four attempts in total.
func DefaultBackoff() Backoff {
	return Backoff{
		Pacing:      1 * time.Second,
		RateLimited: 5 * time.Second,
		Retry:       3 * time.Second,
		MaxRetries:  3,
	}
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Fetcher struct {
	BaseURL string
	Client  *http.Client
	Backoff Backoff
	Sleep   SleepFunc
	Logger  *slog.Logger
}

func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		BaseURL: DefaultBaseURL,
		Client:  client,
		Backoff: DefaultBackoff(),
		Sleep:   SleepContext,
		Logger:  logger,
	}
}

// Fetch GETs {BaseURL}/1/user/-{endpoint} and returns the decoded-valid JSON
// body of the first 200 response. Non-200 statuses and transport failures are
// retried up to Backoff.MaxRetries times. A 200 with a body that is not JSON
// fails at once.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, token string) (json.RawMessage, error) {
	url := strings.TrimRight(f.BaseURL, "/") + "/1/user/-" + endpoint
	maxAttempts := f.Backoff.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastStatus int
		lastBody   string
		lastErr    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.sleep(ctx, f.Backoff.Pacing); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}

		f.Logger.Debug("Fitbit request", "endpoint", endpoint, "attempt", attempt)
		resp, body, err := f.do(ctx, url, token)

		var delay time.Duration
		switch {
		case err != nil:
			lastStatus, lastBody = 0, ""
			lastErr = apperrors.ErrTransport.WithCause(err)
			delay = f.Backoff.Retry
			f.Logger.Warn("Fitbit request failed", "endpoint", endpoint, "attempt", attempt, "error", err)

		case resp.StatusCode == http.StatusOK:
			if !json.Valid(body) {
				return nil, &FetchError{
					Endpoint:   endpoint,
					LastStatus: resp.StatusCode,
					Attempts:   attempt,
					Body:       httputil.Truncate(string(body), httputil.MaxErrorBodySize),
					Err:        errors.New("response body is not valid JSON"),
				}
			}
			return json.RawMessage(body), nil

		default:
			httpErr := httputil.NewHTTPError(resp, body)
			lastStatus, lastBody, lastErr = resp.StatusCode, httpErr.Body, httpErr
			delay = f.Backoff.Retry
			if resp.StatusCode == http.StatusTooManyRequests {
				delay = f.Backoff.RateLimited
			}
			f.Logger.Warn("Fitbit returned non-200", "endpoint", endpoint, "attempt", attempt, "status", resp.StatusCode, "body", httpErr.Body)
		}

		if attempt == maxAttempts {
			break
		}
		f.Logger.Info("Retrying Fitbit request", "endpoint", endpoint, "next_attempt", attempt+1, "delay", delay.String())
		if err := f.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}
	}

	return nil, &FetchError{
		Endpoint:   endpoint,
		LastStatus: lastStatus,
		Attempts:   maxAttempts,
		Body:       lastBody,
		Err:        lastErr,
	}
}

func (f *Fetcher) do(ctx context.Context, url, token string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept-Language", "en_US")
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp, body, nil
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep == nil {
		return SleepContext(ctx, d)
	}
	return f.Sleep(ctx, d)
}
