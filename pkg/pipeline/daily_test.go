package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/fitbit"
	"github.com/fitglue/healthsync/pkg/testing/mocks"
)

type stubAggregator struct {
	payloads map[fitbit.EndpointKey]string
	errs     map[fitbit.EndpointKey]error
	targets  []string
}

func (s *stubAggregator) Aggregate(ctx context.Context, target time.Time) *fitbit.RawEndpointResult {
	s.targets = append(s.targets, healthdate.Format(target))
	raw := &fitbit.RawEndpointResult{
		TargetDate: target,
		HealthDate: healthdate.HealthDate(target),
		SleepDate:  healthdate.SleepDate(target),
		Payloads:   make(map[fitbit.EndpointKey]json.RawMessage),
		Errors:     make(map[fitbit.EndpointKey]error),
	}
	for k, v := range s.payloads {
		raw.Payloads[k] = json.RawMessage(v)
	}
	for k, v := range s.errs {
		raw.Errors[k] = v
	}
	return raw
}

func scenarioPayloads() map[fitbit.EndpointKey]string {
	return map[fitbit.EndpointKey]string{
		fitbit.EndpointActivities: `{"summary":{"steps":8000,"veryActiveMinutes":20}}`,
		fitbit.EndpointHeartRate:  `{"activities-heart":[{"value":{"restingHeartRate":58}}]}`,
		fitbit.EndpointSleep:      `{"sleep":[{"isMainSleep":true,"startTime":"2024-01-10T23:30:00","endTime":"2024-01-11T06:30:00","minutesAsleep":390}]}`,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := healthdate.Parse(s)
	require.NoError(t, err)
	return d
}

func TestDaily_Run_WritesRowAndAnnotation(t *testing.T) {
	var appended *dailymetrics.Record
	var annDate time.Time
	var annTitle, annDesc string
	var published event.Event

	d := &Daily{
		Tokens:     &mocks.MockTokenProvider{},
		Aggregator: &stubAggregator{payloads: scenarioPayloads()},
		Rows: &mocks.MockRowAppender{AppendRowFunc: func(ctx context.Context, r *dailymetrics.Record) error {
			appended = r
			return nil
		}},
		Annotations: &mocks.MockAnnotator{CreateAllDayAnnotationFunc: func(ctx context.Context, date time.Time, title, description string) error {
			annDate, annTitle, annDesc = date, title, description
			return nil
		}},
		Events: &mocks.MockPublisher{PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			published = e
			return "id", nil
		}},
		UserID: "user-1",
		Logger: testLogger(),
	}

	rec, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))
	require.NoError(t, err)

	require.NotNil(t, appended)
	assert.Same(t, rec, appended)
	assert.Equal(t, "2024-01-10", rec.Date)
	assert.Equal(t, "2024-01-10", healthdate.Format(annDate))
	assert.Equal(t, "Health Summary for 01/10", annTitle)
	assert.Equal(t, "6.50 Hours Slept<br/>8,000 Steps<br/>11:30 PM Bed Time<br/>6:30 AM Wake-up Time", annDesc)
	assert.Equal(t, "2024-01-10", published.Subject())
}

func TestDaily_Run_NoAccess(t *testing.T) {
	agg := &stubAggregator{}
	d := &Daily{
		Tokens: &mocks.MockTokenProvider{
			HasAccessFunc:        func(ctx context.Context) bool { return false },
			AuthorizationURLFunc: func(state string) string { return "https://www.fitbit.com/oauth2/authorize?state=" + state },
		},
		Aggregator: agg,
		Rows: &mocks.MockRowAppender{AppendRowFunc: func(ctx context.Context, r *dailymetrics.Record) error {
			t.Error("Expected no row to be written")
			return nil
		}},
		IssueState: func(ctx context.Context) (string, error) { return "st-1", nil },
		Logger:     testLogger(),
	}

	_, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuthRequired))
	assert.Equal(t, "https://www.fitbit.com/oauth2/authorize?state=st-1", apperrors.AuthorizationURL(err))
	assert.Empty(t, agg.targets)
}

func TestDaily_Run_TokenRevokedMidRun(t *testing.T) {
	revoked := apperrors.ErrAuthRequired.WithMessage("fitbit refresh token rejected")
	errs := map[fitbit.EndpointKey]error{}
	for _, target := range append(fitbit.DailyTargets(), fitbit.SleepTarget) {
		errs[target.Key] = revoked
	}

	d := &Daily{
		Tokens:     &mocks.MockTokenProvider{},
		Aggregator: &stubAggregator{errs: errs},
		Rows:       &mocks.MockRowAppender{},
		Logger:     testLogger(),
	}

	_, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))

	assert.True(t, errors.Is(err, apperrors.ErrAuthRequired))
	assert.NotEmpty(t, apperrors.AuthorizationURL(err))
}

func TestDaily_Run_PartialDataStillWritten(t *testing.T) {
	var appended *dailymetrics.Record
	d := &Daily{
		Tokens: &mocks.MockTokenProvider{},
		Aggregator: &stubAggregator{
			payloads: map[fitbit.EndpointKey]string{fitbit.EndpointActivities: `{"summary":{"steps":42}}`},
			errs:     map[fitbit.EndpointKey]error{fitbit.EndpointSleep: &fitbit.FetchError{Endpoint: "/sleep/date/2024-01-11.json", LastStatus: 500, Attempts: 4}},
		},
		Rows: &mocks.MockRowAppender{AppendRowFunc: func(ctx context.Context, r *dailymetrics.Record) error {
			appended = r
			return nil
		}},
		Logger: testLogger(),
	}

	_, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))

	require.NoError(t, err)
	require.NotNil(t, appended)
	assert.Equal(t, 42, *appended.Steps)
	assert.Nil(t, appended.BedTime)
}

func TestDaily_Run_SinkFailure(t *testing.T) {
	d := &Daily{
		Tokens:     &mocks.MockTokenProvider{},
		Aggregator: &stubAggregator{payloads: scenarioPayloads()},
		Rows: &mocks.MockRowAppender{AppendRowFunc: func(ctx context.Context, r *dailymetrics.Record) error {
			return errors.New("quota exceeded")
		}},
		Annotations: &mocks.MockAnnotator{CreateAllDayAnnotationFunc: func(ctx context.Context, date time.Time, title, description string) error {
			t.Error("Expected no annotation after a failed append")
			return nil
		}},
		Logger: testLogger(),
	}

	_, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSinkFailure))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDaily_Run_OptionalSinkFailuresOnlyWarn(t *testing.T) {
	var archived []string
	d := &Daily{
		Tokens:     &mocks.MockTokenProvider{},
		Aggregator: &stubAggregator{payloads: scenarioPayloads()},
		Rows:       &mocks.MockRowAppender{},
		Records: &mocks.MockDatabase{SaveDailyMetricsFunc: func(ctx context.Context, userID string, r *dailymetrics.Record) error {
			return errors.New("firestore unavailable")
		}},
		Archive: &mocks.MockBlobStore{WriteFunc: func(ctx context.Context, bucket, object string, data []byte) error {
			archived = append(archived, bucket+"/"+object)
			return errors.New("gcs unavailable")
		}},
		ArchiveBucket: "raw-bucket",
		Events: &mocks.MockPublisher{PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			return "", errors.New("pubsub unavailable")
		}},
		UserID: "user-1",
		Logger: testLogger(),
	}

	_, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))

	require.NoError(t, err)
	assert.Len(t, archived, 3)
	assert.Contains(t, archived, "raw-bucket/raw/user-1/2024-01-11/sleep.json")
	assert.Contains(t, archived, "raw-bucket/raw/user-1/2024-01-10/activities.json")
}

func TestDaily_Run_Idempotent(t *testing.T) {
	var rows [][]string
	d := &Daily{
		Tokens:     &mocks.MockTokenProvider{},
		Aggregator: &stubAggregator{payloads: scenarioPayloads()},
		Rows: &mocks.MockRowAppender{AppendRowFunc: func(ctx context.Context, r *dailymetrics.Record) error {
			rows = append(rows, r.Row())
			return nil
		}},
		Logger: testLogger(),
	}

	for i := 0; i < 2; i++ {
		_, err := d.Run(context.Background(), mustDate(t, "2024-01-12"))
		require.NoError(t, err)
	}

	require.Len(t, rows, 2)
	assert.Equal(t, rows[0], rows[1])
	assert.Equal(t, "2024-01-10", rows[0][0])
}

func TestAnnotation_MissingValues(t *testing.T) {
	title, desc := Annotation(&dailymetrics.Record{Date: "2024-12-31"}, mustDate(t, "2024-12-31"))

	assert.Equal(t, "Health Summary for 12/31", title)
	assert.Equal(t, 4, len(strings.Split(desc, "<br/>")))
	assert.True(t, strings.HasPrefix(desc, "n/a Hours Slept"))
}
