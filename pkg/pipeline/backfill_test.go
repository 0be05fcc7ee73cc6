package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/testing/mocks"
	"github.com/fitglue/healthsync/pkg/types"
)

type scriptedDay struct {
	calls []string
	fail  map[string]error
}

func (s *scriptedDay) Run(ctx context.Context, target time.Time) (*dailymetrics.Record, error) {
	date := healthdate.Format(target)
	s.calls = append(s.calls, date)
	if err, ok := s.fail[date]; ok {
		return nil, err
	}
	return &dailymetrics.Record{Date: healthdate.Format(healthdate.HealthDate(target))}, nil
}

func newTestBackfill(day DayRunner, sleeps *[]time.Duration) *Backfill {
	b := NewBackfill(day, testLogger())
	b.Sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return ctx.Err()
	}
	b.newRunID = func() string { return "run-1" }
	return b
}

func TestBackfill_ThreeDaysInOrder(t *testing.T) {
	day := &scriptedDay{}
	var sleeps []time.Duration

	report, err := newTestBackfill(day, &sleeps).Run(context.Background(), mustDate(t, "2024-01-10"), mustDate(t, "2024-01-12"))

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-10", "2024-01-11", "2024-01-12"}, day.calls)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, sleeps, "no pause after the last day")
	assert.Equal(t, "2024-01-08", report.Days[0].Record.Date)
}

func TestBackfill_FailedDayIsolated(t *testing.T) {
	day := &scriptedDay{fail: map[string]error{
		"2024-01-11": apperrors.ErrSinkFailure.WithCause(errors.New("sheet locked")),
	}}
	var sleeps []time.Duration
	var reported []string
	var retryable []bool

	b := newTestBackfill(day, &sleeps)
	b.Report = func(err error, ctx map[string]interface{}) {
		reported = append(reported, ctx["target_date"].(string))
		retryable = append(retryable, ctx["retryable"].(bool))
	}

	report, err := b.Run(context.Background(), mustDate(t, "2024-01-10"), mustDate(t, "2024-01-12"))

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-10", "2024-01-11", "2024-01-12"}, day.calls)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"2024-01-11"}, report.FailedDates())
	assert.Equal(t, []string{"2024-01-11"}, reported)
	assert.Equal(t, []bool{true}, retryable)
	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second}, sleeps)
}

func TestBackfill_AuthRequiredAborts(t *testing.T) {
	day := &scriptedDay{fail: map[string]error{
		"2024-01-11": apperrors.AuthRequired("https://www.fitbit.com/oauth2/authorize"),
	}}
	var sleeps []time.Duration
	var runs []types.SyncRun

	b := newTestBackfill(day, &sleeps)
	b.Runs = &mocks.MockDatabase{SetSyncRunFunc: func(ctx context.Context, userID string, run *types.SyncRun) error {
		runs = append(runs, *run)
		return nil
	}}

	report, err := b.Run(context.Background(), mustDate(t, "2024-01-10"), mustDate(t, "2024-01-13"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuthRequired))
	assert.Equal(t, []string{"2024-01-10", "2024-01-11"}, day.calls)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, runs, 2)
	assert.Equal(t, types.SyncRunRunning, runs[0].Status)
	assert.Equal(t, types.SyncRunAborted, runs[1].Status)
	assert.Equal(t, types.SyncRunBackfill, runs[1].Kind)
	assert.Equal(t, []string{"2024-01-11"}, runs[1].FailedDates)
}

func TestBackfill_StartAfterEnd(t *testing.T) {
	day := &scriptedDay{}
	var sleeps []time.Duration

	_, err := newTestBackfill(day, &sleeps).Run(context.Background(), mustDate(t, "2024-01-12"), mustDate(t, "2024-01-10"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, day.calls)
}

func TestBackfill_SingleDayIsDailyRun(t *testing.T) {
	day := &scriptedDay{}
	var sleeps []time.Duration
	var kind types.SyncRunKind

	b := newTestBackfill(day, &sleeps)
	b.Runs = &mocks.MockDatabase{SetSyncRunFunc: func(ctx context.Context, userID string, run *types.SyncRun) error {
		kind = run.Kind
		return nil
	}}

	report, err := b.Run(context.Background(), mustDate(t, "2024-01-12"), mustDate(t, "2024-01-12"))

	require.NoError(t, err)
	assert.Len(t, day.calls, 1)
	assert.Empty(t, sleeps)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, types.SyncRunDaily, kind)
}

func TestBackfill_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	day := &scriptedDay{}

	b := NewBackfill(day, testLogger())
	b.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := b.Run(ctx, mustDate(t, "2024-01-10"), mustDate(t, "2024-01-12"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"2024-01-10"}, day.calls)
}

func TestDefaultWindow(t *testing.T) {
	// 03:00 UTC on Jan 15 is still Jan 14 in Chicago, so yesterday is Jan 13.
	now := time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)

	start, end := DefaultWindow(now, 14)

	assert.Equal(t, "2023-12-31", healthdate.Format(start))
	assert.Equal(t, "2024-01-13", healthdate.Format(end))
}
