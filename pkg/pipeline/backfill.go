package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/fitbit"
	"github.com/fitglue/healthsync/pkg/types"
)

const (
	DefaultInterDayDelay = 10 * time.Second
	DefaultFailureDelay  = 15 * time.Second
)

// DayRunner is satisfied by *Daily.
type DayRunner interface {
	Run(ctx context.Context, target time.Time) (*dailymetrics.Record, error)
}

// DayOutcome is the result of one target date.
type DayOutcome struct {
	TargetDate string
	Record     *dailymetrics.Record
	Err        error
}

type BackfillReport struct {
	RunID     string
	Start     string
	End       string
	Days      []DayOutcome
	Succeeded int
	Failed    int
}

// FailedDates lists the target dates whose run failed, in order.
func (r *BackfillReport) FailedDates() []string {
	var out []string
	for _, d := range r.Days {
		if d.Err != nil {
			out = append(out, d.TargetDate)
		}
	}
	return out
}

// Backfill replays the daily pipeline over an inclusive range of target
// dates, one at a time, pausing between days to stay under the upstream
// rate limit.
type Backfill struct {
	Daily         DayRunner
	InterDayDelay time.Duration
	FailureDelay  time.Duration
	Sleep         fitbit.SleepFunc

	Runs   RunRecorder
	Report ErrorReporter
	UserID string
	Logger *slog.Logger

	newRunID func() string
	now      func() time.Time
}

func NewBackfill(daily DayRunner, logger *slog.Logger) *Backfill {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfill{
		Daily:         daily,
		InterDayDelay: DefaultInterDayDelay,
		FailureDelay:  DefaultFailureDelay,
		Sleep:         fitbit.SleepContext,
		Logger:        logger,
		newRunID:      uuid.NewString,
		now:           time.Now,
	}
}

// Run processes every target date in [start, end] in ascending order. A
// failed day is logged, reported and followed by the longer delay; it never
// stops the run. AuthRequired and context cancellation stop the run and are
// returned along with the partial report.
func (b *Backfill) Run(ctx context.Context, start, end time.Time) (*BackfillReport, error) {
	start, end = healthdate.Day(start), healthdate.Day(end)
	if start.After(end) {
		return nil, apperrors.ErrValidation.WithMessage(
			fmt.Sprintf("start date %s is after end date %s", healthdate.Format(start), healthdate.Format(end)))
	}
	days, err := healthdate.Range(start, end)
	if err != nil {
		return nil, apperrors.ErrValidation.WithCause(err)
	}

	report := &BackfillReport{
		RunID: b.runID(),
		Start: healthdate.Format(start),
		End:   healthdate.Format(end),
	}
	logger := b.logger().With("run_id", report.RunID)
	run := b.startRun(ctx, report, logger)

	logger.Info("Starting backfill", "start", report.Start, "end", report.End, "days", len(days))

	for i, day := range days {
		date := healthdate.Format(day)
		logger.Info("Processing date", "target_date", date, "index", i+1, "total", len(days))

		rec, err := b.Daily.Run(ctx, day)
		report.Days = append(report.Days, DayOutcome{TargetDate: date, Record: rec, Err: err})

		delay := b.InterDayDelay
		if err != nil {
			if errors.Is(err, apperrors.ErrAuthRequired) {
				logger.Error("Backfill aborted: authorization required", "target_date", date,
					"authorization_url", apperrors.AuthorizationURL(err))
				report.Failed++
				b.finishRun(ctx, run, report, types.SyncRunAborted, err, logger)
				return report, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Failed++
				b.finishRun(ctx, run, report, types.SyncRunAborted, ctxErr, logger)
				return report, ctxErr
			}

			report.Failed++
			retryable := apperrors.IsRetryable(err)
			logger.Error("Error processing date", "target_date", date, "error", err,
				"code", apperrors.GetCode(err), "retryable", retryable)
			if b.Report != nil {
				b.Report(err, map[string]interface{}{
					"target_date": date,
					"run_id":      report.RunID,
					"retryable":   retryable,
				})
			}
			delay = b.FailureDelay
		} else {
			report.Succeeded++
		}

		// No pause after the final day; the run is over.
		if i == len(days)-1 {
			break
		}
		if err := b.sleep(ctx, delay); err != nil {
			b.finishRun(ctx, run, report, types.SyncRunAborted, err, logger)
			return report, err
		}
	}

	b.finishRun(ctx, run, report, types.SyncRunCompleted, nil, logger)
	logger.Info("Backfill complete", "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

func (b *Backfill) startRun(ctx context.Context, report *BackfillReport, logger *slog.Logger) *types.SyncRun {
	if b.Runs == nil {
		return nil
	}
	kind := types.SyncRunBackfill
	if report.Start == report.End {
		kind = types.SyncRunDaily
	}
	run := &types.SyncRun{
		RunID:     report.RunID,
		UserID:    b.UserID,
		Kind:      kind,
		Status:    types.SyncRunRunning,
		StartDate: report.Start,
		EndDate:   report.End,
		StartedAt: b.clock(),
	}
	if err := b.Runs.SetSyncRun(ctx, b.UserID, run); err != nil {
		logger.Warn("Failed to record sync run", "error", err)
	}
	return run
}

func (b *Backfill) finishRun(ctx context.Context, run *types.SyncRun, report *BackfillReport, status types.SyncRunStatus, runErr error, logger *slog.Logger) {
	if run == nil {
		return
	}
	run.Status = status
	run.Succeeded = report.Succeeded
	run.Failed = report.Failed
	run.FailedDates = report.FailedDates()
	run.FinishedAt = b.clock()
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// The run context may already be cancelled; the final write still goes out.
	if err := b.Runs.SetSyncRun(context.WithoutCancel(ctx), b.UserID, run); err != nil {
		logger.Warn("Failed to record sync run", "error", err)
	}
}

func (b *Backfill) sleep(ctx context.Context, d time.Duration) error {
	if b.Sleep == nil {
		return fitbit.SleepContext(ctx, d)
	}
	return b.Sleep(ctx, d)
}

func (b *Backfill) runID() string {
	if b.newRunID == nil {
		return uuid.NewString()
	}
	return b.newRunID()
}

func (b *Backfill) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

func (b *Backfill) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// DefaultWindow returns the target dates of the last n days ending
// yesterday (America/Chicago).
func DefaultWindow(now time.Time, n int) (start, end time.Time) {
	if n < 1 {
		n = 1
	}
	end = healthdate.AddDays(healthdate.Today(now), -1)
	start = healthdate.AddDays(end, -(n - 1))
	return start, end
}
