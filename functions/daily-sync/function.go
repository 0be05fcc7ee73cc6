package dailysync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/go-playground/validator/v10"

	"github.com/fitglue/healthsync/pkg/bootstrap"
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/framework"
	"github.com/fitglue/healthsync/pkg/pipeline"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error

	validate = validator.New()
)

func init() {
	functions.CloudEvent("DailySync", DailySync)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		baseSvc, err := bootstrap.NewService(ctx, nil, nil)
		if err != nil {
			svcErr = err
			return
		}
		svc = baseSvc
	})
	return svc, svcErr
}

// SyncRequest is the trigger payload. An empty payload syncs today.
type SyncRequest struct {
	Date      string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02,excluded_with=StartDate EndDate Days"`
	StartDate string `json:"start_date,omitempty" validate:"required_with=EndDate"`
	EndDate   string `json:"end_date,omitempty" validate:"required_with=StartDate"`
	Days      int    `json:"days,omitempty" validate:"omitempty,gte=1,lte=90,excluded_with=StartDate"`
}

// Window resolves the request to an inclusive range of target dates.
func (r *SyncRequest) Window(now time.Time) (start, end time.Time, err error) {
	switch {
	case r.StartDate != "":
		if start, err = healthdate.Parse(r.StartDate); err != nil {
			return
		}
		end, err = healthdate.Parse(r.EndDate)
		return
	case r.Days > 0:
		start, end = pipeline.DefaultWindow(now, r.Days)
		return
	case r.Date != "":
		start, err = healthdate.Parse(r.Date)
		return start, start, err
	default:
		today := healthdate.Today(now)
		return today, today, nil
	}
}

// RangeRunner is satisfied by *pipeline.Backfill.
type RangeRunner interface {
	Run(ctx context.Context, start, end time.Time) (*pipeline.BackfillReport, error)
}

// RunnerFactory builds the runner for one invocation. The returned close
// func releases the sinks behind it and runs when the invocation ends.
type RunnerFactory func(ctx context.Context, svc *bootstrap.Service) (RangeRunner, func() error, error)

func defaultRunner(ctx context.Context, svc *bootstrap.Service) (RangeRunner, func() error, error) {
	sinks, err := svc.NewSinks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sinks: %w", err)
	}
	return svc.NewBackfill(svc.NewDaily(sinks)), sinks.Close, nil
}

// DailySync is the Cloud Function entry point.
func DailySync(ctx context.Context, e event.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("daily-sync", svc, syncHandler(defaultRunner, time.Now))(ctx, e)
}

func syncHandler(newRunner RunnerFactory, now func() time.Time) framework.HandlerFunc {
	return func(ctx context.Context, e event.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
		var req SyncRequest
		if data := e.Data(); len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, apperrors.ErrValidation.WithMessage("invalid sync payload").WithCause(err)
			}
		}
		if err := validate.Struct(&req); err != nil {
			return nil, apperrors.ErrValidation.WithMessage("invalid sync payload").WithCause(err)
		}

		start, end, err := req.Window(now())
		if err != nil {
			return nil, apperrors.ErrValidation.WithCause(err)
		}

		fwCtx.Logger.Info("Starting sync", "start", healthdate.Format(start), "end", healthdate.Format(end))

		runner, closeRunner, err := newRunner(ctx, fwCtx.Service)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := closeRunner(); err != nil {
				fwCtx.Logger.Warn("Failed to close sinks", "error", err)
			}
		}()

		report, err := runner.Run(ctx, start, end)
		if err != nil {
			if url := apperrors.AuthorizationURL(err); url != "" {
				fwCtx.Logger.Error("Fitbit authorization required", "authorization_url", url)
			}
			return nil, err
		}

		return map[string]interface{}{
			"status":       "SUCCESS",
			"run_id":       report.RunID,
			"start":        report.Start,
			"end":          report.End,
			"succeeded":    report.Succeeded,
			"failed":       report.Failed,
			"failed_dates": report.FailedDates(),
		}, nil
	}
}
