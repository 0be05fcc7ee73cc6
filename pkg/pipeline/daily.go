package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	shared "github.com/fitglue/healthsync/pkg"
	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/fitbit"
	infrapubsub "github.com/fitglue/healthsync/pkg/infrastructure/pubsub"
)

// Daily runs the pipeline for one target date. Rows is required; the
// other collaborators are optional and their failures only log a warning.
type Daily struct {
	Tokens     TokenProvider
	Aggregator RawAggregator
	Rows       RowAppender

	Annotations   Annotator
	Records       RecordStore
	Archive       shared.BlobStore
	ArchiveBucket string
	Events        shared.Publisher
	IssueState    StateIssuer

	UserID string
	Logger *slog.Logger
}

// Collect checks authorization, fetches every endpoint for target and
// extracts the record without writing it anywhere.
func (d *Daily) Collect(ctx context.Context, target time.Time) (*dailymetrics.Record, *fitbit.RawEndpointResult, error) {
	logger := d.logger().With("target_date", healthdate.Format(target))

	if !d.Tokens.HasAccess(ctx) {
		err := apperrors.AuthRequired(d.authorizationURL(ctx))
		logger.Error("Authorization required", "authorization_url", apperrors.AuthorizationURL(err))
		return nil, nil, err
	}

	raw := d.Aggregator.Aggregate(ctx, target)
	if err := ctx.Err(); err != nil {
		return nil, raw, err
	}

	// A token that stops refreshing mid-run marks every endpoint absent;
	// that is an authorization problem, not a day of missing data.
	if err := authFailure(raw); err != nil {
		if apperrors.AuthorizationURL(err) == "" {
			err = apperrors.AuthRequired(d.authorizationURL(ctx)).WithCause(err)
		}
		logger.Error("Authorization required", "authorization_url", apperrors.AuthorizationURL(err), "error", err)
		return nil, raw, err
	}

	for _, key := range sortedKeys(raw.Errors) {
		logger.Warn("Endpoint absent from record", "endpoint", string(key), "error", raw.Errors[key])
	}

	return dailymetrics.Extract(raw), raw, nil
}

// Run collects the record for target and writes it to every sink. A sink
// failure fails the day with apperrors.ErrSinkFailure.
func (d *Daily) Run(ctx context.Context, target time.Time) (*dailymetrics.Record, error) {
	rec, raw, err := d.Collect(ctx, target)
	if err != nil {
		return nil, err
	}
	logger := d.logger().With("target_date", healthdate.Format(target), "date", rec.Date)

	d.archiveRaw(ctx, raw, logger)

	if err := d.Rows.AppendRow(ctx, rec); err != nil {
		return rec, apperrors.ErrSinkFailure.WithMessage("append row failed").WithCause(err).WithMetadata("date", rec.Date)
	}
	logger.Info("Appended daily row")

	if d.Annotations != nil {
		title, description := Annotation(rec, raw.HealthDate)
		if err := d.Annotations.CreateAllDayAnnotation(ctx, raw.HealthDate, title, description); err != nil {
			return rec, apperrors.ErrSinkFailure.WithMessage("create annotation failed").WithCause(err).WithMetadata("date", rec.Date)
		}
		logger.Info("Created calendar annotation", "title", title)
	}

	if d.Records != nil {
		if err := d.Records.SaveDailyMetrics(ctx, d.UserID, rec); err != nil {
			logger.Warn("Failed to archive daily metrics", "error", err)
		}
	}

	d.publish(ctx, rec, logger)

	logger.Info("Daily metrics recorded", "has_steps", rec.Steps != nil, "has_sleep", rec.TotalSleepHours != nil)
	return rec, nil
}

func (d *Daily) archiveRaw(ctx context.Context, raw *fitbit.RawEndpointResult, logger *slog.Logger) {
	if d.Archive == nil || d.ArchiveBucket == "" {
		return
	}
	for _, key := range sortedKeys(raw.Payloads) {
		day := raw.HealthDate
		if key == fitbit.EndpointSleep {
			day = raw.SleepDate
		}
		object := fmt.Sprintf("raw/%s/%s/%s.json", d.UserID, healthdate.Format(day), key)
		if err := d.Archive.Write(ctx, d.ArchiveBucket, object, raw.Payloads[key]); err != nil {
			logger.Warn("Failed to archive raw payload", "object", object, "error", err)
		}
	}
}

func (d *Daily) publish(ctx context.Context, rec *dailymetrics.Record, logger *slog.Logger) {
	if d.Events == nil {
		return
	}
	e, err := infrapubsub.NewCloudEvent(infrapubsub.SourcePipeline, infrapubsub.EventTypeDailyMetricsRecorded, rec.Date, rec)
	if err != nil {
		logger.Warn("Failed to build event", "error", err)
		return
	}
	if _, err := d.Events.PublishCloudEvent(ctx, shared.TopicDailyMetricsRecorded, e); err != nil {
		logger.Warn("Failed to publish event", "error", err)
	}
}

func (d *Daily) authorizationURL(ctx context.Context) string {
	state := ""
	if d.IssueState != nil {
		s, err := d.IssueState(ctx)
		if err != nil {
			d.logger().Warn("Failed to issue OAuth state", "error", err)
		} else {
			state = s
		}
	}
	return d.Tokens.AuthorizationURL(state)
}

func (d *Daily) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func authFailure(raw *fitbit.RawEndpointResult) error {
	if raw == nil || len(raw.Payloads) > 0 {
		return nil
	}
	for _, err := range raw.Errors {
		if errors.Is(err, apperrors.ErrAuthRequired) {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[fitbit.EndpointKey]V) []fitbit.EndpointKey {
	keys := make([]fitbit.EndpointKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
