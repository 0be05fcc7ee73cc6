// Package pipeline runs the daily fetch, extract and sink sequence and
// replays it over date ranges.
package pipeline

import (
	"context"
	"time"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/fitbit"
	"github.com/fitglue/healthsync/pkg/types"
)

// TokenProvider is the Fitbit OAuth collaborator.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	HasAccess(ctx context.Context) bool
	AuthorizationURL(state string) string
}

// RowAppender appends one record to the next empty row of a tabular store.
type RowAppender interface {
	AppendRow(ctx context.Context, record *dailymetrics.Record) error
}

// RowResetter clears a row sink back to just its header row.
type RowResetter interface {
	Reset(ctx context.Context) error
}

// Annotator creates an all-day calendar entry.
type Annotator interface {
	CreateAllDayAnnotation(ctx context.Context, date time.Time, title, description string) error
}

// RawAggregator is satisfied by *fitbit.Aggregator.
type RawAggregator interface {
	Aggregate(ctx context.Context, target time.Time) *fitbit.RawEndpointResult
}

type RecordStore interface {
	SaveDailyMetrics(ctx context.Context, userID string, record *dailymetrics.Record) error
}

type RunRecorder interface {
	SetSyncRun(ctx context.Context, userID string, run *types.SyncRun) error
}

// ErrorReporter forwards a failure to error tracking.
type ErrorReporter func(err error, context map[string]interface{})

// StateIssuer returns an OAuth state value the callback will accept.
type StateIssuer func(ctx context.Context) (string, error)
