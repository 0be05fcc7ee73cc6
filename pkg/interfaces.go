package shared

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	// Linked OAuth providers (users/{uid}.integrations.{provider})
	GetIntegration(ctx context.Context, userID, provider string) (*types.OAuthIntegration, error)
	SaveIntegration(ctx context.Context, userID, provider string, integration *types.OAuthIntegration) error
	ClearIntegration(ctx context.Context, userID, provider string) error

	// Daily metrics archive (users/{uid}/daily_metrics/{date})
	SaveDailyMetrics(ctx context.Context, userID string, record *dailymetrics.Record) error
	GetDailyMetrics(ctx context.Context, userID, date string) (*dailymetrics.Record, error)

	// Sync runs (users/{uid}/sync_runs/{id})
	SetSyncRun(ctx context.Context, userID string, run *types.SyncRun) error

	// OAuth authorize/callback state
	CreateOAuthState(ctx context.Context, state *types.OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (*types.OAuthState, error)
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}
