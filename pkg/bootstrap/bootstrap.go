// Package bootstrap builds the shared dependencies used by the CLI and the
// Cloud Functions from one Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"

	shared "github.com/fitglue/healthsync/pkg"
	"github.com/fitglue/healthsync/pkg/fitbit"
	"github.com/fitglue/healthsync/pkg/infrastructure/database"
	"github.com/fitglue/healthsync/pkg/infrastructure/oauth"
	infrapubsub "github.com/fitglue/healthsync/pkg/infrastructure/pubsub"
	"github.com/fitglue/healthsync/pkg/infrastructure/secrets"
	"github.com/fitglue/healthsync/pkg/infrastructure/sentry"
	infrastorage "github.com/fitglue/healthsync/pkg/infrastructure/storage"
	"github.com/fitglue/healthsync/pkg/pipeline"
	"github.com/fitglue/healthsync/pkg/sink/calendar"
	"github.com/fitglue/healthsync/pkg/sink/sheets"
	"github.com/fitglue/healthsync/pkg/sink/sqlite"
	"github.com/fitglue/healthsync/pkg/types"
)

// Service holds initialized dependencies.
type Service struct {
	DB     shared.Database
	Store  shared.BlobStore
	Pub    shared.Publisher
	Config *Config
	Logger *slog.Logger

	Fitbit   *oauth.Provider
	Google   *oauth.Provider
	Reporter *sentry.Reporter

	closers []func() error
}

// NewService validates cfg and connects Firestore, Pub/Sub and (when an
// archive bucket is set) Cloud Storage.
func NewService(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = LoadConfig()
	}
	if logger == nil {
		logger = InitLogger("healthsync", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Initializing service", "project_id", cfg.ProjectID, "sink", cfg.SinkBackend)

	if err := sentry.Init(sentry.Config{DSN: cfg.SentryDSN, Environment: cfg.Environment}, logger); err != nil {
		logger.Warn("Continuing without Sentry", "error", err)
	}

	svc := &Service{Config: cfg, Logger: logger, Reporter: sentry.NewReporter(logger)}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore init failed", "error", err)
		return nil, fmt.Errorf("firestore init: %w", err)
	}
	svc.closers = append(svc.closers, fsClient.Close)
	svc.DB = database.NewFirestoreAdapter(fsClient)

	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			svc.Close()
			logger.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		svc.closers = append(svc.closers, psClient.Close)
		svc.Pub = &infrapubsub.PubSubAdapter{Client: psClient}
		logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		svc.Pub = &infrapubsub.LogPublisher{Logger: logger}
		logger.Info("Pub/Sub: MOCK (LogPublisher)")
	}

	if cfg.RawArchiveBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			svc.Close()
			logger.Error("Storage init failed", "error", err)
			return nil, fmt.Errorf("storage init: %w", err)
		}
		svc.closers = append(svc.closers, gcsClient.Close)
		svc.Store = infrastorage.NewStorageAdapter(gcsClient)
	}

	if cfg.UseSecretManager {
		if err := resolveSecrets(ctx, cfg, logger); err != nil {
			svc.Close()
			logger.Error("Secret Manager lookup failed", "error", err)
			return nil, err
		}
	}

	tokenClient := svc.HTTPClient()

	svc.Fitbit = oauth.NewProvider(types.ProviderFitbit,
		oauth.NewFitbitConfig(cfg.FitbitClientID, cfg.FitbitClientSecret, cfg.FitbitRedirectURL),
		svc.DB, cfg.UserID, logger)
	svc.Fitbit.HTTPClient = tokenClient

	svc.Google = oauth.NewProvider(types.ProviderGoogle,
		oauth.NewGoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		svc.DB, cfg.UserID, logger)
	svc.Google.HTTPClient = tokenClient

	return svc, nil
}

// resolveSecrets fills empty OAuth client secrets from Secret Manager.
func resolveSecrets(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("secretmanager init: %w", err)
	}
	defer client.Close()

	r := secrets.NewResolver(client, cfg.ProjectID, logger)
	if cfg.FitbitClientSecret, err = r.Resolve(ctx, cfg.FitbitClientSecret, shared.SecretFitbitClientSecret); err != nil {
		return err
	}
	if cfg.GoogleAuthMode == "user" {
		if cfg.GoogleClientSecret, err = r.Resolve(ctx, cfg.GoogleClientSecret, shared.SecretGoogleClientSecret); err != nil {
			return err
		}
	}
	return nil
}

// HTTPClient returns a client bounded by HTTP_TIMEOUT.
func (s *Service) HTTPClient() *http.Client {
	return &http.Client{Timeout: s.Config.HTTPTimeout}
}

// Provider returns the OAuth provider for name, or nil.
func (s *Service) Provider(name string) *oauth.Provider {
	switch name {
	case types.ProviderFitbit:
		return s.Fitbit
	case types.ProviderGoogle:
		return s.Google
	default:
		return nil
	}
}

// Sinks holds the configured row and annotation sinks.
type Sinks struct {
	Rows        pipeline.RowAppender
	Resetter    pipeline.RowResetter
	Annotations pipeline.Annotator

	closeFn func() error
}

// Close releases whatever the row sink opened. The sinks must not be used
// afterwards.
func (k *Sinks) Close() error {
	if k == nil || k.closeFn == nil {
		return nil
	}
	fn := k.closeFn
	k.closeFn = nil
	return fn()
}

// NewSinks opens the configured row sink. The sheets backend also gets the
// calendar annotator; the sqlite backend runs without one. The caller owns
// the result and must Close it.
func (s *Service) NewSinks(ctx context.Context) (*Sinks, error) {
	cfg := s.Config
	switch cfg.SinkBackend {
	case SinkSQLite:
		store, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Sinks{Rows: store, Resetter: store, closeFn: store.Close}, nil

	case SinkSheets:
		client, err := oauth.NewGoogleClient(ctx, cfg.GoogleAuthMode, s.Google, s.Logger)
		if err != nil {
			return nil, err
		}
		rows, err := sheets.New(ctx, client, cfg.SpreadsheetID, cfg.SheetName, s.Logger)
		if err != nil {
			return nil, err
		}
		cal, err := calendar.New(ctx, client, cfg.CalendarID, s.Logger)
		if err != nil {
			return nil, err
		}
		return &Sinks{Rows: rows, Resetter: rows, Annotations: cal}, nil

	default:
		return nil, fmt.Errorf("unknown SINK_BACKEND %q", cfg.SinkBackend)
	}
}

// NewAggregator builds the Fitbit fetcher and aggregator on the configured
// base URL and timeout.
func (s *Service) NewAggregator() *fitbit.Aggregator {
	fetcher := fitbit.NewFetcher(s.HTTPClient(), s.Logger.With("component", "fitbit"))
	fetcher.BaseURL = s.Config.FitbitAPIBaseURL
	return fitbit.NewAggregator(fetcher, s.Fitbit, s.Logger.With("component", "aggregator"))
}

// NewDaily wires the daily pipeline. sinks may be nil for a dry run, in
// which case only Collect is usable.
func (s *Service) NewDaily(sinks *Sinks) *pipeline.Daily {
	d := &pipeline.Daily{
		Tokens:     s.Fitbit,
		Aggregator: s.NewAggregator(),
		Records:    s.DB,
		Events:     s.Pub,
		IssueState: oauth.StateIssuer(s.DB, s.Config.UserID, types.ProviderFitbit),
		UserID:     s.Config.UserID,
		Logger:     s.Logger.With("component", "pipeline"),
	}
	if sinks != nil {
		d.Rows = sinks.Rows
		d.Annotations = sinks.Annotations
	}
	if s.Store != nil {
		d.Archive = s.Store
		d.ArchiveBucket = s.Config.RawArchiveBucket
	}
	return d
}

// NewBackfill wraps daily with run recording and error reporting.
func (s *Service) NewBackfill(daily pipeline.DayRunner) *pipeline.Backfill {
	b := pipeline.NewBackfill(daily, s.Logger.With("component", "backfill"))
	b.Runs = s.DB
	b.Report = s.Reporter.Report
	b.UserID = s.Config.UserID
	return b
}

// Close releases every client opened by the service.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
