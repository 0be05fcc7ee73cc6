package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fitglue/healthsync/pkg/bootstrap"
	"github.com/fitglue/healthsync/pkg/dailymetrics"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/fitbit"
	"github.com/fitglue/healthsync/pkg/infrastructure/oauth"
	"github.com/fitglue/healthsync/pkg/pipeline"
)

type collector interface {
	Collect(ctx context.Context, target time.Time) (*dailymetrics.Record, *fitbit.RawEndpointResult, error)
}

type rangeRunner interface {
	Run(ctx context.Context, start, end time.Time) (*pipeline.BackfillReport, error)
}

type recordReader interface {
	GetDailyMetrics(ctx context.Context, userID, date string) (*dailymetrics.Record, error)
}

type authorizer interface {
	AuthorizationURL(state string) string
	Reset(ctx context.Context) error
}

// runtime is what a command needs from the service.
type runtime struct {
	Collector collector
	Backfill  rangeRunner
	Resetter  pipeline.RowResetter
	Records   recordReader
	Fitbit    authorizer
	States    oauth.StateStore
	UserID    string

	closeFn func() error
}

func (r *runtime) close(logger *slog.Logger) {
	if r.closeFn == nil {
		return
	}
	if err := r.closeFn(); err != nil {
		logger.Warn("Failed to close service", "error", err)
	}
}

// opener builds the runtime. withSinks is false for dry runs and the auth
// commands, which never write rows.
type opener func(ctx context.Context, cfg *bootstrap.Config, logger *slog.Logger, withSinks bool) (*runtime, error)

func openService(ctx context.Context, cfg *bootstrap.Config, logger *slog.Logger, withSinks bool) (*runtime, error) {
	svc, err := bootstrap.NewService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		Records: svc.DB,
		Fitbit:  svc.Fitbit,
		States:  svc.DB,
		UserID:  cfg.UserID,
		closeFn: svc.Close,
	}

	var sinks *bootstrap.Sinks
	if withSinks {
		if sinks, err = svc.NewSinks(ctx); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("failed to open sinks: %w", err)
		}
		rt.Resetter = sinks.Resetter
		rt.closeFn = func() error { return errors.Join(sinks.Close(), svc.Close()) }
	}

	daily := svc.NewDaily(sinks)
	rt.Collector = daily
	if withSinks {
		rt.Backfill = svc.NewBackfill(daily)
	}
	return rt, nil
}

type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
	open   opener

	cfg    *bootstrap.Config
	logger *slog.Logger
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		v:      viper.New(),
		out:    out,
		errOut: errOut,
		now:    time.Now,
		open:   openService,
	}
}

// flagKeys maps persistent flags to the environment keys they override.
var flagKeys = map[string]string{
	"config":         "healthsync_config",
	"project":        "google_cloud_project",
	"user-id":        "healthsync_user_id",
	"sink":           "sink_backend",
	"spreadsheet-id": "spreadsheet_id",
	"sheet-name":     "sheet_name",
	"calendar-id":    "calendar_id",
	"sqlite-path":    "sqlite_path",
	"log-level":      "log_level",
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "healthsync",
		Short: "Fitbit daily health metrics pipeline",
		Long: `Fetches the previous days' Fitbit activity, vitals and sleep, appends one
row per day to a Google Sheet (or a local SQLite file) and annotates the
day on Google Calendar.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file with the same keys as the environment (lower case)")
	pf.String("project", "", "Google Cloud project (overrides GOOGLE_CLOUD_PROJECT)")
	pf.String("user-id", "", "User whose tokens are used (overrides HEALTHSYNC_USER_ID)")
	pf.String("sink", "", "Row sink: sheets or sqlite (overrides SINK_BACKEND)")
	pf.String("spreadsheet-id", "", "Target spreadsheet (overrides SPREADSHEET_ID)")
	pf.String("sheet-name", "", "Target sheet tab (overrides SHEET_NAME)")
	pf.String("calendar-id", "", "Calendar for annotations (overrides CALENDAR_ID)")
	pf.String("sqlite-path", "", "SQLite file for the sqlite sink (overrides SQLITE_PATH)")
	pf.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	for flag, key := range flagKeys {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(a.syncCmd(), a.backfillCmd(), a.showCmd(), a.authCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.v.AutomaticEnv()

	if path := a.v.GetString("healthsync_config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	a.cfg = bootstrap.LoadConfigFrom(a.lookup)
	// Logs go to stderr so stdout stays parseable for --output json|yaml.
	a.logger = bootstrap.NewLogger("healthsync", a.cfg.LogLevel, a.errOut)
	return nil
}

// lookup resolves an environment key through viper: flag, then environment,
// then config file.
func (a *app) lookup(key string) string {
	return a.v.GetString(strings.ToLower(key))
}

func (a *app) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

// explain prints the re-authorization URL for AuthRequired errors and
// returns err unchanged. Cobra prints the error itself.
func (a *app) explain(err error) error {
	if errors.Is(err, apperrors.ErrAuthRequired) {
		if url := apperrors.AuthorizationURL(err); url != "" {
			fmt.Fprintf(a.errOut, "Fitbit authorization required. Open this URL to continue:\n%s\n", url)
		}
	}
	return err
}
