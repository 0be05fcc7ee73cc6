package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	shared "github.com/fitglue/healthsync/pkg"
	"github.com/fitglue/healthsync/pkg/fitbit"
)

const (
	SinkSheets = "sheets"
	SinkSQLite = "sqlite"

	DefaultHTTPTimeout = 30 * time.Second
)

var validate = validator.New()

// Config holds the settings shared by the CLI and the functions.
type Config struct {
	ProjectID string `validate:"required"`
	UserID    string `validate:"required"`

	FitbitClientID     string
	FitbitClientSecret string
	FitbitRedirectURL  string
	FitbitAPIBaseURL   string `validate:"required,url"`

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleAuthMode     string `validate:"oneof=user adc"`

	SinkBackend   string `validate:"oneof=sheets sqlite"`
	SpreadsheetID string `validate:"required_if=SinkBackend sheets"`
	SheetName     string `validate:"required"`
	CalendarID    string
	SQLitePath    string `validate:"required_if=SinkBackend sqlite"`

	RawArchiveBucket string
	EnablePublish    bool
	UseSecretManager bool

	SentryDSN   string
	Environment string
	LogLevel    string
	HTTPTimeout time.Duration `validate:"gt=0"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() *Config {
	return LoadConfigFrom(os.Getenv)
}

// LoadConfigFrom reads configuration through lookup, which returns "" for
// unset keys. The CLI passes a lookup that layers flags over the environment.
func LoadConfigFrom(lookup func(string) string) *Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return def
	}

	timeout := DefaultHTTPTimeout
	if raw := get("HTTP_TIMEOUT", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		} else if secs, err := strconv.Atoi(raw); err == nil {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return &Config{
		ProjectID: get("GOOGLE_CLOUD_PROJECT", shared.ProjectID),
		UserID:    get("HEALTHSYNC_USER_ID", ""),

		FitbitClientID:     get("FITBIT_CLIENT_ID", ""),
		FitbitClientSecret: get("FITBIT_CLIENT_SECRET", ""),
		FitbitRedirectURL:  get("FITBIT_REDIRECT_URL", ""),
		FitbitAPIBaseURL:   get("FITBIT_API_BASE_URL", fitbit.DefaultBaseURL),

		GoogleClientID:     get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  get("GOOGLE_REDIRECT_URL", ""),
		GoogleAuthMode:     strings.ToLower(get("GOOGLE_AUTH_MODE", "user")),

		SinkBackend:   strings.ToLower(get("SINK_BACKEND", SinkSheets)),
		SpreadsheetID: get("SPREADSHEET_ID", ""),
		SheetName:     get("SHEET_NAME", shared.DefaultSheetName),
		CalendarID:    get("CALENDAR_ID", shared.DefaultCalendarID),
		SQLitePath:    get("SQLITE_PATH", ""),

		RawArchiveBucket: get("RAW_ARCHIVE_BUCKET", ""),
		EnablePublish:    get("ENABLE_PUBLISH", "") == "true",
		UseSecretManager: get("USE_SECRET_MANAGER", "") == "true",

		SentryDSN:   get("SENTRY_DSN", ""),
		Environment: get("ENVIRONMENT", "development"),
		LogLevel:    get("LOG_LEVEL", "info"),
		HTTPTimeout: timeout,
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Environment == "" || c.Environment == "development" || c.Environment == "dev"
}
