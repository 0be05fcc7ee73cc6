package shared

const (
	ProjectID = "healthsync-project" // Can be overridden by GOOGLE_CLOUD_PROJECT

	TopicDailyMetricsRecorded = "topic-daily-metrics-recorded"

	CollectionUsers        = "users"
	CollectionDailyMetrics = "daily_metrics"
	CollectionSyncRuns     = "sync_runs"
	CollectionOAuthStates  = "oauth_states"

	SecretFitbitClientSecret = "fitbit-client-secret"
	SecretGoogleClientSecret = "google-client-secret"

	DefaultSheetName  = "Fitbit Data"
	DefaultCalendarID = "primary"
)
