package pubsub

// CloudEvent type and source emitted after a day is written.
const (
	EventTypeDailyMetricsRecorded = "com.healthsync.dailymetrics.recorded"
	SourcePipeline                = "/healthsync/pipeline"
)
