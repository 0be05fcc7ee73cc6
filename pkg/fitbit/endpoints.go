package fitbit

import (
	"strings"
	"time"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
)

// EndpointKey names one metric family returned by the Fitbit Web API.
type EndpointKey string

const (
	EndpointActivities    EndpointKey = "activities"
	EndpointHeartRate     EndpointKey = "heartRate"
	EndpointHRV           EndpointKey = "hrv"
	EndpointTemperature   EndpointKey = "temperature"
	EndpointSpO2          EndpointKey = "spo2"
	EndpointBreathingRate EndpointKey = "breathingRate"
	EndpointSleep         EndpointKey = "sleep"
)

// FetchTarget is one endpoint path, parameterized by an ISO date.
// Paths are relative to /1/user/-.
type FetchTarget struct {
	Key          EndpointKey
	PathTemplate string
}

// Path renders the template for the given calendar day.
func (t FetchTarget) Path(day time.Time) string {
	return strings.ReplaceAll(t.PathTemplate, "{date}", healthdate.Format(day))
}

var dailyTargets = [...]FetchTarget{
	{Key: EndpointActivities, PathTemplate: "/activities/date/{date}.json"},
	{Key: EndpointHeartRate, PathTemplate: "/activities/heart/date/{date}/1d.json"},
	{Key: EndpointHRV, PathTemplate: "/hrv/date/{date}.json"},
	{Key: EndpointTemperature, PathTemplate: "/temp/skin/date/{date}.json"},
	{Key: EndpointSpO2, PathTemplate: "/spo2/date/{date}.json"},
	{Key: EndpointBreathingRate, PathTemplate: "/br/date/{date}.json"},
}

// SleepTarget is fetched for the day after the health date.
var SleepTarget = FetchTarget{Key: EndpointSleep, PathTemplate: "/sleep/date/{date}.json"}

// DailyTargets returns the six non-sleep targets in fetch order.
func DailyTargets() []FetchTarget {
	out := make([]FetchTarget, len(dailyTargets))
	copy(out, dailyTargets[:])
	return out
}

// Scopes are the OAuth scopes needed to read every target.
var Scopes = []string{
	"activity",
	"sleep",
	"heartrate",
	"temperature",
	"oxygen_saturation",
	"cardio_fitness",
	"respiratory_rate",
}
