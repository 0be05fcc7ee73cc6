package dailymetrics

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	"github.com/fitglue/healthsync/pkg/fitbit"
)

func rawFor(t *testing.T, target string, payloads map[fitbit.EndpointKey]string) *fitbit.RawEndpointResult {
	t.Helper()
	day, err := healthdate.Parse(target)
	require.NoError(t, err)
	raw := &fitbit.RawEndpointResult{
		TargetDate: day,
		HealthDate: healthdate.HealthDate(day),
		SleepDate:  healthdate.SleepDate(day),
		Payloads:   make(map[fitbit.EndpointKey]json.RawMessage),
		Errors:     make(map[fitbit.EndpointKey]error),
	}
	for k, v := range payloads {
		raw.Payloads[k] = json.RawMessage(v)
	}
	return raw
}

func TestExtract_EndToEndScenario(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointActivities: `{"summary":{"steps":8000,"veryActiveMinutes":20}}`,
		fitbit.EndpointHeartRate:  `{"activities-heart":[{"value":{"restingHeartRate":58}}]}`,
		fitbit.EndpointSleep:      `{"sleep":[{"isMainSleep":true,"startTime":"2024-01-10T23:30:00","endTime":"2024-01-11T06:30:00","minutesAsleep":390}]}`,
	})

	rec := Extract(raw)

	assert.Equal(t, "2024-01-10", rec.Date)
	require.NotNil(t, rec.Steps)
	assert.Equal(t, 8000, *rec.Steps)
	require.NotNil(t, rec.RestingHeartRate)
	assert.Equal(t, 58, *rec.RestingHeartRate)
	require.NotNil(t, rec.BedTime)
	assert.Equal(t, "11:30 PM", *rec.BedTime)
	require.NotNil(t, rec.WakeTime)
	assert.Equal(t, "6:30 AM", *rec.WakeTime)
	require.NotNil(t, rec.TotalSleepHours)
	assert.Equal(t, "6.50", *rec.TotalSleepHours)
	assert.Equal(t, 20, rec.VeryActiveMinutes)
	assert.Equal(t, 0, rec.FairlyActiveMinutes)
	assert.Equal(t, 0, rec.LightlyActiveMinutes)
	assert.Equal(t, 0, rec.SedentaryMinutes)
	assert.Nil(t, rec.BreathingRate)
	assert.Nil(t, rec.HeartRateVariability)
	assert.Nil(t, rec.SkinTemperatureDelta)
	assert.Nil(t, rec.SpO2Average)
}

func TestExtract_AllAbsent(t *testing.T) {
	rec := Extract(rawFor(t, "2024-01-12", nil))

	assert.Equal(t, "2024-01-10", rec.Date)
	assert.Nil(t, rec.Steps)
	assert.Nil(t, rec.RestingHeartRate)
	assert.Nil(t, rec.BedTime)
	assert.Nil(t, rec.WakeTime)
	assert.Nil(t, rec.TotalSleepHours)
	assert.Zero(t, rec.TotalWakeMinutes)
	assert.Zero(t, rec.LightSleepMinutes)
	assert.Zero(t, rec.VeryActiveMinutes)
	assert.Zero(t, rec.SedentaryMinutes)
}

func TestExtract_Vitals(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointBreathingRate: `{"br":[{"dateTime":"2024-01-10","value":{"breathingRate":15.4}}]}`,
		fitbit.EndpointHRV:           `{"hrv":[{"dateTime":"2024-01-10","value":{"dailyRmssd":34.9,"deepRmssd":31.5}}]}`,
		fitbit.EndpointTemperature:   `{"tempSkin":[{"dateTime":"2024-01-10","value":{"nightlyRelative":-0.3}}]}`,
		fitbit.EndpointSpO2:          `{"dateTime":"2024-01-10","value":{"avg":95.7,"min":93.1,"max":98.2}}`,
	})

	rec := Extract(raw)

	require.NotNil(t, rec.BreathingRate)
	assert.Equal(t, 15.4, *rec.BreathingRate)
	require.NotNil(t, rec.HeartRateVariability)
	assert.Equal(t, 34.9, *rec.HeartRateVariability)
	require.NotNil(t, rec.SkinTemperatureDelta)
	assert.Equal(t, -0.3, *rec.SkinTemperatureDelta)
	require.NotNil(t, rec.SpO2Average)
	assert.Equal(t, 95.7, *rec.SpO2Average)
}

func TestExtract_EmptyAndMalformedVitals(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointBreathingRate: `{"br":[]}`,
		fitbit.EndpointHRV:           `{"hrv":[{"value":null}]}`,
		fitbit.EndpointTemperature:   `{"tempSkin":[{"value":{}}]}`,
		fitbit.EndpointSpO2:          `[]`,
		fitbit.EndpointHeartRate:     `{"activities-heart":"unexpected"}`,
	})

	rec := Extract(raw)

	assert.Nil(t, rec.BreathingRate)
	assert.Nil(t, rec.HeartRateVariability)
	assert.Nil(t, rec.SkinTemperatureDelta)
	assert.Nil(t, rec.SpO2Average)
	assert.Nil(t, rec.RestingHeartRate)
}

func TestExtract_ZeroVitalIsKept(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointTemperature: `{"tempSkin":[{"value":{"nightlyRelative":0}}]}`,
		fitbit.EndpointActivities:  `{"summary":{"steps":0}}`,
	})

	rec := Extract(raw)

	require.NotNil(t, rec.SkinTemperatureDelta)
	assert.Equal(t, 0.0, *rec.SkinTemperatureDelta)
	require.NotNil(t, rec.Steps)
	assert.Equal(t, 0, *rec.Steps)
}

func TestExtract_Idempotent(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointActivities: `{"summary":{"steps":1234,"sedentaryMinutes":600}}`,
		fitbit.EndpointSleep:      `{"sleep":[{"startTime":"2024-01-10T22:00:00.000","endTime":"2024-01-11T05:00:00.000","minutesAsleep":400,"timeInBed":420}],"summary":{"stages":{"deep":60,"light":200,"rem":90,"wake":50}}}`,
	})

	first := Extract(raw)
	second := Extract(raw)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical records, got %v and %v", first, second)
	}
}

func TestExtract_SleepStages(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointSleep: `{"sleep":[{"isMainSleep":true,"minutesAsleep":400}],"summary":{"stages":{"deep":60,"light":200,"rem":90,"wake":50}}}`,
	})

	rec := Extract(raw)

	assert.Equal(t, 200, rec.LightSleepMinutes)
	assert.Equal(t, 60, rec.DeepSleepMinutes)
	assert.Equal(t, 90, rec.RemSleepMinutes)
	assert.Equal(t, 50, rec.TotalWakeMinutes)
	assert.Equal(t, "6.67", *rec.TotalSleepHours)
}

func TestExtract_SummaryWithoutSessions(t *testing.T) {
	raw := rawFor(t, "2024-01-12", map[fitbit.EndpointKey]string{
		fitbit.EndpointSleep: `{"sleep":[],"summary":{"stages":{"deep":70,"light":210,"rem":80,"wake":30}}}`,
	})

	rec := Extract(raw)

	assert.Nil(t, rec.BedTime)
	assert.Nil(t, rec.WakeTime)
	assert.Nil(t, rec.TotalSleepHours)
	assert.Zero(t, rec.TotalWakeMinutes)
	assert.Zero(t, rec.LightSleepMinutes)
	assert.Zero(t, rec.DeepSleepMinutes)
	assert.Zero(t, rec.RemSleepMinutes)
}

func TestRow_Rendering(t *testing.T) {
	steps, hours := 8000, "6.50"
	rec := &Record{Date: "2024-01-10", Steps: &steps, TotalSleepHours: &hours, VeryActiveMinutes: 20}

	row := rec.Row()

	require.Len(t, row, len(Headers))
	assert.Equal(t, "2024-01-10", row[0])
	assert.Equal(t, "8000", row[1])
	assert.Equal(t, "", row[2])
	assert.Equal(t, "6.50", row[5])
	assert.Equal(t, "0", row[6])
	assert.Equal(t, "20", row[14])
	assert.Len(t, rec.Values(), len(Headers))
}
