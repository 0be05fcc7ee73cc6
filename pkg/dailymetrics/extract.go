package dailymetrics

import (
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	"github.com/fitglue/healthsync/pkg/fitbit"
)

// Extract builds the record for raw.HealthDate. It never fails: an absent
// or undecodable payload leaves its fields at their defaults.
func Extract(raw *fitbit.RawEndpointResult) *Record {
	rec := &Record{Date: healthdate.Format(raw.HealthDate)}

	var activities fitbit.ActivitiesResponse
	if raw.Decode(fitbit.EndpointActivities, &activities) {
		rec.Steps = Steps(&activities)
		rec.VeryActiveMinutes = VeryActiveMinutes(&activities)
		rec.FairlyActiveMinutes = FairlyActiveMinutes(&activities)
		rec.LightlyActiveMinutes = LightlyActiveMinutes(&activities)
		rec.SedentaryMinutes = SedentaryMinutes(&activities)
	}

	var heart fitbit.HeartRateResponse
	if raw.Decode(fitbit.EndpointHeartRate, &heart) {
		rec.RestingHeartRate = RestingHeartRate(&heart)
	}

	var br fitbit.BreathingRateResponse
	if raw.Decode(fitbit.EndpointBreathingRate, &br) {
		rec.BreathingRate = BreathingRate(&br)
	}

	var hrv fitbit.HRVResponse
	if raw.Decode(fitbit.EndpointHRV, &hrv) {
		rec.HeartRateVariability = HeartRateVariability(&hrv)
	}

	var temp fitbit.SkinTemperatureResponse
	if raw.Decode(fitbit.EndpointTemperature, &temp) {
		rec.SkinTemperatureDelta = SkinTemperatureDelta(&temp)
	}

	var spo2 fitbit.SpO2Response
	if raw.Decode(fitbit.EndpointSpO2, &spo2) {
		rec.SpO2Average = SpO2Average(&spo2)
	}

	var sleep fitbit.SleepResponse
	if raw.Decode(fitbit.EndpointSleep, &sleep) {
		applySleep(rec, &sleep)
	}

	return rec
}

// Steps reads activities.summary.steps.
func Steps(a *fitbit.ActivitiesResponse) *int {
	if a.Summary == nil {
		return nil
	}
	return a.Summary.Steps
}

// VeryActiveMinutes reads activities.summary.veryActiveMinutes, default 0.
func VeryActiveMinutes(a *fitbit.ActivitiesResponse) int {
	if a.Summary == nil {
		return 0
	}
	return intOrZero(a.Summary.VeryActiveMinutes)
}

// FairlyActiveMinutes reads activities.summary.fairlyActiveMinutes, default 0.
func FairlyActiveMinutes(a *fitbit.ActivitiesResponse) int {
	if a.Summary == nil {
		return 0
	}
	return intOrZero(a.Summary.FairlyActiveMinutes)
}

// LightlyActiveMinutes reads activities.summary.lightlyActiveMinutes, default 0.
func LightlyActiveMinutes(a *fitbit.ActivitiesResponse) int {
	if a.Summary == nil {
		return 0
	}
	return intOrZero(a.Summary.LightlyActiveMinutes)
}

// SedentaryMinutes reads activities.summary.sedentaryMinutes, default 0.
func SedentaryMinutes(a *fitbit.ActivitiesResponse) int {
	if a.Summary == nil {
		return 0
	}
	return intOrZero(a.Summary.SedentaryMinutes)
}

// RestingHeartRate reads ["activities-heart"][0].value.restingHeartRate.
func RestingHeartRate(h *fitbit.HeartRateResponse) *int {
	if len(h.ActivitiesHeart) == 0 || h.ActivitiesHeart[0].Value == nil {
		return nil
	}
	return h.ActivitiesHeart[0].Value.RestingHeartRate
}

// BreathingRate reads br[0].value.breathingRate.
func BreathingRate(b *fitbit.BreathingRateResponse) *float64 {
	if len(b.BR) == 0 || b.BR[0].Value == nil {
		return nil
	}
	return b.BR[0].Value.BreathingRate
}

// HeartRateVariability reads hrv[0].value.dailyRmssd.
func HeartRateVariability(h *fitbit.HRVResponse) *float64 {
	if len(h.HRV) == 0 || h.HRV[0].Value == nil {
		return nil
	}
	return h.HRV[0].Value.DailyRmssd
}

// SkinTemperatureDelta reads tempSkin[0].value.nightlyRelative.
func SkinTemperatureDelta(t *fitbit.SkinTemperatureResponse) *float64 {
	if len(t.TempSkin) == 0 || t.TempSkin[0].Value == nil {
		return nil
	}
	return t.TempSkin[0].Value.NightlyRelative
}

// SpO2Average reads value.avg.
func SpO2Average(s *fitbit.SpO2Response) *float64 {
	if s.Value == nil {
		return nil
	}
	return s.Value.Avg
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
