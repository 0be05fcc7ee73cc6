// Package dailymetrics turns the raw Fitbit payloads for one date into a
// flat, fixed-shape record.
package dailymetrics

import (
	"fmt"
	"strconv"
)

// Record is one normalized day. Pointer fields are nil when the source data
// lacked them. TotalWakeMinutes, the sleep stage minutes and the activity
// minute buckets default to zero instead.
type Record struct {
	Date                 string   `json:"date" yaml:"date"`
	Steps                *int     `json:"steps" yaml:"steps"`
	RestingHeartRate     *int     `json:"restingHeartRate" yaml:"restingHeartRate"`
	BedTime              *string  `json:"bedTime" yaml:"bedTime"`
	WakeTime             *string  `json:"wakeTime" yaml:"wakeTime"`
	TotalSleepHours      *string  `json:"totalSleepHours" yaml:"totalSleepHours"`
	TotalWakeMinutes     int      `json:"totalWakeMinutes" yaml:"totalWakeMinutes"`
	LightSleepMinutes    int      `json:"lightSleepMinutes" yaml:"lightSleepMinutes"`
	DeepSleepMinutes     int      `json:"deepSleepMinutes" yaml:"deepSleepMinutes"`
	RemSleepMinutes      int      `json:"remSleepMinutes" yaml:"remSleepMinutes"`
	BreathingRate        *float64 `json:"breathingRate" yaml:"breathingRate"`
	HeartRateVariability *float64 `json:"heartRateVariability" yaml:"heartRateVariability"`
	SkinTemperatureDelta *float64 `json:"skinTemperatureDelta" yaml:"skinTemperatureDelta"`
	SpO2Average          *float64 `json:"spo2Average" yaml:"spo2Average"`
	VeryActiveMinutes    int      `json:"veryActiveMinutes" yaml:"veryActiveMinutes"`
	FairlyActiveMinutes  int      `json:"fairlyActiveMinutes" yaml:"fairlyActiveMinutes"`
	LightlyActiveMinutes int      `json:"lightlyActiveMinutes" yaml:"lightlyActiveMinutes"`
	SedentaryMinutes     int      `json:"sedentaryMinutes" yaml:"sedentaryMinutes"`
}

// Headers is the column order used by every tabular sink.
var Headers = []string{
	"Date",
	"Steps",
	"Resting HR",
	"Bed Time",
	"Wake Time",
	"Total Sleep Time",
	"Wake Time",
	"Light Sleep",
	"Deep Sleep",
	"REM Sleep",
	"Breathing Rate",
	"Heart Rate Variability",
	"Skin Temperature",
	"Oxygen Saturation",
	"Very Active Minutes",
	"Fairly Active Minutes",
	"Lightly Active Minutes",
	"Sedentary Minutes",
}

// Row renders the record in Headers order. Absent values become "".
func (r *Record) Row() []string {
	return []string{
		r.Date,
		intOrEmpty(r.Steps),
		intOrEmpty(r.RestingHeartRate),
		stringOrEmpty(r.BedTime),
		stringOrEmpty(r.WakeTime),
		stringOrEmpty(r.TotalSleepHours),
		strconv.Itoa(r.TotalWakeMinutes),
		strconv.Itoa(r.LightSleepMinutes),
		strconv.Itoa(r.DeepSleepMinutes),
		strconv.Itoa(r.RemSleepMinutes),
		floatOrEmpty(r.BreathingRate),
		floatOrEmpty(r.HeartRateVariability),
		floatOrEmpty(r.SkinTemperatureDelta),
		floatOrEmpty(r.SpO2Average),
		strconv.Itoa(r.VeryActiveMinutes),
		strconv.Itoa(r.FairlyActiveMinutes),
		strconv.Itoa(r.LightlyActiveMinutes),
		strconv.Itoa(r.SedentaryMinutes),
	}
}

// Values is Row typed for APIs that take []interface{} cells. Numbers stay
// numeric so spreadsheets can chart them.
func (r *Record) Values() []interface{} {
	return []interface{}{
		r.Date,
		intCell(r.Steps),
		intCell(r.RestingHeartRate),
		stringCell(r.BedTime),
		stringCell(r.WakeTime),
		stringCell(r.TotalSleepHours),
		r.TotalWakeMinutes,
		r.LightSleepMinutes,
		r.DeepSleepMinutes,
		r.RemSleepMinutes,
		floatCell(r.BreathingRate),
		floatCell(r.HeartRateVariability),
		floatCell(r.SkinTemperatureDelta),
		floatCell(r.SpO2Average),
		r.VeryActiveMinutes,
		r.FairlyActiveMinutes,
		r.LightlyActiveMinutes,
		r.SedentaryMinutes,
	}
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatOrEmpty(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func stringCell(v *string) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func (r *Record) String() string {
	return fmt.Sprintf("Record{%s steps=%s rhr=%s sleep=%s}", r.Date, intOrEmpty(r.Steps), intOrEmpty(r.RestingHeartRate), stringOrEmpty(r.TotalSleepHours))
}
