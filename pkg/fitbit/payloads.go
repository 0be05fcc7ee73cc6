package fitbit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload types cover only the fields the daily record reads. Every field is
// a pointer (or slice) so a missing key stays distinguishable from zero.

// ActivitiesResponse is returned by /activities/date/{date}.json.
//
// Sample:
//
//	{
//	    "activities": [],
//	    "summary": {
//	        "steps": 8000,
//	        "veryActiveMinutes": 20,
//	        "fairlyActiveMinutes": 11,
//	        "lightlyActiveMinutes": 184,
//	        "sedentaryMinutes": 702
//	    }
//	}
type ActivitiesResponse struct {
	Summary *ActivitySummary `json:"summary"`
}

type ActivitySummary struct {
	Steps                *int `json:"steps"`
	VeryActiveMinutes    *int `json:"veryActiveMinutes"`
	FairlyActiveMinutes  *int `json:"fairlyActiveMinutes"`
	LightlyActiveMinutes *int `json:"lightlyActiveMinutes"`
	SedentaryMinutes     *int `json:"sedentaryMinutes"`
}

// HeartRateResponse is returned by /activities/heart/date/{date}/1d.json.
//
// Sample:
//
//	{
//	    "activities-heart": [
//	        {
//	            "dateTime": "2024-01-10",
//	            "value": {"restingHeartRate": 58, "heartRateZones": []}
//	        }
//	    ]
//	}
type HeartRateResponse struct {
	ActivitiesHeart []HeartRateDay `json:"activities-heart"`
}

type HeartRateDay struct {
	DateTime string          `json:"dateTime"`
	Value    *HeartRateValue `json:"value"`
}

type HeartRateValue struct {
	RestingHeartRate *int `json:"restingHeartRate"`
}

// HRVResponse is returned by /hrv/date/{date}.json.
//
// Sample:
//
//	{"hrv": [{"dateTime": "2024-01-10", "value": {"dailyRmssd": 34.9, "deepRmssd": 31.5}}]}
type HRVResponse struct {
	HRV []struct {
		DateTime string `json:"dateTime"`
		Value    *struct {
			DailyRmssd *float64 `json:"dailyRmssd"`
		} `json:"value"`
	} `json:"hrv"`
}

// SkinTemperatureResponse is returned by /temp/skin/date/{date}.json.
//
// Sample:
//
//	{"tempSkin": [{"dateTime": "2024-01-10", "value": {"nightlyRelative": -0.3}, "logType": "dedicated_temp_sensor"}]}
type SkinTemperatureResponse struct {
	TempSkin []struct {
		DateTime string `json:"dateTime"`
		Value    *struct {
			NightlyRelative *float64 `json:"nightlyRelative"`
		} `json:"value"`
	} `json:"tempSkin"`
}

// SpO2Response is returned by /spo2/date/{date}.json. Days without a reading
// come back as an empty object or array.
//
// Sample:
//
//	{"dateTime": "2024-01-10", "value": {"avg": 95.7, "min": 93.1, "max": 98.2}}
type SpO2Response struct {
	DateTime string `json:"dateTime"`
	Value    *struct {
		Avg *float64 `json:"avg"`
	} `json:"value"`
}

// BreathingRateResponse is returned by /br/date/{date}.json.
//
// Sample:
//
//	{"br": [{"dateTime": "2024-01-10", "value": {"breathingRate": 15.4}}]}
type BreathingRateResponse struct {
	BR []struct {
		DateTime string `json:"dateTime"`
		Value    *struct {
			BreathingRate *float64 `json:"breathingRate"`
		} `json:"value"`
	} `json:"br"`
}

// SleepResponse is returned by /sleep/date/{date}.json.
//
// Sample:
//
//	{
//	    "sleep": [
//	        {
//	            "isMainSleep": true,
//	            "startTime": "2024-01-10T23:30:00.000",
//	            "endTime": "2024-01-11T06:30:00.000",
//	            "minutesAsleep": 390,
//	            "timeInBed": 420,
//	            "minuteData": [{"dateTime": "23:30:00", "value": "3"}]
//	        }
//	    ],
//	    "summary": {
//	        "totalMinutesAsleep": 390,
//	        "totalSleepRecords": 1,
//	        "stages": {"deep": 70, "light": 210, "rem": 80, "wake": 30}
//	    }
//	}
type SleepResponse struct {
	Sleep   []SleepSession `json:"sleep"`
	Summary *SleepSummary  `json:"summary"`
}

type SleepSession struct {
	IsMainSleep   bool          `json:"isMainSleep"`
	StartTime     *string       `json:"startTime"`
	EndTime       *string       `json:"endTime"`
	MinutesAsleep *int          `json:"minutesAsleep"`
	TimeInBed     *int          `json:"timeInBed"`
	MinuteData    []SleepMinute `json:"minuteData"`
}

type SleepMinute struct {
	DateTime string    `json:"dateTime"`
	Value    StageCode `json:"value"`
}

type SleepSummary struct {
	TotalMinutesAsleep *int         `json:"totalMinutesAsleep"`
	TotalSleepRecords  *int         `json:"totalSleepRecords"`
	Stages             *SleepStages `json:"stages"`
}

type SleepStages struct {
	Deep  *int `json:"deep"`
	Light *int `json:"light"`
	REM   *int `json:"rem"`
	Wake  *int `json:"wake"`
}

// StageCode is a per-minute sleep classification. The classic sleep log
// encodes 1 asleep, 2 restless, 3 awake; older payloads send it as a number.
type StageCode string

func (c *StageCode) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*c = StageCode(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stage code: %w", err)
	}
	*c = StageCode(n.String())
	return nil
}

// IsAwake reports whether the minute counts toward wake time.
func (c StageCode) IsAwake() bool {
	return c == "2" || c == "3"
}
