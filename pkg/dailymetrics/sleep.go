package dailymetrics

import (
	"fmt"
	"math"
	"time"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	"github.com/fitglue/healthsync/pkg/fitbit"
)

// ClockLayout is the 12-hour wall clock used for bed and wake times.
const ClockLayout = "3:04 PM"

// Fitbit reports sleep start/end as local wall clock without an offset.
var sleepTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

func applySleep(rec *Record, s *fitbit.SleepResponse) {
	// No session leaves every sleep field at its zero value, even when the
	// summary carries stage totals.
	session := SelectSession(s.Sleep)
	if session == nil {
		return
	}
	rec.BedTime = ClockTime(session.StartTime)
	rec.WakeTime = ClockTime(session.EndTime)
	rec.TotalSleepHours = SleepHours(session.MinutesAsleep)
	rec.TotalWakeMinutes = WakeMinutes(s, session)

	if s.Summary != nil && s.Summary.Stages != nil {
		rec.LightSleepMinutes = intOrZero(s.Summary.Stages.Light)
		rec.DeepSleepMinutes = intOrZero(s.Summary.Stages.Deep)
		rec.RemSleepMinutes = intOrZero(s.Summary.Stages.REM)
	}
}

// SelectSession picks the first session flagged isMainSleep, otherwise the
// one with the greatest timeInBed. Ties keep the earlier session. Returns
// nil for an empty list.
func SelectSession(sessions []fitbit.SleepSession) *fitbit.SleepSession {
	if len(sessions) == 0 {
		return nil
	}
	for i := range sessions {
		if sessions[i].IsMainSleep {
			return &sessions[i]
		}
	}
	best := 0
	for i := 1; i < len(sessions); i++ {
		if intOrZero(sessions[i].TimeInBed) > intOrZero(sessions[best].TimeInBed) {
			best = i
		}
	}
	return &sessions[best]
}

// ClockTime formats a sleep timestamp as "11:30 PM" in America/Chicago.
// Unparseable or missing input yields nil.
func ClockTime(ts *string) *string {
	if ts == nil || *ts == "" {
		return nil
	}
	for _, layout := range sleepTimeLayouts {
		t, err := time.ParseInLocation(layout, *ts, healthdate.Zone())
		if err != nil {
			continue
		}
		out := t.In(healthdate.Zone()).Format(ClockLayout)
		return &out
	}
	return nil
}

// SleepHours converts minutesAsleep to hours rounded to two decimals, as
// "6.50". Absent or zero minutes yield nil.
func SleepHours(minutesAsleep *int) *string {
	if minutesAsleep == nil || *minutesAsleep == 0 {
		return nil
	}
	hours := math.Round(float64(*minutesAsleep)/60*100) / 100
	out := fmt.Sprintf("%.2f", hours)
	return &out
}

// WakeMinutes is 0 without a session. Otherwise it prefers
// summary.stages.wake, then the count of awake samples in the session's
// minuteData.
func WakeMinutes(s *fitbit.SleepResponse, session *fitbit.SleepSession) int {
	if session == nil {
		return 0
	}
	if s.Summary != nil && s.Summary.Stages != nil && s.Summary.Stages.Wake != nil {
		return *s.Summary.Stages.Wake
	}
	awake := 0
	for _, m := range session.MinuteData {
		if m.Value.IsAwake() {
			awake++
		}
	}
	return awake
}
