// Package healthdate handles the calendar-day arithmetic shared by the daily
// pipeline and the backfill driver. All days are America/Chicago civil dates.
package healthdate

import (
	"fmt"
	"time"
	_ "time/tzdata" // Cloud Functions images do not ship a zoneinfo database
)

// Layout is the ISO date format used in Fitbit URLs and the output row.
const Layout = "2006-01-02"

// ZoneName is the timezone every health date is interpreted in.
const ZoneName = "America/Chicago"

// Offsets from the target date. Fitbit files a night's sleep under the
// following morning, so sleep lags the other metrics by one day less.
const (
	HealthOffsetDays = -2
	SleepOffsetDays  = -1
)

var zone = mustLoad(ZoneName)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("healthdate: load %s: %v", name, err))
	}
	return loc
}

// Zone returns the America/Chicago location.
func Zone() *time.Location {
	return zone
}

// Parse reads an ISO yyyy-mm-dd date as midnight in Zone.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected yyyy-mm-dd): %w", s, err)
	}
	return t, nil
}

// Format renders t as an ISO date in Zone.
func Format(t time.Time) string {
	return t.In(zone).Format(Layout)
}

// Day truncates t to midnight of its calendar day in Zone.
func Day(t time.Time) time.Time {
	local := t.In(zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
}

// Today returns the current calendar day in Zone.
func Today(now time.Time) time.Time {
	return Day(now)
}

// AddDays shifts a calendar day. Uses civil arithmetic so DST changes
// never move the result off midnight.
func AddDays(day time.Time, n int) time.Time {
	local := day.In(zone)
	return time.Date(local.Year(), local.Month(), local.Day()+n, 0, 0, 0, 0, zone)
}

// HealthDate is the day whose activity and vitals are reported for target.
func HealthDate(target time.Time) time.Time {
	return AddDays(target, HealthOffsetDays)
}

// SleepDate is the day Fitbit files the relevant night's sleep under.
func SleepDate(target time.Time) time.Time {
	return AddDays(target, SleepOffsetDays)
}

// Range returns every calendar day in [start, end], ascending.
func Range(start, end time.Time) ([]time.Time, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("start %s is after end %s", Format(start), Format(end))
	}
	var days []time.Time
	for d := start; !d.After(end); d = AddDays(d, 1) {
		days = append(days, d)
	}
	return days, nil
}
