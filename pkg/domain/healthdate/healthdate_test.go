package healthdate

import (
	"testing"
	"time"
)

func TestOffsets(t *testing.T) {
	target, err := Parse("2024-01-12")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := Format(HealthDate(target)); got != "2024-01-10" {
		t.Errorf("Expected health date 2024-01-10, got %s", got)
	}
	if got := Format(SleepDate(target)); got != "2024-01-11" {
		t.Errorf("Expected sleep date 2024-01-11, got %s", got)
	}
}

func TestOffsets_MonthAndYearBoundary(t *testing.T) {
	target, _ := Parse("2024-01-01")

	if got := Format(HealthDate(target)); got != "2023-12-30" {
		t.Errorf("Expected 2023-12-30, got %s", got)
	}
	if got := Format(SleepDate(target)); got != "2023-12-31" {
		t.Errorf("Expected 2023-12-31, got %s", got)
	}
}

func TestAddDays_AcrossDST(t *testing.T) {
	// 2024-03-10 is the spring-forward day in Chicago.
	day, _ := Parse("2024-03-11")
	prev := AddDays(day, -1)

	if Format(prev) != "2024-03-10" {
		t.Errorf("Expected 2024-03-10, got %s", Format(prev))
	}
	if prev.Hour() != 0 || prev.Minute() != 0 {
		t.Errorf("Expected midnight, got %s", prev)
	}
}

func TestToday_UsesChicagoCalendar(t *testing.T) {
	// 03:00 UTC on the 12th is still the evening of the 11th in Chicago.
	now := time.Date(2024, 1, 12, 3, 0, 0, 0, time.UTC)

	if got := Format(Today(now)); got != "2024-01-11" {
		t.Errorf("Expected 2024-01-11, got %s", got)
	}
}

func TestRange(t *testing.T) {
	start, _ := Parse("2024-02-28")
	end, _ := Parse("2024-03-01")

	days, err := Range(start, end)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}

	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("Expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if Format(d) != want[i] {
			t.Errorf("Day %d: expected %s, got %s", i, want[i], Format(d))
		}
	}
}

func TestRange_SingleDay(t *testing.T) {
	day, _ := Parse("2024-05-05")
	days, err := Range(day, day)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(days) != 1 {
		t.Errorf("Expected 1 day, got %d", len(days))
	}
}

func TestRange_Reversed(t *testing.T) {
	start, _ := Parse("2024-05-05")
	end, _ := Parse("2024-05-01")

	if _, err := Range(start, end); err == nil {
		t.Error("Expected error for reversed range")
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024/01/12", "2024-13-01", "yesterday"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
}
