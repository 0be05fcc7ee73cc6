package pipeline

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
)

const missingValue = "n/a"

var numberPrinter = message.NewPrinter(language.AmericanEnglish)

// Annotation builds the calendar title and HTML description for a record.
func Annotation(rec *dailymetrics.Record, day time.Time) (title, description string) {
	title = "Health Summary for " + day.Format("01/02")

	steps := missingValue
	if rec.Steps != nil {
		steps = numberPrinter.Sprintf("%d", *rec.Steps)
	}

	lines := []string{
		orMissing(rec.TotalSleepHours) + " Hours Slept",
		steps + " Steps",
		orMissing(rec.BedTime) + " Bed Time",
		orMissing(rec.WakeTime) + " Wake-up Time",
	}
	return title, strings.Join(lines, "<br/>")
}

func orMissing(s *string) string {
	if s == nil {
		return missingValue
	}
	return *s
}
