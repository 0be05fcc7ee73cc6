// Package calendar creates all-day summary events in Google Calendar.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
)

// Sink inserts one event per call. It never looks for an existing event on
// the same day.
type Sink struct {
	Service    *calendar.Service
	CalendarID string
	Logger     *slog.Logger
}

func New(ctx context.Context, client *http.Client, calendarID string, logger *slog.Logger, opts ...option.ClientOption) (*Sink, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{Service: svc, CalendarID: calendarID, Logger: logger.With("component", "calendar")}, nil
}

// CreateAllDayAnnotation inserts a transparent all-day event on date. The
// end date is exclusive, so it is the following day.
func (s *Sink) CreateAllDayAnnotation(ctx context.Context, date time.Time, title, description string) error {
	ev := AllDayEvent(date, title, description)

	created, err := s.Service.Events.Insert(s.CalendarID, ev).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert event on %s: %w", ev.Start.Date, err)
	}
	s.Logger.Info("Created all-day event", "date", ev.Start.Date, "event_id", created.Id)
	return nil
}

// AllDayEvent builds a transparent event covering date alone (end is the
// following day, exclusive).
func AllDayEvent(date time.Time, title, description string) *calendar.Event {
	return &calendar.Event{
		Summary:      title,
		Description:  description,
		Start:        &calendar.EventDateTime{Date: healthdate.Format(date)},
		End:          &calendar.EventDateTime{Date: healthdate.Format(healthdate.AddDays(date, 1))},
		Transparency: "transparent",
	}
}
