package calendar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
)

func TestAllDayEvent(t *testing.T) {
	day, _ := healthdate.Parse("2024-12-31")

	ev := AllDayEvent(day, "Health Summary for 12/31", "n/a Hours Slept")

	if ev.Start.Date != "2024-12-31" {
		t.Errorf("Expected start 2024-12-31, got %s", ev.Start.Date)
	}
	if ev.End.Date != "2025-01-01" {
		t.Errorf("Expected exclusive end 2025-01-01, got %s", ev.End.Date)
	}
	if ev.Start.DateTime != "" {
		t.Error("Expected an all-day event without a start time")
	}
}

func TestSink_CreateAllDayAnnotation(t *testing.T) {
	var gotPath string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"evt-1"}`)
	}))
	defer srv.Close()

	sink, err := New(context.Background(), srv.Client(), "", nil, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	day, _ := healthdate.Parse("2024-01-10")

	if err := sink.CreateAllDayAnnotation(context.Background(), day, "Health Summary for 01/10", "6.50 Hours Slept"); err != nil {
		t.Fatalf("CreateAllDayAnnotation: %v", err)
	}

	if !strings.HasSuffix(gotPath, "/calendars/primary/events") {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if body["summary"] != "Health Summary for 01/10" {
		t.Errorf("Unexpected summary %v", body["summary"])
	}
	if start := body["start"].(map[string]interface{}); start["date"] != "2024-01-10" {
		t.Errorf("Unexpected start %v", start)
	}
	if end := body["end"].(map[string]interface{}); end["date"] != "2024-01-11" {
		t.Errorf("Unexpected end %v", end)
	}
}

func TestSink_CreateAllDayAnnotation_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	sink, err := New(context.Background(), srv.Client(), "team@group.calendar.google.com", nil, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	day, _ := healthdate.Parse("2024-01-10")

	err = sink.CreateAllDayAnnotation(context.Background(), day, "t", "d")
	if err == nil || !strings.Contains(err.Error(), "2024-01-10") {
		t.Errorf("Expected error naming the date, got %v", err)
	}
}
